package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/carebridge-backend/internal/logger"
	"github.com/yungbote/carebridge-backend/internal/types"
)

// PlanVersionRepo is append-only: versions are never updated, deleted,
// or renumbered.
type PlanVersionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, versions []*types.PlanVersion) ([]*types.PlanVersion, error)
	GetByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.PlanVersion, error)
	GetByPlanIDAndNumber(ctx context.Context, tx *gorm.DB, planID uuid.UUID, versionNumber int) (*types.PlanVersion, error)
	GetLatestVersionNumber(ctx context.Context, tx *gorm.DB, planID uuid.UUID) (int, error)
}

type planVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlanVersionRepo(db *gorm.DB, baseLog *logger.Logger) PlanVersionRepo {
	repoLog := baseLog.With("repo", "PlanVersionRepo")
	return &planVersionRepo{db: db, log: repoLog}
}

func (r *planVersionRepo) Create(ctx context.Context, tx *gorm.DB, versions []*types.PlanVersion) ([]*types.PlanVersion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(versions) == 0 {
		return []*types.PlanVersion{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}

func (r *planVersionRepo) GetByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.PlanVersion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.PlanVersion
	if planID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("version_number ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *planVersionRepo) GetByPlanIDAndNumber(ctx context.Context, tx *gorm.DB, planID uuid.UUID, versionNumber int) (*types.PlanVersion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var version types.PlanVersion
	err := transaction.WithContext(ctx).
		Where("plan_id = ? AND version_number = ?", planID, versionNumber).
		Limit(1).
		Find(&version).Error
	if err != nil {
		return nil, err
	}
	if version.ID == uuid.Nil {
		return nil, nil
	}
	return &version, nil
}

// GetLatestVersionNumber returns 0 for a plan with no versions. Callers
// that use it for numbering must hold the plan lock so numbering stays
// contiguous.
func (r *planVersionRepo) GetLatestVersionNumber(ctx context.Context, tx *gorm.DB, planID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var max *int
	err := transaction.WithContext(ctx).
		Model(&types.PlanVersion{}).
		Where("plan_id = ?", planID).
		Select("MAX(version_number)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}
