package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/carebridge-backend/internal/logger"
	"github.com/yungbote/carebridge-backend/internal/types"
)

type TreatmentPlanRepo interface {
	Create(ctx context.Context, tx *gorm.DB, plans []*types.TreatmentPlan) ([]*types.TreatmentPlan, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.TreatmentPlan, error)
	GetByClientID(ctx context.Context, tx *gorm.DB, clientID uuid.UUID) (*types.TreatmentPlan, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error

	// TryLock atomically flips is_locked from false to true. Returns
	// false when the plan is already locked by another run.
	TryLock(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	Unlock(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type treatmentPlanRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTreatmentPlanRepo(db *gorm.DB, baseLog *logger.Logger) TreatmentPlanRepo {
	repoLog := baseLog.With("repo", "TreatmentPlanRepo")
	return &treatmentPlanRepo{db: db, log: repoLog}
}

func (r *treatmentPlanRepo) Create(ctx context.Context, tx *gorm.DB, plans []*types.TreatmentPlan) ([]*types.TreatmentPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(plans) == 0 {
		return []*types.TreatmentPlan{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *treatmentPlanRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.TreatmentPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.TreatmentPlan
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *treatmentPlanRepo) GetByClientID(ctx context.Context, tx *gorm.DB, clientID uuid.UUID) (*types.TreatmentPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if clientID == uuid.Nil {
		return nil, nil
	}
	var plan types.TreatmentPlan
	err := transaction.WithContext(ctx).
		Where("client_id = ?", clientID).
		Limit(1).
		Find(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == uuid.Nil {
		return nil, nil
	}
	return &plan, nil
}

func (r *treatmentPlanRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.TreatmentPlan{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *treatmentPlanRepo) TryLock(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	res := transaction.WithContext(ctx).
		Model(&types.TreatmentPlan{}).
		Where("id = ? AND is_locked = ?", id, false).
		Updates(map[string]interface{}{
			"is_locked":  true,
			"locked_at":  now,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *treatmentPlanRepo) Unlock(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.TreatmentPlan{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_locked":  false,
			"locked_at":  nil,
			"updated_at": time.Now(),
		}).Error
}
