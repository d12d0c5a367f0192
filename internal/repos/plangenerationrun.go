package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/carebridge-backend/internal/logger"
	"github.com/yungbote/carebridge-backend/internal/types"
)

type PlanGenerationRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, runs []*types.PlanGenerationRun) ([]*types.PlanGenerationRun, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.PlanGenerationRun, error)
	GetLatestBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.PlanGenerationRun, error)

	// Claims the next run that is runnable:
	// - status=queued
	// - OR status=failed and attempts < maxAttempts and last_error_at older than retryDelay (or NULL)
	// - OR status=running but heartbeat is stale (crash recovery)
	ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.PlanGenerationRun, error)

	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type planGenerationRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlanGenerationRunRepo(db *gorm.DB, baseLog *logger.Logger) PlanGenerationRunRepo {
	repoLog := baseLog.With("repo", "PlanGenerationRunRepo")
	return &planGenerationRunRepo{db: db, log: repoLog}
}

func (r *planGenerationRunRepo) Create(ctx context.Context, tx *gorm.DB, runs []*types.PlanGenerationRun) ([]*types.PlanGenerationRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(runs) == 0 {
		return []*types.PlanGenerationRun{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *planGenerationRunRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.PlanGenerationRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.PlanGenerationRun
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

func (r *planGenerationRunRepo) GetLatestBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.PlanGenerationRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if sessionID == uuid.Nil {
		return nil, nil
	}
	var run types.PlanGenerationRun
	err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

func (r *planGenerationRunRepo) ClaimNextRunnable(
	ctx context.Context,
	tx *gorm.DB,
	maxAttempts int,
	retryDelay time.Duration,
	staleRunning time.Duration,
) (*types.PlanGenerationRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	now := time.Now()
	retryCutoff := now.Add(-retryDelay)
	staleCutoff := now.Add(-staleRunning)

	var claimed *types.PlanGenerationRun

	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var run types.PlanGenerationRun

		q := txx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
				(
					status = ?
					OR (
						status = ?
						AND attempts < ?
						AND (last_error_at IS NULL OR last_error_at < ?)
					)
					OR (
						status = ?
						AND heartbeat_at IS NOT NULL
						AND heartbeat_at < ?
					)
				)
			`, types.RunStatusQueued, types.RunStatusFailed, maxAttempts, retryCutoff, types.RunStatusRunning, staleCutoff).
			Order("created_at ASC")

		qErr := q.First(&run).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}

		updates := map[string]interface{}{
			"status":       types.RunStatusRunning,
			"attempts":     run.Attempts + 1,
			"locked_at":    now,
			"heartbeat_at": now,
			"updated_at":   now,
		}
		if err := txx.Model(&types.PlanGenerationRun{}).
			Where("id = ?", run.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		run.Status = types.RunStatusRunning
		run.Attempts = run.Attempts + 1
		run.LockedAt = &now
		run.HeartbeatAt = &now
		run.UpdatedAt = now
		claimed = &run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *planGenerationRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.PlanGenerationRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *planGenerationRunRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&types.PlanGenerationRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}
