package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/carebridge-backend/internal/logger"
	"github.com/yungbote/carebridge-backend/internal/types"
)

type ClientRepo interface {
	Create(ctx context.Context, tx *gorm.DB, clients []*types.Client) ([]*types.Client, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Client, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type clientRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClientRepo(db *gorm.DB, baseLog *logger.Logger) ClientRepo {
	repoLog := baseLog.With("repo", "ClientRepo")
	return &clientRepo{db: db, log: repoLog}
}

func (r *clientRepo) Create(ctx context.Context, tx *gorm.DB, clients []*types.Client) ([]*types.Client, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(clients) == 0 {
		return []*types.Client{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *clientRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Client, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Client
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

func (r *clientRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Client{}).
		Where("id = ?", id).
		Updates(updates).Error
}
