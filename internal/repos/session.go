package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/carebridge-backend/internal/logger"
	"github.com/yungbote/carebridge-backend/internal/types"
)

type SessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, sessions []*types.Session) ([]*types.Session, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Session, error)
	GetByClientID(ctx context.Context, tx *gorm.DB, clientID uuid.UUID) ([]*types.Session, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	repoLog := baseLog.With("repo", "SessionRepo")
	return &sessionRepo{db: db, log: repoLog}
}

func (r *sessionRepo) Create(ctx context.Context, tx *gorm.DB, sessions []*types.Session) ([]*types.Session, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(sessions) == 0 {
		return []*types.Session{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Session, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Session
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

func (r *sessionRepo) GetByClientID(ctx context.Context, tx *gorm.DB, clientID uuid.UUID) ([]*types.Session, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Session
	if clientID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("session_number ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *sessionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Session{}).
		Where("id = ?", id).
		Updates(updates).Error
}
