package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

type OutcomeEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, event *types.OutcomeEvent) error
	ListForStartupBetween(ctx context.Context, tx *gorm.DB, startupID uuid.UUID, after, until time.Time) ([]*types.OutcomeEvent, error)
}

type outcomeEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOutcomeEventRepo(db *gorm.DB, baseLog *logger.Logger) OutcomeEventRepo {
	return &outcomeEventRepo{
		db:  db,
		log: baseLog.With("repo", "OutcomeEventRepo"),
	}
}

func (r *outcomeEventRepo) Create(ctx context.Context, tx *gorm.DB, event *types.OutcomeEvent) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return transaction.WithContext(ctx).Create(event).Error
}

// ListForStartupBetween returns events with after < occurred_at <= until,
// ordered by occurrence. The strict lower bound is what keeps label
// derivation leak-free: an event at or before the score date can never count.
func (r *outcomeEventRepo) ListForStartupBetween(ctx context.Context, tx *gorm.DB, startupID uuid.UUID, after, until time.Time) ([]*types.OutcomeEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.OutcomeEvent
	if startupID == uuid.Nil {
		return out, nil
	}
	err := transaction.WithContext(ctx).
		Where("startup_id = ?", startupID).
		Where("occurred_at > ? AND occurred_at <= ?", after, until).
		Order("occurred_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
