package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

type MatchRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, run *types.MatchRun) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.MatchRun, error)
	ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay, staleRunning time.Duration) (*types.MatchRun, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type matchRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMatchRunRepo(db *gorm.DB, baseLog *logger.Logger) MatchRunRepo {
	return &matchRunRepo{
		db:  db,
		log: baseLog.With("repo", "MatchRunRepo"),
	}
}

func (r *matchRunRepo) Create(ctx context.Context, tx *gorm.DB, run *types.MatchRun) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	return transaction.WithContext(ctx).Create(run).Error
}

func (r *matchRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.MatchRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var run types.MatchRun
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
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

// ClaimNextRunnable picks the oldest queued (or retryable failed, or stale
// running) run and flips it to running under FOR UPDATE SKIP LOCKED, so a
// fleet of workers never double-claims a cycle.
func (r *matchRunRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay, staleRunning time.Duration) (*types.MatchRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	retryCutoff := now.Add(-retryDelay)
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.MatchRun
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var run types.MatchRun
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
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
			`, types.MatchRunQueued, types.MatchRunFailed, maxAttempts, retryCutoff, types.MatchRunRunning, staleCutoff).
			Order("created_at ASC")
		qErr := q.First(&run).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.MatchRun{}).
			Where("id = ?", run.ID).
			Updates(map[string]interface{}{
				"status":       types.MatchRunRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"started_at":   now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		claimed = &run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *matchRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	return transaction.WithContext(ctx).
		Model(&types.MatchRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *matchRunRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return r.UpdateFields(ctx, tx, id, map[string]interface{}{
		"heartbeat_at": time.Now().UTC(),
	})
}
