package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

type MatchRepo interface {
	UpsertBatch(ctx context.Context, tx *gorm.DB, matches []*types.Match) error
	DeleteStaleForStartups(ctx context.Context, tx *gorm.DB, startupIDs []uuid.UUID, runID uuid.UUID) (int64, error)
	ListByStartup(ctx context.Context, tx *gorm.DB, startupID uuid.UUID, offset, limit int) ([]*types.Match, error)
	CountByStartup(ctx context.Context, tx *gorm.DB, startupID uuid.UUID) (int64, error)
}

type matchRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMatchRepo(db *gorm.DB, baseLog *logger.Logger) MatchRepo {
	return &matchRepo{
		db:  db,
		log: baseLog.With("repo", "MatchRepo"),
	}
}

// UpsertBatch writes one batch of match rows keyed on (startup_id,
// investor_id). Re-running on unchanged inputs overwrites in place, so a
// regeneration cycle never duplicates or accumulates rows.
func (r *matchRepo) UpsertBatch(ctx context.Context, tx *gorm.DB, matches []*types.Match) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(matches) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, m := range matches {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		m.UpdatedAt = now
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "startup_id"}, {Name: "investor_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"match_score", "confidence_tier", "breakdown", "run_id", "weight_version_id", "updated_at",
			}),
		}).
		Create(&matches).Error
}

// DeleteStaleForStartups removes rows for startups covered by the current
// run that the run did not re-produce. Startups outside the run are never
// touched.
func (r *matchRepo) DeleteStaleForStartups(ctx context.Context, tx *gorm.DB, startupIDs []uuid.UUID, runID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(startupIDs) == 0 || runID == uuid.Nil {
		return 0, nil
	}
	res := transaction.WithContext(ctx).
		Where("startup_id IN ?", startupIDs).
		Where("run_id IS NULL OR run_id <> ?", runID).
		Delete(&types.Match{})
	return res.RowsAffected, res.Error
}

func (r *matchRepo) ListByStartup(ctx context.Context, tx *gorm.DB, startupID uuid.UUID, offset, limit int) ([]*types.Match, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Match
	if startupID == uuid.Nil {
		return out, nil
	}
	err := transaction.WithContext(ctx).
		Where("startup_id = ?", startupID).
		Order("match_score DESC").
		Order("investor_id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *matchRepo) CountByStartup(ctx context.Context, tx *gorm.DB, startupID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if startupID == uuid.Nil {
		return 0, nil
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.Match{}).
		Where("startup_id = ?", startupID).
		Count(&count).Error
	return count, err
}
