package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

type TrainingSnapshotRepo interface {
	UpsertBatch(ctx context.Context, tx *gorm.DB, rows []*types.TrainingSnapshot) error
	ListAll(ctx context.Context, tx *gorm.DB) ([]*types.TrainingSnapshot, error)
	DeleteAll(ctx context.Context, tx *gorm.DB) error
}

type trainingSnapshotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTrainingSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) TrainingSnapshotRepo {
	return &trainingSnapshotRepo{
		db:  db,
		log: baseLog.With("repo", "TrainingSnapshotRepo"),
	}
}

func (r *trainingSnapshotRepo) UpsertBatch(ctx context.Context, tx *gorm.DB, rows []*types.TrainingSnapshot) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "startup_id"}, {Name: "score_date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"features", "success", "label_event_id", "label_source", "time_bucket", "window_closed_at",
			}),
		}).
		Create(&rows).Error
}

func (r *trainingSnapshotRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.TrainingSnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.TrainingSnapshot
	err := transaction.WithContext(ctx).
		Order("score_date ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *trainingSnapshotRepo) DeleteAll(ctx context.Context, tx *gorm.DB) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("1 = 1").
		Delete(&types.TrainingSnapshot{}).Error
}
