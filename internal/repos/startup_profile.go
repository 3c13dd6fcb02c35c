package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/scoring"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

// ErrSignalCapExceeded rejects any write carrying a signal bonus above the
// hard cap. Enforced here as well as at computation time so no write path can
// drift past the bound.
var ErrSignalCapExceeded = errors.New("signal bonus exceeds cap")

// ScoreUpdate carries the derived scoring fields persisted after a rescore.
type ScoreUpdate struct {
	BaseScore       float64
	SignalBonus     float64
	PsychMultiplier float64
	EnhancedScore   float64
	Breakdown       datatypes.JSON
	WeightVersionID uuid.UUID
	ScoredAt        time.Time
}

type StartupProfileRepo interface {
	Create(ctx context.Context, tx *gorm.DB, startup *types.StartupProfile) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.StartupProfile, error)
	GetByExternalRef(ctx context.Context, tx *gorm.DB, ref string) (*types.StartupProfile, error)
	ListByStatus(ctx context.Context, tx *gorm.DB, status string, offset, limit int) ([]*types.StartupProfile, error)
	CountByStatus(ctx context.Context, tx *gorm.DB, status string) (int64, error)
	ListScored(ctx context.Context, tx *gorm.DB, offset, limit int) ([]*types.StartupProfile, error)
	UpdateScore(ctx context.Context, tx *gorm.DB, id uuid.UUID, update ScoreUpdate) error
}

type startupProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStartupProfileRepo(db *gorm.DB, baseLog *logger.Logger) StartupProfileRepo {
	return &startupProfileRepo{
		db:  db,
		log: baseLog.With("repo", "StartupProfileRepo"),
	}
}

func (r *startupProfileRepo) Create(ctx context.Context, tx *gorm.DB, startup *types.StartupProfile) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if startup.ID == uuid.Nil {
		startup.ID = uuid.New()
	}
	if startup.SignalBonus > scoring.SignalBonusCap {
		return ErrSignalCapExceeded
	}
	return transaction.WithContext(ctx).Create(startup).Error
}

func (r *startupProfileRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.StartupProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.StartupProfile
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *startupProfileRepo) GetByExternalRef(ctx context.Context, tx *gorm.DB, ref string) (*types.StartupProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if ref == "" {
		return nil, nil
	}
	var row types.StartupProfile
	err := transaction.WithContext(ctx).
		Where("external_ref = ?", ref).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *startupProfileRepo) ListByStatus(ctx context.Context, tx *gorm.DB, status string, offset, limit int) ([]*types.StartupProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.StartupProfile
	err := transaction.WithContext(ctx).
		Where("status = ?", status).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *startupProfileRepo) CountByStatus(ctx context.Context, tx *gorm.DB, status string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.StartupProfile{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

func (r *startupProfileRepo) ListScored(ctx context.Context, tx *gorm.DB, offset, limit int) ([]*types.StartupProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.StartupProfile
	err := transaction.WithContext(ctx).
		Where("scored_at IS NOT NULL").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *startupProfileRepo) UpdateScore(ctx context.Context, tx *gorm.DB, id uuid.UUID, update ScoreUpdate) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if update.SignalBonus > scoring.SignalBonusCap {
		return ErrSignalCapExceeded
	}
	return transaction.WithContext(ctx).
		Model(&types.StartupProfile{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"base_score":        update.BaseScore,
			"signal_bonus":      update.SignalBonus,
			"psych_multiplier":  update.PsychMultiplier,
			"enhanced_score":    update.EnhancedScore,
			"score_breakdown":   update.Breakdown,
			"weight_version_id": update.WeightVersionID,
			"scored_at":         update.ScoredAt,
			"updated_at":        time.Now().UTC(),
		}).Error
}
