package repos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

var (
	// ErrProtectedFieldsChanged rejects a learned version whose signal
	// max-points table or multiplier band differs from its parent's. The
	// learning subsystem may only move the component weight map.
	ErrProtectedFieldsChanged = errors.New("learned version alters protected fields")

	// ErrNoActiveVersion means the active-version pointer is unset; the
	// system is unscoreable until a version is activated.
	ErrNoActiveVersion = errors.New("no active weight version")
)

type WeightVersionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, version *types.WeightVersion) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.WeightVersion, error)
	GetByTag(ctx context.Context, tx *gorm.DB, tag string) (*types.WeightVersion, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.WeightVersion, error)
	GetActive(ctx context.Context, tx *gorm.DB) (*types.WeightVersion, error)
	Activate(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error
}

type weightVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWeightVersionRepo(db *gorm.DB, baseLog *logger.Logger) WeightVersionRepo {
	return &weightVersionRepo{
		db:  db,
		log: baseLog.With("repo", "WeightVersionRepo"),
	}
}

// Create writes an immutable version row. Learned versions are checked
// against their parent at this boundary: the signal max-points table must be
// byte-identical and the multiplier band unchanged.
func (r *weightVersionRepo) Create(ctx context.Context, tx *gorm.DB, version *types.WeightVersion) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	if version.Provenance == types.ProvenanceLearned {
		if version.ParentID == nil {
			return fmt.Errorf("learned version %s has no parent", version.Tag)
		}
		parent, err := r.GetByID(ctx, transaction, *version.ParentID)
		if err != nil {
			return err
		}
		if parent == nil {
			return fmt.Errorf("parent version %s not found", version.ParentID)
		}
		if !bytes.Equal(version.SignalMaxPoints, parent.SignalMaxPoints) ||
			version.MultiplierFloor != parent.MultiplierFloor ||
			version.MultiplierCeiling != parent.MultiplierCeiling {
			return ErrProtectedFieldsChanged
		}
	}
	return transaction.WithContext(ctx).Create(version).Error
}

func (r *weightVersionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.WeightVersion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.WeightVersion
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

func (r *weightVersionRepo) GetByTag(ctx context.Context, tx *gorm.DB, tag string) (*types.WeightVersion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if tag == "" {
		return nil, nil
	}
	var row types.WeightVersion
	err := transaction.WithContext(ctx).
		Where("tag = ?", tag).
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

func (r *weightVersionRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.WeightVersion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.WeightVersion
	err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetActive resolves the single-row active pointer to its version.
func (r *weightVersionRepo) GetActive(ctx context.Context, tx *gorm.DB) (*types.WeightVersion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var cfg types.ScoringConfig
	err := transaction.WithContext(ctx).
		Where("id = ?", 1).
		Limit(1).
		Find(&cfg).Error
	if err != nil {
		return nil, err
	}
	if cfg.ActiveWeightVersionID == uuid.Nil {
		return nil, ErrNoActiveVersion
	}
	return r.GetByID(ctx, transaction, cfg.ActiveWeightVersionID)
}

// Activate swaps the active-version pointer in one transaction: the previous
// active version is marked expired, the target marked active, and the
// scoring_config row repointed. History is retained, so any prior version
// can be re-activated the same way.
func (r *weightVersionRepo) Activate(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return fmt.Errorf("activate: empty version id")
	}
	now := time.Now().UTC()
	return transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		target, err := r.GetByID(ctx, txx, id)
		if err != nil {
			return err
		}
		if target == nil {
			return fmt.Errorf("activate: version %s not found", id)
		}

		var cfg types.ScoringConfig
		if err := txx.Where("id = ?", 1).Limit(1).Find(&cfg).Error; err != nil {
			return err
		}
		if cfg.ActiveWeightVersionID != uuid.Nil && cfg.ActiveWeightVersionID != id {
			if err := txx.Model(&types.WeightVersion{}).
				Where("id = ?", cfg.ActiveWeightVersionID).
				Updates(map[string]interface{}{"status": types.WeightVersionExpired, "updated_at": now}).Error; err != nil {
				return err
			}
		}
		if err := txx.Model(&types.WeightVersion{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{"status": types.WeightVersionActive, "updated_at": now}).Error; err != nil {
			return err
		}

		if cfg.ID == 0 {
			return txx.Create(&types.ScoringConfig{ID: 1, ActiveWeightVersionID: id, UpdatedAt: now}).Error
		}
		return txx.Model(&types.ScoringConfig{}).
			Where("id = ?", 1).
			Updates(map[string]interface{}{"active_weight_version_id": id, "updated_at": now}).Error
	})
}

func (r *weightVersionRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.WeightVersion{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()}).Error
}
