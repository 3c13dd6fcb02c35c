package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	WeightVersionDraft    = "draft"
	WeightVersionActive   = "active"
	WeightVersionRejected = "rejected"
	WeightVersionExpired  = "expired"
)

const (
	ProvenanceManual  = "manual"
	ProvenanceLearned = "learned"
)

// WeightVersion is an immutable snapshot of every tunable scoring parameter.
// Tunables never change after creation; only Status moves, and only through
// the activation transaction. Versions derived by the learning subsystem must
// carry their parent's SignalMaxPoints and multiplier band byte-for-byte;
// the repo rejects writes that drift.
type WeightVersion struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Tag        string     `gorm:"uniqueIndex;not null" json:"tag"`
	Status     string     `gorm:"not null;default:draft;index" json:"status"`
	Provenance string     `gorm:"not null;default:manual" json:"provenance"`
	ParentID   *uuid.UUID `gorm:"type:uuid" json:"parent_id,omitempty"`

	ComponentWeights     datatypes.JSON `gorm:"type:jsonb;not null" json:"component_weights"`
	SignalMaxPoints      datatypes.JSON `gorm:"type:jsonb;not null" json:"signal_max_points"`
	NormalizationDivisor float64        `gorm:"not null" json:"normalization_divisor"`
	MinBaseBoost         float64        `gorm:"not null" json:"min_base_boost"`
	MultiplierFloor      float64        `gorm:"not null" json:"multiplier_floor"`
	MultiplierCeiling    float64        `gorm:"not null" json:"multiplier_ceiling"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (WeightVersion) TableName() string { return "weight_version" }

// ScoringConfig is the single-row active-version pointer. Activation swaps
// ActiveWeightVersionID inside one transaction, so rollback is always a
// pointer change, never a reconstruction.
type ScoringConfig struct {
	ID                    int       `gorm:"primaryKey" json:"id"`
	ActiveWeightVersionID uuid.UUID `gorm:"type:uuid;not null" json:"active_weight_version_id"`
	UpdatedAt             time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ScoringConfig) TableName() string { return "scoring_config" }
