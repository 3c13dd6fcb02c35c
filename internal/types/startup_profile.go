package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StartupStatusPending  = "pending"
	StartupStatusApproved = "approved"
	StartupStatusRejected = "rejected"
)

type StartupProfile struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalRef string         `gorm:"uniqueIndex;not null" json:"external_ref"`
	Name        string         `gorm:"not null" json:"name"`
	Sectors     datatypes.JSON `gorm:"type:jsonb" json:"sectors"`
	Stage       string         `gorm:"not null" json:"stage"`
	Geography   string         `json:"geography"`
	Status      string         `gorm:"not null;default:pending;index" json:"status"`

	// SubScores holds the bounded scoring inputs keyed by component name.
	SubScores datatypes.JSON `gorm:"type:jsonb" json:"sub_scores"`

	// Positive and risk behavioral flags feeding the psychological multiplier.
	BehavioralFlags datatypes.JSON `gorm:"type:jsonb" json:"behavioral_flags"`

	// Market-sentiment sub-signals feeding the signal bonus.
	SignalInputs datatypes.JSON `gorm:"type:jsonb" json:"signal_inputs"`

	// Derived scoring fields. BaseScore and EnhancedScore are both retained;
	// the enhanced score never overwrites the base.
	BaseScore       float64        `gorm:"not null;default:0" json:"base_score"`
	SignalBonus     float64        `gorm:"not null;default:0" json:"signal_bonus"`
	PsychMultiplier float64        `gorm:"not null;default:1" json:"psych_multiplier"`
	EnhancedScore   float64        `gorm:"not null;default:0" json:"enhanced_score"`
	ScoreBreakdown  datatypes.JSON `gorm:"type:jsonb" json:"score_breakdown"`

	ScoredAt        *time.Time `json:"scored_at,omitempty"`
	WeightVersionID *uuid.UUID `gorm:"type:uuid" json:"weight_version_id,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (StartupProfile) TableName() string { return "startup_profile" }
