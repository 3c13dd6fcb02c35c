package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	MatchStatusSuggested      = "suggested"
	MatchStatusIntroRequested = "intro_requested"
	MatchStatusDeclined       = "declined"
	MatchStatusPassed         = "passed"
)

const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Match is one persisted startup×investor pairing. The (startup_id,
// investor_id) pair is unique; regeneration upserts on that key so re-running
// a cycle never duplicates rows.
type Match struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StartupID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_match_pair;index" json:"startup_id"`
	InvestorID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_match_pair" json:"investor_id"`

	MatchScore     float64        `gorm:"not null" json:"match_score"`
	ConfidenceTier string         `gorm:"not null" json:"confidence_tier"`
	Breakdown      datatypes.JSON `gorm:"type:jsonb" json:"breakdown"`
	Status         string         `gorm:"not null;default:suggested" json:"status"`

	RunID           *uuid.UUID `gorm:"type:uuid;index" json:"run_id,omitempty"`
	WeightVersionID *uuid.UUID `gorm:"type:uuid" json:"weight_version_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Match) TableName() string { return "match" }

// MatchFactor is one line of the structured rationale persisted with a match.
type MatchFactor struct {
	Factor    string  `json:"factor"`
	Points    float64 `json:"points"`
	Rationale string  `json:"rationale"`
}
