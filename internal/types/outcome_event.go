package types

import (
	"time"

	"github.com/google/uuid"
)

// Outcome event types. These are the only permitted label sources for the
// learning subsystem: independently time-stamped real-world events, never the
// score or anything derived from it.
const (
	OutcomeFundingRound    = "funding_round"
	OutcomeRevenueReport   = "revenue_report"
	OutcomeRetentionReport = "retention_report"
)

// OutcomeEvent is written by external collaborators and read by the learning
// subsystem when deriving outcome labels.
type OutcomeEvent struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StartupID  uuid.UUID `gorm:"type:uuid;not null;index" json:"startup_id"`
	EventType  string    `gorm:"not null;index" json:"event_type"`
	Value      float64   `gorm:"not null" json:"value"`
	OccurredAt time.Time `gorm:"not null;index" json:"occurred_at"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (OutcomeEvent) TableName() string { return "outcome_event" }
