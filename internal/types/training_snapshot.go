package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TrainingSnapshot is one materialized, time-sliced training row. Features
// are frozen as-of ScoreDate; the label derives only from outcome events
// strictly after ScoreDate within the labeling window.
type TrainingSnapshot struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StartupID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_snapshot_startup_date" json:"startup_id"`
	ScoreDate time.Time `gorm:"not null;uniqueIndex:idx_snapshot_startup_date" json:"score_date"`

	Features      datatypes.JSON `gorm:"type:jsonb;not null" json:"features"`
	Success       bool           `gorm:"not null" json:"success"`
	LabelEventID  *uuid.UUID     `gorm:"type:uuid" json:"label_event_id,omitempty"`
	LabelSource   string         `json:"label_source"`
	TimeBucket    string         `gorm:"not null;index" json:"time_bucket"`
	WindowClosedAt time.Time     `gorm:"not null" json:"window_closed_at"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (TrainingSnapshot) TableName() string { return "training_snapshot" }
