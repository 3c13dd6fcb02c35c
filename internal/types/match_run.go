package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	MatchRunQueued    = "queued"
	MatchRunRunning   = "running"
	MatchRunSucceeded = "succeeded"
	MatchRunFailed    = "failed"
)

// MatchRun is the lifecycle row for one batch regeneration cycle. The worker
// claims runnable rows with FOR UPDATE SKIP LOCKED; counters and durations
// give the operational summary a persisted home.
type MatchRun struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Status string    `gorm:"not null;default:queued;index" json:"status"`

	// ScopeStartupID limits the run to one startup; nil means full population.
	ScopeStartupID *uuid.UUID `gorm:"type:uuid" json:"scope_startup_id,omitempty"`

	Attempts    int        `gorm:"not null;default:0" json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	LastErrorAt *time.Time `json:"last_error_at,omitempty"`
	LockedAt    *time.Time `json:"locked_at,omitempty"`
	HeartbeatAt *time.Time `json:"heartbeat_at,omitempty"`

	StartupCount    int `gorm:"not null;default:0" json:"startup_count"`
	InvestorCount   int `gorm:"not null;default:0" json:"investor_count"`
	PairsScored     int `gorm:"not null;default:0" json:"pairs_scored"`
	MatchesPersisted int `gorm:"not null;default:0" json:"matches_persisted"`
	FailedBatches   int `gorm:"not null;default:0" json:"failed_batches"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMS int64      `gorm:"not null;default:0" json:"duration_ms"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (MatchRun) TableName() string { return "match_run" }
