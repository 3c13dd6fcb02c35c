package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RecommendationPending  = "pending"
	RecommendationApproved = "approved"
	RecommendationRejected = "rejected"
)

// Recommendation is the learning subsystem's output: a proposed weight diff
// attached to a draft WeightVersion. It is inert until a human approves it
// and activates the draft.
type Recommendation struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DraftVersionID uuid.UUID `gorm:"type:uuid;not null" json:"draft_version_id"`
	ParentVersionID uuid.UUID `gorm:"type:uuid;not null" json:"parent_version_id"`

	WeightDiff          datatypes.JSON `gorm:"type:jsonb;not null" json:"weight_diff"`
	SuccessCount        int            `gorm:"not null" json:"success_count"`
	FailureCount        int            `gorm:"not null" json:"failure_count"`
	PositiveRate        float64        `gorm:"not null" json:"positive_rate"`
	StabilityResult     datatypes.JSON `gorm:"type:jsonb" json:"stability_result"`
	ExpectedImprovement float64        `gorm:"not null" json:"expected_improvement"`

	Status    string     `gorm:"not null;default:pending;index" json:"status"`
	DecidedBy string     `json:"decided_by,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Recommendation) TableName() string { return "recommendation" }
