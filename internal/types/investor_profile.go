package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	InvestorTierElite    = "elite"
	InvestorTierStrong   = "strong"
	InvestorTierStandard = "standard"
)

// InvestorProfile is read-only from the core's perspective; rows are written
// by the ingestion collaborator with sectors and stages already canonicalized.
type InvestorProfile struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string         `gorm:"not null" json:"name"`
	Sectors        datatypes.JSON `gorm:"type:jsonb" json:"sectors"`
	AcceptedStages datatypes.JSON `gorm:"type:jsonb" json:"accepted_stages"`
	QualityScore   float64        `gorm:"not null;default:0" json:"quality_score"`
	Tier           string         `gorm:"not null;default:standard" json:"tier"`
	Geography      string         `json:"geography"`
	CheckSizeMin   float64        `json:"check_size_min"`
	CheckSizeMax   float64        `json:"check_size_max"`

	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (InvestorProfile) TableName() string { return "investor_profile" }
