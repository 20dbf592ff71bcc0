package db_models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type CampaignStatus string

const (
	CampaignStatusDraft      CampaignStatus = "draft"
	CampaignStatusInProgress CampaignStatus = "in_progress"
	CampaignStatusCompleted  CampaignStatus = "completed"
	CampaignStatusFailed     CampaignStatus = "failed"
	CampaignStatusCancelled  CampaignStatus = "cancelled"
)

func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusFailed || s == CampaignStatusCancelled
}

type CampaignType string

const (
	CampaignTypeVideo  CampaignType = "video"
	CampaignTypeImage  CampaignType = "image"
	CampaignTypeScript CampaignType = "script"
)

type Campaign struct {
	BaseModel
	BusinessID uuid.UUID `gorm:"type:uuid;index;not null"`
	UserID     string    `gorm:"size:64;index"`
	Name       string

	Status       CampaignStatus `gorm:"size:32;index;not null;default:'draft'"`
	CampaignType CampaignType   `gorm:"size:32"`

	EstimatedCredits int64 `gorm:"not null;default:0"`
	CreditsUsed      int64 `gorm:"not null;default:0"`

	// Caller-owned blobs; only Settings is read, and only for estimation.
	Settings  datatypes.JSONMap `gorm:"type:jsonb"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb"`
	SceneData datatypes.JSONMap `gorm:"type:jsonb"`

	FailureReason string
	StartedAt     *int64
	CompletedAt   *int64

	Business Business `gorm:"foreignKey:BusinessID"`
}
