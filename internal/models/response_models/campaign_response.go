package response_models

import (
	"github.com/google/uuid"
)

type Campaign struct {
	ID               uuid.UUID              `json:"id"`
	BusinessID       uuid.UUID              `json:"business_id"`
	UserID           string                 `json:"user_id"`
	Name             string                 `json:"name"`
	Status           string                 `json:"status"`
	CampaignType     string                 `json:"campaign_type,omitempty"`
	EstimatedCredits int64                  `json:"estimated_credits"`
	CreditsUsed      int64                  `json:"credits_used"`
	Settings         map[string]interface{} `json:"settings,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	SceneData        map[string]interface{} `json:"scene_data,omitempty"`
	FailureReason    string                 `json:"failure_reason,omitempty"`
	CreatedAt        string                 `json:"created_at"`
	StartedAt        string                 `json:"started_at,omitempty"`
	CompletedAt      string                 `json:"completed_at,omitempty"`
}

type CampaignList struct {
	Campaigns []Campaign `json:"campaigns"`
	Total     int64      `json:"total"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
}

type CampaignEstimate struct {
	CampaignType     string `json:"campaign_type"`
	EstimatedCredits int64  `json:"estimated_credits"`
}
