package request_models

type CreateCampaignRequest struct {
	Name         string                 `json:"name" binding:"required,min=1,max=200"`
	CampaignType string                 `json:"campaign_type" binding:"omitempty,oneof=video image script"`
	Settings     map[string]interface{} `json:"settings"`
	Metadata     map[string]interface{} `json:"metadata"`
	SceneData    map[string]interface{} `json:"scene_data"`
}

// UpdateCampaignRequest carries wizard state. SceneData and Metadata are
// merged key by key into the stored blobs; a null value removes the key.
type UpdateCampaignRequest struct {
	Name         *string                `json:"name" binding:"omitempty,min=1,max=200"`
	CampaignType *string                `json:"campaign_type" binding:"omitempty,oneof=video image script"`
	Settings     map[string]interface{} `json:"settings"`
	Metadata     map[string]interface{} `json:"metadata"`
	SceneData    map[string]interface{} `json:"scene_data"`
}

type EstimateCampaignRequest struct {
	CampaignType string                 `json:"campaign_type" binding:"required,oneof=video image script"`
	Settings     map[string]interface{} `json:"settings"`
}

type CompleteCampaignRequest struct {
	ActualCreditsUsed *int64 `json:"actual_credits_used" binding:"omitempty,gte=0"`
}

type CloseCampaignRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}
