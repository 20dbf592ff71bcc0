package request_models

type CheckCreditsRequest struct {
	Action string `json:"action" binding:"required"`
}

type ConsumeCreditsRequest struct {
	Action   string                 `json:"action" binding:"required"`
	Feature  string                 `json:"feature"`
	Metadata map[string]interface{} `json:"metadata"`
}

type GrantCreditsRequest struct {
	BusinessID  string                 `json:"business_id" binding:"required,uuid"`
	Amount      int64                  `json:"amount" binding:"required,gt=0"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata"`
}

type QuoteCreditsRequest struct {
	Credits int64 `json:"credits" binding:"required,gt=0,max=1000000"`
}

// ProvisionBusinessRequest opens a business account. Opening credits are
// recorded as a bonus transaction.
type ProvisionBusinessRequest struct {
	Name           string `json:"name" binding:"required,min=1,max=200"`
	OwnerID        string `json:"owner_id" binding:"max=64"`
	Plan           string `json:"plan" binding:"omitempty,oneof=FREE STARTER PRO ENTERPRISE"`
	OpeningCredits int64  `json:"opening_credits" binding:"gte=0,max=1000000"`
}
