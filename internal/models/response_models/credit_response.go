package response_models

import (
	"github.com/google/uuid"
)

type CreditBalance struct {
	BusinessID uuid.UUID `json:"business_id"`
	Credits    int64     `json:"credits"`
	Plan       string    `json:"plan"`
	Status     string    `json:"status"`
	ExpiresAt  *int64    `json:"expires_at,omitempty"`
}

type CreditCheck struct {
	Action     string `json:"action"`
	Required   int64  `json:"required"`
	Available  int64  `json:"available"`
	Sufficient bool   `json:"sufficient"`
}

type CreditConsumption struct {
	Action      string `json:"action"`
	CreditsUsed int64  `json:"credits_used"`
	Balance     int64  `json:"balance"`
}

type CreditTransaction struct {
	ID                    uuid.UUID              `json:"id"`
	TransactionType       string                 `json:"transaction_type"`
	Amount                int64                  `json:"amount"`
	BalanceAfter          int64                  `json:"balance_after"`
	Description           string                 `json:"description"`
	Metadata              map[string]interface{} `json:"metadata,omitempty"`
	StripePaymentIntentID *string                `json:"stripe_payment_intent_id,omitempty"`
	CreatedAt             string                 `json:"created_at"`
}

type CreditHistory struct {
	Transactions []CreditTransaction `json:"transactions"`
	Limit        int                 `json:"limit"`
	Offset       int                 `json:"offset"`
}

// CreditAnalytics maps calendar day (YYYY-MM-DD) to action type to credits used.
type CreditAnalytics struct {
	Days      int                         `json:"days"`
	Timezone  string                      `json:"timezone"`
	Breakdown map[string]map[string]int64 `json:"breakdown"`
	Total     int64                       `json:"total"`
}

type PurchaseQuote struct {
	Plan                string `json:"plan"`
	Credits             int64  `json:"credits"`
	PricePerCreditMinor int64  `json:"price_per_credit_minor"`
	TotalMinor          int64  `json:"total_minor"`
	Currency            string `json:"currency"`
}
