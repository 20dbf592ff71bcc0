package db_models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type TransactionType string

const (
	TxnTypePurchase          TransactionType = "purchase"
	TxnTypeUsage             TransactionType = "usage"
	TxnTypeRefund            TransactionType = "refund"
	TxnTypeMonthlyAllocation TransactionType = "monthly_allocation"
	TxnTypeBonus             TransactionType = "bonus"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxnTypePurchase, TxnTypeUsage, TxnTypeRefund, TxnTypeMonthlyAllocation, TxnTypeBonus:
		return true
	}
	return false
}

// CreditTransaction is append-only. Corrections are new offsetting rows.
type CreditTransaction struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID      uuid.UUID         `gorm:"type:uuid;index:idx_credit_txn_business_created,priority:1;not null" json:"business_id"`
	TransactionType TransactionType   `gorm:"size:32;index;not null" json:"transaction_type"`
	Amount          int64             `gorm:"not null" json:"amount"` // negative for usage
	BalanceAfter    int64             `gorm:"not null" json:"balance_after"`
	Description     string            `json:"description"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	// Nullable so the unique index only applies to payment-backed rows.
	StripePaymentIntentID *string `gorm:"size:255;uniqueIndex" json:"stripe_payment_intent_id,omitempty"`

	// Unix nanoseconds; orders the log within a business.
	CreatedAt int64 `gorm:"index:idx_credit_txn_business_created,priority:2;not null" json:"created_at"`

	Business Business `gorm:"foreignKey:BusinessID" json:"-"`
}

// CreditUsageLog feeds per-action analytics. Written alongside every usage transaction.
type CreditUsageLog struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID  uuid.UUID `gorm:"type:uuid;index:idx_usage_business_created,priority:1;not null" json:"business_id"`
	UserID      string    `gorm:"size:64;index" json:"user_id"`
	ActionType  string    `gorm:"size:64;not null" json:"action_type"`
	CreditsUsed int64     `gorm:"not null" json:"credits_used"`
	FeatureUsed string    `json:"feature_used"`
	CreatedAt   int64     `gorm:"index:idx_usage_business_created,priority:2;not null" json:"created_at"`
}
