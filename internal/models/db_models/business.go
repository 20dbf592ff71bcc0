package db_models

type Business struct {
	BaseModel
	Name    string
	OwnerID string `gorm:"index"`

	// Spending power. Mutated only through conditional increments in the ledger.
	Credits int64 `gorm:"not null;default:0;check:chk_businesses_credits_nonnegative,credits >= 0"`

	SubscriptionPlan      SubscriptionPlan   `gorm:"size:32;default:'FREE'"`
	SubscriptionStatus    SubscriptionStatus `gorm:"size:32;default:'active'"`
	SubscriptionExpiresAt *int64
	StripeCustomerID      string `gorm:"index"`
	StripeSubscriptionID  string `gorm:"index"`
}
