package utils

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPage     = errors.New("invalid page parameter")
	ErrInvalidPageSize = errors.New("invalid page size parameter")
	ErrDatabaseError   = errors.New("database error")

	ErrBusinessNotFound = errors.New("business not found")
	ErrCampaignNotFound = errors.New("campaign not found")

	ErrInsufficientCredits    = errors.New("insufficient credits")
	ErrInvalidAction          = errors.New("invalid action")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidCampaignType    = errors.New("invalid campaign type")
	ErrInvalidStateTransition = errors.New("invalid campaign state transition")
	ErrCampaignNotEditable    = errors.New("campaign is not editable")
	ErrInvalidPlan            = errors.New("invalid subscription plan")

	// ErrPersistenceConflict marks a concurrent write detected by the database.
	// It is the only ledger error that is safe to retry.
	ErrPersistenceConflict = errors.New("persistence conflict")

	ErrDuplicatePayment = errors.New("payment already recorded")
	ErrInvalidWebhook   = errors.New("invalid webhook payload")

	ErrBusinessExists = errors.New("business already exists")
	ErrMissingSecret  = errors.New("secret is not configured")
)

// InsufficientCreditsError carries the shortfall so the HTTP layer can name it.
type InsufficientCreditsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}

// IsNotFound reports whether err refers to a missing business or campaign.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBusinessNotFound) || errors.Is(err, ErrCampaignNotFound)
}

func IsInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientCredits)
}
