package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	dbm "reelcraft/internal/models/db_models"
	"reelcraft/internal/models/response_models"
	"reelcraft/internal/repositories"
	"reelcraft/pkg/metrics"
	"reelcraft/pkg/utils"
)

const (
	DefaultHistoryLimit  = 50
	MaxHistoryLimit      = 100
	DefaultAnalyticsDays = 30
	MaxAnalyticsDays     = 365

	// Upper bound for a single purchase; keeps quote totals far from int64 overflow.
	MaxPurchaseCredits = 1_000_000
)

type ConsumeCreditsParams struct {
	BusinessID uuid.UUID
	UserID     string
	Action     string
	Feature    string
	Metadata   map[string]interface{}
}

type AddCreditsParams struct {
	BusinessID            uuid.UUID
	Amount                int64
	TransactionType       dbm.TransactionType
	Description           string
	StripePaymentIntentID string
	Metadata              map[string]interface{}
}

// ProvisionBusinessParams describes a new business. ID is optional; Stripe
// provisioning passes the id carried in subscription metadata.
type ProvisionBusinessParams struct {
	ID             uuid.UUID
	Name           string
	OwnerID        string
	Plan           string
	OpeningCredits int64
}

type CreditServiceInterface interface {
	ProvisionBusiness(ctx context.Context, params ProvisionBusinessParams) (*dbm.Business, error)
	GetBalance(ctx context.Context, businessID uuid.UUID) (*response_models.CreditBalance, error)
	HasSufficientCredits(ctx context.Context, businessID uuid.UUID, action string) (bool, error)
	CheckCredits(ctx context.Context, businessID uuid.UUID, action string) (*response_models.CreditCheck, error)
	ConsumeCredits(ctx context.Context, params ConsumeCreditsParams) (int64, error)
	AddCredits(ctx context.Context, params AddCreditsParams) (int64, error)
	GetHistory(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]dbm.CreditTransaction, error)
	GetAnalytics(ctx context.Context, businessID uuid.UUID, days int) (map[string]map[string]int64, error)
	AllocateMonthlyCredits(ctx context.Context, businessID uuid.UUID, plan string, paymentRef string) (int64, error)
	QuotePurchase(ctx context.Context, businessID uuid.UUID, credits int64) (*response_models.PurchaseQuote, error)
}

type CreditService struct {
	store      repositories.Store
	ledger     ledger
	clock      utils.Clock
	maxRetries int
	loc        *time.Location
}

func NewCreditService(store repositories.Store, clock utils.Clock, maxRetries int, loc *time.Location) CreditServiceInterface {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CreditService{
		store:      store,
		ledger:     ledger{clock: clock},
		clock:      clock,
		maxRetries: maxRetries,
		loc:        loc,
	}
}

func (s *CreditService) findBusiness(ctx context.Context, businessID uuid.UUID) (*dbm.Business, error) {
	business, err := s.store.FindBusinessByID(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if business == nil {
		return nil, utils.ErrBusinessNotFound
	}
	return business, nil
}

// ProvisionBusiness creates a business at zero and grants any opening credits
// as a bonus entry in the same transaction.
func (s *CreditService) ProvisionBusiness(ctx context.Context, params ProvisionBusinessParams) (*dbm.Business, error) {
	if params.OpeningCredits < 0 {
		return nil, utils.ErrInvalidAmount
	}
	plan := dbm.PlanFree
	if params.Plan != "" {
		terms, err := LookupPlan(params.Plan)
		if err != nil {
			return nil, err
		}
		plan = terms.Plan
	}

	var business *dbm.Business
	err := runInTx(ctx, s.store, s.maxRetries, func(tx repositories.Store) error {
		if params.ID != uuid.Nil {
			existing, err := tx.FindBusinessByID(ctx, params.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				return utils.ErrBusinessExists
			}
		}

		business = &dbm.Business{
			BaseModel:          dbm.BaseModel{ID: params.ID},
			Name:               params.Name,
			OwnerID:            params.OwnerID,
			SubscriptionPlan:   plan,
			SubscriptionStatus: dbm.SubStatusActive,
		}
		if err := tx.CreateBusiness(ctx, business); err != nil {
			return err
		}
		if params.OpeningCredits == 0 {
			return nil
		}

		balance, err := s.ledger.credit(ctx, tx, creditEntry{
			BusinessID:  business.ID,
			Amount:      params.OpeningCredits,
			Type:        dbm.TxnTypeBonus,
			Description: "Opening balance",
		})
		business.Credits = balance
		return err
	})
	if err != nil {
		return nil, err
	}

	if params.OpeningCredits > 0 {
		metrics.RecordAdded(string(dbm.TxnTypeBonus), params.OpeningCredits)
	}
	log.Info().
		Str("business_id", business.ID.String()).
		Str("plan", string(plan)).
		Int64("balance", business.Credits).
		Msg("business provisioned")
	return business, nil
}

func (s *CreditService) GetBalance(ctx context.Context, businessID uuid.UUID) (*response_models.CreditBalance, error) {
	business, err := s.findBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return &response_models.CreditBalance{
		BusinessID: business.ID,
		Credits:    business.Credits,
		Plan:       string(business.SubscriptionPlan),
		Status:     string(business.SubscriptionStatus),
		ExpiresAt:  business.SubscriptionExpiresAt,
	}, nil
}

func (s *CreditService) HasSufficientCredits(ctx context.Context, businessID uuid.UUID, action string) (bool, error) {
	check, err := s.CheckCredits(ctx, businessID, action)
	if err != nil {
		return false, err
	}
	return check.Sufficient, nil
}

func (s *CreditService) CheckCredits(ctx context.Context, businessID uuid.UUID, action string) (*response_models.CreditCheck, error) {
	key, cost, err := ActionCost(action)
	if err != nil {
		return nil, err
	}
	business, err := s.findBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return &response_models.CreditCheck{
		Action:     key,
		Required:   cost,
		Available:  business.Credits,
		Sufficient: business.Credits >= cost,
	}, nil
}

// ConsumeCredits debits the action's cost. The balance check happens inside
// the conditional update, not on an earlier read.
func (s *CreditService) ConsumeCredits(ctx context.Context, params ConsumeCreditsParams) (int64, error) {
	key, cost, err := ActionCost(params.Action)
	if err != nil {
		return 0, err
	}

	var balance int64
	err = runInTx(ctx, s.store, s.maxRetries, func(tx repositories.Store) error {
		var txErr error
		balance, txErr = s.ledger.debit(ctx, tx, debitEntry{
			BusinessID:  params.BusinessID,
			Amount:      cost,
			Action:      key,
			UserID:      params.UserID,
			Feature:     params.Feature,
			Description: fmt.Sprintf("Used %d credits for %s", cost, key),
			Metadata:    params.Metadata,
		})
		return txErr
	})
	if err != nil {
		if utils.IsInsufficient(err) {
			metrics.RecordInsufficient(key)
		}
		return 0, err
	}

	metrics.RecordConsumed(key, cost)
	log.Info().
		Str("business_id", params.BusinessID.String()).
		Str("user_id", params.UserID).
		Str("action", key).
		Int64("credits", cost).
		Int64("balance", balance).
		Msg("credits consumed")
	return balance, nil
}

func (s *CreditService) AddCredits(ctx context.Context, params AddCreditsParams) (int64, error) {
	if params.Amount <= 0 {
		return 0, utils.ErrInvalidAmount
	}
	if !params.TransactionType.Valid() || params.TransactionType == dbm.TxnTypeUsage {
		return 0, fmt.Errorf("%w: %q", utils.ErrInvalidTransactionType, params.TransactionType)
	}

	var balance int64
	err := runInTx(ctx, s.store, s.maxRetries, func(tx repositories.Store) error {
		var txErr error
		balance, txErr = s.ledger.credit(ctx, tx, creditEntry{
			BusinessID:  params.BusinessID,
			Amount:      params.Amount,
			Type:        params.TransactionType,
			Description: params.Description,
			PaymentRef:  params.StripePaymentIntentID,
			Metadata:    params.Metadata,
		})
		return txErr
	})
	if err != nil {
		return 0, err
	}

	metrics.RecordAdded(string(params.TransactionType), params.Amount)
	log.Info().
		Str("business_id", params.BusinessID.String()).
		Str("type", string(params.TransactionType)).
		Int64("credits", params.Amount).
		Int64("balance", balance).
		Msg("credits added")
	return balance, nil
}

func (s *CreditService) GetHistory(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]dbm.CreditTransaction, error) {
	if limit < 1 || limit > MaxHistoryLimit {
		return nil, utils.ErrInvalidPageSize
	}
	if offset < 0 {
		return nil, utils.ErrInvalidPage
	}
	if _, err := s.findBusiness(ctx, businessID); err != nil {
		return nil, err
	}

	txns, err := s.store.ListTransactions(ctx, businessID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	return txns, nil
}

// GetAnalytics buckets usage by calendar day (in the configured zone) and action.
// The window covers today plus the previous days-1 days.
func (s *CreditService) GetAnalytics(ctx context.Context, businessID uuid.UUID, days int) (map[string]map[string]int64, error) {
	days = NormalizeAnalyticsDays(days)
	if _, err := s.findBusiness(ctx, businessID); err != nil {
		return nil, err
	}

	since := utils.StartOfDay(s.clock.Now(), s.loc).AddDate(0, 0, -(days - 1))
	logs, err := s.store.ListUsageLogsSince(ctx, businessID, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}

	breakdown := make(map[string]map[string]int64)
	for _, entry := range logs {
		day := utils.DayKey(entry.CreatedAt, s.loc)
		if breakdown[day] == nil {
			breakdown[day] = make(map[string]int64)
		}
		breakdown[day][entry.ActionType] += entry.CreditsUsed
	}
	return breakdown, nil
}

// AllocateMonthlyCredits grants the plan's monthly credits. An empty plan
// uses the business's current plan.
func (s *CreditService) AllocateMonthlyCredits(ctx context.Context, businessID uuid.UUID, plan string, paymentRef string) (int64, error) {
	if plan == "" {
		business, err := s.findBusiness(ctx, businessID)
		if err != nil {
			return 0, err
		}
		plan = string(business.SubscriptionPlan)
	}
	terms, err := LookupPlan(plan)
	if err != nil {
		return 0, err
	}

	return s.AddCredits(ctx, AddCreditsParams{
		BusinessID:            businessID,
		Amount:                terms.MonthlyCredits,
		TransactionType:       dbm.TxnTypeMonthlyAllocation,
		Description:           fmt.Sprintf("Monthly allocation for %s plan", terms.Plan),
		StripePaymentIntentID: paymentRef,
		Metadata:              map[string]interface{}{"plan": string(terms.Plan)},
	})
}

func (s *CreditService) QuotePurchase(ctx context.Context, businessID uuid.UUID, credits int64) (*response_models.PurchaseQuote, error) {
	if credits <= 0 || credits > MaxPurchaseCredits {
		return nil, fmt.Errorf("%w: credits must be between 1 and %d", utils.ErrInvalidAmount, MaxPurchaseCredits)
	}
	business, err := s.findBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	terms, err := LookupPlan(string(business.SubscriptionPlan))
	if err != nil {
		return nil, err
	}
	return &response_models.PurchaseQuote{
		Plan:                string(terms.Plan),
		Credits:             credits,
		PricePerCreditMinor: terms.PricePerCreditMinor,
		TotalMinor:          credits * terms.PricePerCreditMinor,
		Currency:            "USD",
	}, nil
}

// NormalizeAnalyticsDays applies the default and the upper bound to a window.
func NormalizeAnalyticsDays(days int) int {
	if days <= 0 {
		return DefaultAnalyticsDays
	}
	if days > MaxAnalyticsDays {
		return MaxAnalyticsDays
	}
	return days
}
