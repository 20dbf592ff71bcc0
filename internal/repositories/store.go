package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	dbm "reelcraft/internal/models/db_models"
)

// Store groups the repositories that must share a database transaction.
// Ledger mutations and campaign transitions run inside Transaction so the
// balance, the transaction log, and the campaign row commit together.
type Store interface {
	BusinessRepository
	CreditRepository
	CampaignRepository

	// Transaction runs fn against a Store bound to one database transaction.
	// A non-nil error from fn rolls everything back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}

type BusinessRepository interface {
	CreateBusiness(ctx context.Context, business *dbm.Business) error
	FindBusinessByID(ctx context.Context, id uuid.UUID) (*dbm.Business, error)
	FindBusinessByStripeCustomer(ctx context.Context, customerID string) (*dbm.Business, error)

	// AdjustCredits adds delta to the balance only when the result stays >= 0.
	// applied is false when the guard rejected the change; balance is then the
	// unchanged current value. Missing businesses yield utils.ErrBusinessNotFound.
	AdjustCredits(ctx context.Context, id uuid.UUID, delta int64) (balance int64, applied bool, err error)
	UpdateSubscription(ctx context.Context, id uuid.UUID, update SubscriptionUpdate) error
}

type SubscriptionUpdate struct {
	Plan                 *dbm.SubscriptionPlan
	Status               *dbm.SubscriptionStatus
	ExpiresAt            *int64
	StripeCustomerID     *string
	StripeSubscriptionID *string
}

type CreditRepository interface {
	// InsertTransaction returns utils.ErrDuplicatePayment when the payment
	// reference is already on the log.
	InsertTransaction(ctx context.Context, txn *dbm.CreditTransaction) error
	InsertUsageLog(ctx context.Context, entry *dbm.CreditUsageLog) error
	ListTransactions(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]dbm.CreditTransaction, error)
	FindTransactionByPaymentRef(ctx context.Context, ref string) (*dbm.CreditTransaction, error)
	ListUsageLogsSince(ctx context.Context, businessID uuid.UUID, sinceUnixNano int64) ([]dbm.CreditUsageLog, error)
}

type CampaignFilter struct {
	BusinessID uuid.UUID
	Status     dbm.CampaignStatus
	Limit      int
	Offset     int
}

type CampaignRepository interface {
	CreateCampaign(ctx context.Context, campaign *dbm.Campaign) error
	FindCampaignByID(ctx context.Context, businessID, id uuid.UUID) (*dbm.Campaign, error)
	// FindCampaignForUpdate locks the row until the surrounding transaction ends.
	FindCampaignForUpdate(ctx context.Context, businessID, id uuid.UUID) (*dbm.Campaign, error)
	UpdateCampaign(ctx context.Context, campaign *dbm.Campaign) error
	ListCampaigns(ctx context.Context, filter CampaignFilter) ([]dbm.Campaign, int64, error)
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
	return translateError(err)
}

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
