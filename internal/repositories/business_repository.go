package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	dbm "reelcraft/internal/models/db_models"
	"reelcraft/pkg/utils"
)

// CreateBusiness inserts a business with a zero balance. Opening credits are
// granted afterwards as a ledger entry so the log replays to the balance.
func (s *gormStore) CreateBusiness(ctx context.Context, business *dbm.Business) error {
	if business.Credits != 0 {
		return fmt.Errorf("%w: opening balance must be granted through the ledger", utils.ErrInvalidAmount)
	}
	if err := s.db.WithContext(ctx).Create(business).Error; err != nil {
		if isUniqueViolation(err) {
			return utils.ErrBusinessExists
		}
		return translateError(err)
	}
	return nil
}

func (s *gormStore) FindBusinessByID(ctx context.Context, id uuid.UUID) (*dbm.Business, error) {
	var business dbm.Business
	err := s.db.WithContext(ctx).First(&business, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, translateError(err)
	}
	return &business, nil
}

func (s *gormStore) FindBusinessByStripeCustomer(ctx context.Context, customerID string) (*dbm.Business, error) {
	var business dbm.Business
	err := s.db.WithContext(ctx).First(&business, "stripe_customer_id = ?", customerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, translateError(err)
	}
	return &business, nil
}

// AdjustCredits is a single conditional UPDATE: the WHERE guard and the
// increment are evaluated against the locked row, so concurrent debits
// cannot both pass the check on a stale read.
func (s *gormStore) AdjustCredits(ctx context.Context, id uuid.UUID, delta int64) (int64, bool, error) {
	result := s.db.WithContext(ctx).
		Model(&dbm.Business{}).
		Where("id = ? AND credits + ? >= 0", id, delta).
		Update("credits", gorm.Expr("credits + ?", delta))
	if result.Error != nil {
		return 0, false, translateError(result.Error)
	}

	var business dbm.Business
	if err := s.db.WithContext(ctx).
		Select("id", "credits").
		First(&business, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, utils.ErrBusinessNotFound
		}
		return 0, false, translateError(err)
	}

	return business.Credits, result.RowsAffected == 1, nil
}

func (s *gormStore) UpdateSubscription(ctx context.Context, id uuid.UUID, update SubscriptionUpdate) error {
	updates := map[string]interface{}{}
	if update.Plan != nil {
		updates["subscription_plan"] = *update.Plan
	}
	if update.Status != nil {
		updates["subscription_status"] = *update.Status
	}
	if update.ExpiresAt != nil {
		updates["subscription_expires_at"] = *update.ExpiresAt
	}
	if update.StripeCustomerID != nil {
		updates["stripe_customer_id"] = *update.StripeCustomerID
	}
	if update.StripeSubscriptionID != nil {
		updates["stripe_subscription_id"] = *update.StripeSubscriptionID
	}
	if len(updates) == 0 {
		return nil
	}

	result := s.db.WithContext(ctx).
		Model(&dbm.Business{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrBusinessNotFound
	}
	return nil
}
