package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	dbm "reelcraft/internal/models/db_models"
	"reelcraft/pkg/utils"
)

// Name of the unique index gorm derives for CreditTransaction.StripePaymentIntentID.
const paymentRefIndex = "idx_credit_transactions_stripe_payment_intent_id"

func (s *gormStore) InsertTransaction(ctx context.Context, txn *dbm.CreditTransaction) error {
	if err := s.db.WithContext(ctx).Create(txn).Error; err != nil {
		if txn.StripePaymentIntentID != nil && isUniqueViolation(err) {
			return utils.ErrDuplicatePayment
		}
		return translateError(err)
	}
	return nil
}

func (s *gormStore) InsertUsageLog(ctx context.Context, entry *dbm.CreditUsageLog) error {
	return translateError(s.db.WithContext(ctx).Create(entry).Error)
}

func (s *gormStore) ListTransactions(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]dbm.CreditTransaction, error) {
	var txns []dbm.CreditTransaction
	err := s.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&txns).Error
	return txns, translateError(err)
}

func (s *gormStore) FindTransactionByPaymentRef(ctx context.Context, ref string) (*dbm.CreditTransaction, error) {
	var txn dbm.CreditTransaction
	err := s.db.WithContext(ctx).First(&txn, "stripe_payment_intent_id = ?", ref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, translateError(err)
	}
	return &txn, nil
}

func (s *gormStore) ListUsageLogsSince(ctx context.Context, businessID uuid.UUID, sinceUnixNano int64) ([]dbm.CreditUsageLog, error) {
	var logs []dbm.CreditUsageLog
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND created_at >= ?", businessID, sinceUnixNano).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, translateError(err)
}
