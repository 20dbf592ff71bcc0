package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	dbm "reelcraft/internal/models/db_models"
	"reelcraft/internal/repositories"
	"reelcraft/pkg/metrics"
	"reelcraft/pkg/utils"
)

// ledger holds the balance-changing primitives. Every method takes the
// transaction-bound Store so callers can combine a ledger write with their
// own row updates in one commit.
type ledger struct {
	clock utils.Clock
}

type debitEntry struct {
	BusinessID  uuid.UUID
	Amount      int64
	Action      string
	UserID      string
	Feature     string
	Description string
	Metadata    map[string]interface{}
}

type creditEntry struct {
	BusinessID  uuid.UUID
	Amount      int64
	Type        dbm.TransactionType
	Description string
	PaymentRef  string
	Metadata    map[string]interface{}
}

// debit removes Amount credits and appends the usage transaction and usage log.
func (l ledger) debit(ctx context.Context, tx repositories.Store, e debitEntry) (int64, error) {
	balance, applied, err := tx.AdjustCredits(ctx, e.BusinessID, -e.Amount)
	if err != nil {
		return 0, err
	}
	if !applied {
		return 0, &utils.InsufficientCreditsError{Required: e.Amount, Available: balance}
	}

	now := l.clock.Now().UnixNano()
	txn := &dbm.CreditTransaction{
		ID:              uuid.New(),
		BusinessID:      e.BusinessID,
		TransactionType: dbm.TxnTypeUsage,
		Amount:          -e.Amount,
		BalanceAfter:    balance,
		Description:     e.Description,
		Metadata:        withAction(e.Metadata, e.Action),
		CreatedAt:       now,
	}
	if err := tx.InsertTransaction(ctx, txn); err != nil {
		return 0, err
	}

	usage := &dbm.CreditUsageLog{
		ID:          uuid.New(),
		BusinessID:  e.BusinessID,
		UserID:      e.UserID,
		ActionType:  e.Action,
		CreditsUsed: e.Amount,
		FeatureUsed: e.Feature,
		CreatedAt:   now,
	}
	if err := tx.InsertUsageLog(ctx, usage); err != nil {
		return 0, err
	}
	return balance, nil
}

// credit adds Amount credits and appends one transaction of the given type.
func (l ledger) credit(ctx context.Context, tx repositories.Store, e creditEntry) (int64, error) {
	if e.PaymentRef != "" {
		existing, err := tx.FindTransactionByPaymentRef(ctx, e.PaymentRef)
		if err != nil {
			return 0, err
		}
		if existing != nil {
			return 0, utils.ErrDuplicatePayment
		}
	}

	balance, applied, err := tx.AdjustCredits(ctx, e.BusinessID, e.Amount)
	if err != nil {
		return 0, err
	}
	if !applied {
		// Only reachable on overflow-like corruption; a positive delta cannot go negative.
		return 0, utils.ErrDatabaseError
	}

	txn := &dbm.CreditTransaction{
		ID:              uuid.New(),
		BusinessID:      e.BusinessID,
		TransactionType: e.Type,
		Amount:          e.Amount,
		BalanceAfter:    balance,
		Description:     e.Description,
		Metadata:        datatypes.JSONMap(copyMap(e.Metadata)),
		CreatedAt:       l.clock.Now().UnixNano(),
	}
	if e.PaymentRef != "" {
		ref := e.PaymentRef
		txn.StripePaymentIntentID = &ref
	}
	if err := tx.InsertTransaction(ctx, txn); err != nil {
		return 0, err
	}
	return balance, nil
}

// runInTx retries fn on ErrPersistenceConflict up to maxRetries extra attempts.
// fn must be safe to re-run: it sees a fresh transaction each time.
func runInTx(ctx context.Context, store repositories.Store, maxRetries int, fn func(tx repositories.Store) error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = store.Transaction(ctx, fn)
		if !errors.Is(err, utils.ErrPersistenceConflict) {
			return err
		}
		metrics.RecordConflict()
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("ledger transaction conflicted, retrying")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}

// effects collects committed ledger movements for metrics. Reset per attempt.
type effects struct {
	consumed map[string]int64
	added    map[dbm.TransactionType]int64
}

func newEffects() *effects {
	return &effects{consumed: map[string]int64{}, added: map[dbm.TransactionType]int64{}}
}

func (e *effects) flush() {
	for action, n := range e.consumed {
		metrics.RecordConsumed(action, n)
	}
	for t, n := range e.added {
		metrics.RecordAdded(string(t), n)
	}
}

func withAction(metadata map[string]interface{}, action string) datatypes.JSONMap {
	out := copyMap(metadata)
	if out == nil {
		out = map[string]interface{}{}
	}
	out["action"] = action
	return datatypes.JSONMap(out)
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
