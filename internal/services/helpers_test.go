package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	dbm "reelcraft/internal/models/db_models"
	"reelcraft/internal/repositories"
	"reelcraft/pkg/utils"
)

var testNow = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

type fixture struct {
	store    *repositories.MemoryStore
	clock    *utils.FixedClock
	credits  CreditServiceInterface
	campaign CampaignServiceInterface

	// opening counts the bonus rows written when a business was seeded.
	opening map[uuid.UUID]int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	clock := &utils.FixedClock{T: testNow}
	return &fixture{
		store:    store,
		clock:    clock,
		credits:  NewCreditService(store, clock, 3, time.UTC),
		campaign: NewCampaignService(store, clock, 3),
		opening:  make(map[uuid.UUID]int),
	}
}

func (f *fixture) business(t *testing.T, credits int64) uuid.UUID {
	t.Helper()
	return f.businessOnPlan(t, credits, dbm.PlanStarter)
}

// businessOnPlan provisions a business the way production does: created at
// zero, with the opening balance granted as a bonus transaction.
func (f *fixture) businessOnPlan(t *testing.T, credits int64, plan dbm.SubscriptionPlan) uuid.UUID {
	t.Helper()
	b, err := f.credits.ProvisionBusiness(context.Background(), ProvisionBusinessParams{
		Name:           "Acme Coffee",
		OwnerID:        "owner-1",
		Plan:           string(plan),
		OpeningCredits: credits,
	})
	require.NoError(t, err)
	require.Equal(t, credits, b.Credits)
	if credits > 0 {
		f.opening[b.ID] = 1
	}
	return b.ID
}

func (f *fixture) balance(t *testing.T, businessID uuid.UUID) int64 {
	t.Helper()
	b, err := f.credits.GetBalance(context.Background(), businessID)
	require.NoError(t, err)
	return b.Credits
}

// fullHistory returns every transaction for the business, oldest first.
func (f *fixture) fullHistory(t *testing.T, businessID uuid.UUID) []dbm.CreditTransaction {
	t.Helper()
	txns, err := f.store.ListTransactions(context.Background(), businessID, 1000, 0)
	require.NoError(t, err)
	for i, j := 0, len(txns)-1; i < j; i, j = i+1, j-1 {
		txns[i], txns[j] = txns[j], txns[i]
	}
	return txns
}

// history returns the transactions written after the opening grant, oldest first.
func (f *fixture) history(t *testing.T, businessID uuid.UUID) []dbm.CreditTransaction {
	t.Helper()
	return f.fullHistory(t, businessID)[f.opening[businessID]:]
}

// requireConsistentLedger replays the whole log from a zero balance: each
// balance_after must follow from the amounts and the sum must equal the
// stored balance.
func (f *fixture) requireConsistentLedger(t *testing.T, businessID uuid.UUID) {
	t.Helper()
	var running int64
	for _, txn := range f.fullHistory(t, businessID) {
		running += txn.Amount
		require.Equal(t, running, txn.BalanceAfter, "balance_after of %s", txn.ID)
		require.GreaterOrEqual(t, txn.BalanceAfter, int64(0))
	}
	require.Equal(t, running, f.balance(t, businessID))
}

func countType(txns []dbm.CreditTransaction, typ dbm.TransactionType) int {
	n := 0
	for _, txn := range txns {
		if txn.TransactionType == typ {
			n++
		}
	}
	return n
}
