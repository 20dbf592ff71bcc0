package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	dbm "reelcraft/internal/models/db_models"
	"reelcraft/internal/repositories"
	"reelcraft/pkg/utils"
)

func consume(t *testing.T, svc CreditServiceInterface, businessID uuid.UUID, action string) (int64, error) {
	t.Helper()
	return svc.ConsumeCredits(context.Background(), ConsumeCreditsParams{
		BusinessID: businessID,
		UserID:     "user-1",
		Action:     action,
	})
}

func TestConsumeCredits_TwiceInSequence(t *testing.T) {
	f := newFixture(t)
	bid := f.business(t, 100)

	balance, err := consume(t, f.credits, bid, ActionVideoGeneration)
	require.NoError(t, err)
	assert.Equal(t, int64(90), balance)

	balance, err = consume(t, f.credits, bid, ActionVideoGeneration)
	require.NoError(t, err)
	assert.Equal(t, int64(80), balance)

	txns, err := f.credits.GetHistory(context.Background(), bid, 10, 0)
	require.NoError(t, err)
	require.Len(t, txns, 3)

	// newest first, ending with the opening grant
	assert.Equal(t, int64(-10), txns[0].Amount)
	assert.Equal(t, int64(80), txns[0].BalanceAfter)
	assert.Equal(t, int64(-10), txns[1].Amount)
	assert.Equal(t, int64(90), txns[1].BalanceAfter)
	for _, txn := range txns[:2] {
		assert.Equal(t, dbm.TxnTypeUsage, txn.TransactionType)
		assert.Equal(t, ActionVideoGeneration, txn.Metadata["action"])
	}
	assert.Equal(t, dbm.TxnTypeBonus, txns[2].TransactionType)
	assert.Equal(t, int64(100), txns[2].Amount)

	logs, err := f.store.ListUsageLogsSince(context.Background(), bid, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "user-1", logs[0].UserID)
	assert.Equal(t, int64(10), logs[0].CreditsUsed)

	f.requireConsistentLedger(t, bid)
}

func TestConsumeCredits_ActionKeyIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	bid := f.business(t, 10)

	balance, err := consume(t, f.credits, bid, " script_generation ")
	require.NoError(t, err)
	assert.Equal(t, int64(7), balance)
}

func TestConsumeCredits_Insufficient(t *testing.T) {
	f := newFixture(t)
	bid := f.business(t, 5)

	_, err := consume(t, f.credits, bid, ActionVideoGeneration)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrInsufficientCredits))

	var shortfall *utils.InsufficientCreditsError
	require.ErrorAs(t, err, &shortfall)
	assert.Equal(t, int64(10), shortfall.Required)
	assert.Equal(t, int64(5), shortfall.Available)

	assert.Equal(t, int64(5), f.balance(t, bid))
	assert.Empty(t, f.history(t, bid))
}

func TestConsumeCredits_ExactBalanceReachesZero(t *testing.T) {
	f := newFixture(t)
	bid := f.business(t, 10)

	balance, err := consume(t, f.credits, bid, ActionVideoGeneration)
	require.NoError(t, err)
	assert.Zero(t, balance)

	_, err = consume(t, f.credits, bid, ActionVoiceoverGeneration)
	assert.ErrorIs(t, err, utils.ErrInsufficientCredits)
}

func TestConsumeCredits_InvalidAction(t *testing.T) {
	f := newFixture(t)
	bid := f.business(t, 100)

	_, err := consume(t, f.credits, bid, "TELEPORT")
	assert.ErrorIs(t, err, utils.ErrInvalidAction)
	assert.Equal(t, int64(100), f.balance(t, bid))
}

func TestConsumeCredits_UnknownBusiness(t *testing.T) {
	f := newFixture(t)

	_, err := consume(t, f.credits, uuid.New(), ActionVideoGeneration)
	assert.ErrorIs(t, err, utils.ErrBusinessNotFound)
}

func TestGetBalance(t *testing.T) {
	f := newFixture(t)
	bid := f.businessOnPlan(t, 42, dbm.PlanPro)

	balance, err := f.credits.GetBalance(context.Background(), bid)
	require.NoError(t, err)
	assert.Equal(t, bid, balance.BusinessID)
	assert.Equal(t, int64(42), balance.Credits)
	assert.Equal(t, "PRO", balance.Plan)
	assert.Equal(t, "active", balance.Status)

	_, err = f.credits.GetBalance(context.Background(), uuid.New())
	assert.ErrorIs(t, err, utils.ErrBusinessNotFound)
}

func TestCheckCredits(t *testing.T) {
	f := newFixture(t)
	bid := f.business(t, 7)
	ctx := context.Background()

	check, err := f.credits.CheckCredits(ctx, bid, "image_generation")
	require.NoError(t, err)
	assert.Equal(t, ActionImageGeneration, check.Action)
	assert.Equal(t, int64(5), check.Required)
	assert.Equal(t, int64(7), check.Available)
	assert.True(t, check.Sufficient)

	ok, err := f.credits.HasSufficientCredits(ctx, bid, ActionVideoGeneration)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.credits.HasSufficientCredits(ctx, bid, "nope")
	assert.ErrorIs(t, err, utils.ErrInvalidAction)

	// checks never write
	assert.Empty(t, f.history(t, bid))
}

func TestAddCredits(t *testing.T) {
	f := newFixture(t)
	bid := f.business(t, 0)
	ctx := context.Background()

	balance, err := f.credits.AddCredits(ctx, AddCreditsParams{
		BusinessID:            bid,
		Amount:                250,
		TransactionType:       dbm.TxnTypePurchase,
		Description:           "Purchased 250 credits",
		StripePaymentIntentID: "pi_123",
		Metadata:              map[string]interface{}{"source": "test"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(250), balance)

	txns := f.history(t, bid)
	require.Len(t, txns, 1)
	assert.Equal(t, dbm.TxnTypePurchase, txns[0].TransactionType)
	assert.Equal(t, int64(250), txns[0].Amount)
	assert.Equal(t, int64(250), txns[0].BalanceAfter)
	require.NotNil(t, txns[0].StripePaymentIntentID)
	assert.Equal(t, "pi_123", *txns[0].StripePaymentIntentID)
	assert.Equal(t, "test", txns[0].Metadata["source"])
}

func TestAddCredits_Validation(t *testing.T) {
	f := newFixture(t)
	bid := f.business(t, 0)
	ctx := context.Background()

	tests := []struct {
		name   string
		params AddCreditsParams
		want   error
	}{
		{"zero amount", AddCreditsParams{BusinessID: bid, Amount: 0, TransactionType: dbm.TxnTypeBonus}, utils.ErrInvalidAmount},
		{"negative amount", AddCreditsParams{BusinessID: bid, Amount: -5, TransactionType: dbm.TxnTypeBonus}, utils.ErrInvalidAmount},
		{"usage type", AddCreditsParams{BusinessID: bid, Amount: 5, TransactionType: dbm.TxnTypeUsage}, utils.ErrInvalidTransactionType},
		{"unknown type", AddCreditsParams{BusinessID: bid, Amount: 5, TransactionType: "gift"}, utils.ErrInvalidTransactionType},
		{"unknown business", AddCreditsParams{BusinessID: uuid.New(), Amount: 5, TransactionType: dbm.TxnTypeBonus}, utils.ErrBusinessNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.credits.AddCredits(ctx, tt.params)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, f.balance(t, bid))
	assert.Empty(t, f.history(t, bid))
}

func TestAddCredits_DuplicatePaymentReference(t *testing.T) {
	f := newFixture(t)
	bid := f.business(t, 0)
	ctx := context.Background()
	params := AddCreditsParams{
		BusinessID:            bid,
		Amount:                100,
		TransactionType:       dbm.TxnTypePurchase,
		StripePaymentIntentID: "pi_dup",
	}

	_, err := f.credits.AddCredits(ctx, params)
	require.NoError(t, err)
	_, err = f.credits.AddCredits(ctx, params)
	assert.ErrorIs(t, err, utils.ErrDuplicatePayment)

	assert.Equal(t, int64(100), f.balance(t, bid))
	assert.Len(t, f.history(t, bid), 1)
}

func TestLedgerConsistency_MixedSequence(t *testing.T) {
	f := newFixture(t)
	bid := f.business(t, 20)
	ctx := context.Background()

	steps := []func() error{
		func() error { _, err := consume(t, f.credits, bid, ActionVideoGeneration); return err },
		func() error {
			_, err := f.credits.AddCredits(ctx, AddCreditsParams{BusinessID: bid, Amount: 30, TransactionType: dbm.TxnTypeBonus})
			return err
		},
		func() error { _, err := consume(t, f.credits, bid, ActionImageGeneration); return err },
		func() error { _, err := consume(t, f.credits, bid, ActionSceneRegeneration); return err },
		func() error {
			_, err := f.credits.AddCredits(ctx, AddCreditsParams{BusinessID: bid, Amount: 4, TransactionType: dbm.TxnTypeRefund})
			return err
		},
		func() error { _, err := consume(t, f.credits, bid, ActionVideoAssembly); return err },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
	}

	// 20 - 10 + 30 - 5 - 4 + 4 - 5
	assert.Equal(t, int64(30), f.balance(t, bid))
	f.requireConsistentLedger(t, bid)
}

func TestNonNegativity_RandomishSequence(t *testing.T) {
	f := newFixture(t)
	bid := f.business(t, 12)
	actions := []string{ActionVideoGeneration, ActionScriptGeneration, ActionImageGeneration, ActionVoiceoverGeneration}

	rejected := 0
	for i := 0; i < 40; i++ {
		before := f.balance(t, bid)
		_, err := consume(t, f.credits, bid, actions[i%len(actions)])
		if err != nil {
			require.ErrorIs(t, err, utils.ErrInsufficientCredits)
			require.Equal(t, before, f.balance(t, bid))
			rejected++
		}
		if i%7 == 0 {
			_, err := f.credits.AddCredits(context.Background(), AddCreditsParams{BusinessID: bid, Amount: 3, TransactionType: dbm.TxnTypeBonus})
			require.NoError(t, err)
		}
		require.GreaterOrEqual(t, f.balance(t, bid), int64(0))
	}
	assert.Positive(t, rejected)
	f.requireConsistentLedger(t, bid)
}

func TestConsumeCredits_ConcurrentOnlyOneFits(t *testing.T) {
	f := newFixture(t)
	bid := f.business(t, 10)

	var succeeded, insufficient int32
	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := consume(t, f.credits, bid, ActionVideoGeneration)
			switch {
			case err == nil:
				atomic.AddInt32(&succeeded, 1)
			case errors.Is(err, utils.ErrInsufficientCredits), errors.Is(err, utils.ErrPersistenceConflict):
				atomic.AddInt32(&insufficient, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), succeeded)
	assert.Equal(t, int32(1), insufficient)
	assert.Zero(t, f.balance(t, bid))
	assert.Len(t, f.history(t, bid), 1)
}

func TestConsumeCredits_ConcurrentMatchesSequential(t *testing.T) {
	f := newFixture(t)
	bid := f.business(t, 52)

	var succeeded int32
	var g errgroup.Group
	for i := 0; i < 25; i++ {
		g.Go(func() error {
			_, err := consume(t, f.credits, bid, ActionImageGeneration)
			if err == nil {
				atomic.AddInt32(&succeeded, 1)
				return nil
			}
			if errors.Is(err, utils.ErrInsufficientCredits) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(10), succeeded)
	assert.Equal(t, int64(2), f.balance(t, bid))
	f.requireConsistentLedger(t, bid)
}

func TestConsumeCredits_RetriesPersistenceConflict(t *testing.T) {
	f := newFixture(t)
	bid := f.business(t, 30)

	f.store.FailNextCommits(2, utils.ErrPersistenceConflict)
	balance, err := consume(t, f.credits, bid, ActionVideoGeneration)
	require.NoError(t, err)
	assert.Equal(t, int64(20), balance)
	assert.Len(t, f.history(t, bid), 1)
	f.requireConsistentLedger(t, bid)
}

func TestConsumeCredits_GivesUpAfterMaxRetries(t *testing.T) {
	f := newFixture(t)
	bid := f.business(t, 30)

	f.store.FailNextCommits(4, utils.ErrPersistenceConflict)
	_, err := consume(t, f.credits, bid, ActionVideoGeneration)
	assert.ErrorIs(t, err, utils.ErrPersistenceConflict)
	assert.Equal(t, int64(30), f.balance(t, bid))
	assert.Empty(t, f.history(t, bid))
}

func TestConsumeCredits_OtherCommitErrorsAreNotRetried(t *testing.T) {
	f := newFixture(t)
	bid := f.business(t, 30)
	boom := errors.New("connection reset")

	f.store.FailNextCommits(1, boom)
	_, err := consume(t, f.credits, bid, ActionVideoGeneration)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(30), f.balance(t, bid))

	_, err = consume(t, f.credits, bid, ActionVideoGeneration)
	assert.NoError(t, err)
}

func TestGetHistory_Paging(t *testing.T) {
	f := newFixture(t)
	bid := f.business(t, 100)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := consume(t, f.credits, bid, ActionScriptGeneration)
		require.NoError(t, err)
	}

	page, err := f.credits.GetHistory(ctx, bid, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(85), page[0].BalanceAfter)
	assert.Equal(t, int64(88), page[1].BalanceAfter)

	page, err = f.credits.GetHistory(ctx, bid, 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(97), page[0].BalanceAfter)
	assert.Equal(t, dbm.TxnTypeBonus, page[1].TransactionType)
	assert.Equal(t, int64(100), page[1].BalanceAfter)

	page, err = f.credits.GetHistory(ctx, bid, 10, 50)
	require.NoError(t, err)
	assert.Empty(t, page)

	_, err = f.credits.GetHistory(ctx, bid, 0, 0)
	assert.ErrorIs(t, err, utils.ErrInvalidPageSize)
	_, err = f.credits.GetHistory(ctx, bid, 101, 0)
	assert.ErrorIs(t, err, utils.ErrInvalidPageSize)
	_, err = f.credits.GetHistory(ctx, bid, 10, -1)
	assert.ErrorIs(t, err, utils.ErrInvalidPage)
	_, err = f.credits.GetHistory(ctx, uuid.New(), 10, 0)
	assert.ErrorIs(t, err, utils.ErrBusinessNotFound)
}

func TestGetHistory_IsolatedPerBusiness(t *testing.T) {
	f := newFixture(t)
	a := f.business(t, 50)
	b := f.business(t, 50)

	_, err := consume(t, f.credits, a, ActionVideoGeneration)
	require.NoError(t, err)

	txns, err := f.credits.GetHistory(context.Background(), b, 10, 0)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, dbm.TxnTypeBonus, txns[0].TransactionType)
	assert.Equal(t, b, txns[0].BusinessID)
	assert.Equal(t, int64(50), f.balance(t, b))
}

func TestGetAnalytics_BucketsByDayAndAction(t *testing.T) {
	f := newFixture(t)
	bid := f.business(t, 100)

	f.clock.T = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	_, err := consume(t, f.credits, bid, ActionVideoGeneration)
	require.NoError(t, err)

	f.clock.T = time.Date(2025, 3, 8, 9, 30, 0, 0, time.UTC)
	_, err = consume(t, f.credits, bid, ActionImageGeneration)
	require.NoError(t, err)

	f.clock.T = testNow
	for _, action := range []string{ActionScriptGeneration, ActionScriptGeneration, ActionVideoGeneration} {
		_, err = consume(t, f.credits, bid, action)
		require.NoError(t, err)
	}

	breakdown, err := f.credits.GetAnalytics(context.Background(), bid, 7)
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]int64{
		"2025-03-08": {ActionImageGeneration: 5},
		"2025-03-10": {ActionScriptGeneration: 6, ActionVideoGeneration: 10},
	}, breakdown)

	breakdown, err = f.credits.GetAnalytics(context.Background(), bid, 0)
	require.NoError(t, err)
	assert.Contains(t, breakdown, "2025-03-01")
}

func TestGetAnalytics_UsesConfiguredZone(t *testing.T) {
	store := repositories.NewMemoryStore()
	clock := &utils.FixedClock{T: time.Date(2025, 3, 9, 20, 0, 0, 0, time.UTC)}
	plus7 := time.FixedZone("UTC+7", 7*3600)
	svc := NewCreditService(store, clock, 3, plus7)

	b, err := svc.ProvisionBusiness(context.Background(), ProvisionBusinessParams{Name: "Pho House", OpeningCredits: 20})
	require.NoError(t, err)

	_, err = consume(t, svc, b.ID, ActionVideoGeneration)
	require.NoError(t, err)

	breakdown, err := svc.GetAnalytics(context.Background(), b.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]int64{"2025-03-10": {ActionVideoGeneration: 10}}, breakdown)
}

func TestNormalizeAnalyticsDays(t *testing.T) {
	assert.Equal(t, DefaultAnalyticsDays, NormalizeAnalyticsDays(0))
	assert.Equal(t, DefaultAnalyticsDays, NormalizeAnalyticsDays(-3))
	assert.Equal(t, 14, NormalizeAnalyticsDays(14))
	assert.Equal(t, MaxAnalyticsDays, NormalizeAnalyticsDays(10_000))
}

func TestAllocateMonthlyCredits(t *testing.T) {
	f := newFixture(t)
	bid := f.businessOnPlan(t, 5, dbm.PlanPro)
	ctx := context.Background()

	balance, err := f.credits.AllocateMonthlyCredits(ctx, bid, "", "invoice:in_1")
	require.NoError(t, err)
	assert.Equal(t, int64(505), balance)

	balance, err = f.credits.AllocateMonthlyCredits(ctx, bid, "starter", "")
	require.NoError(t, err)
	assert.Equal(t, int64(605), balance)

	_, err = f.credits.AllocateMonthlyCredits(ctx, bid, "", "invoice:in_1")
	assert.ErrorIs(t, err, utils.ErrDuplicatePayment)

	_, err = f.credits.AllocateMonthlyCredits(ctx, bid, "platinum", "")
	assert.ErrorIs(t, err, utils.ErrInvalidPlan)

	txns := f.history(t, bid)
	require.Len(t, txns, 2)
	assert.Equal(t, 2, countType(txns, dbm.TxnTypeMonthlyAllocation))
	assert.Equal(t, "PRO", txns[0].Metadata["plan"])
	f.requireConsistentLedger(t, bid)
}

func TestQuotePurchase(t *testing.T) {
	f := newFixture(t)
	bid := f.businessOnPlan(t, 0, dbm.PlanEnterprise)

	quote, err := f.credits.QuotePurchase(context.Background(), bid, 250)
	require.NoError(t, err)
	assert.Equal(t, "ENTERPRISE", quote.Plan)
	assert.Equal(t, int64(8), quote.PricePerCreditMinor)
	assert.Equal(t, int64(2000), quote.TotalMinor)
	assert.Equal(t, "USD", quote.Currency)

	_, err = f.credits.QuotePurchase(context.Background(), bid, 0)
	assert.ErrorIs(t, err, utils.ErrInvalidAmount)

	quote, err = f.credits.QuotePurchase(context.Background(), bid, MaxPurchaseCredits)
	require.NoError(t, err)
	assert.Equal(t, int64(MaxPurchaseCredits*8), quote.TotalMinor)

	// Large enough that credits*price would wrap int64.
	_, err = f.credits.QuotePurchase(context.Background(), bid, 1<<60)
	assert.ErrorIs(t, err, utils.ErrInvalidAmount)
}

func TestProvisionBusiness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.credits.ProvisionBusiness(ctx, ProvisionBusinessParams{
		Name:           "Corner Bakery",
		OwnerID:        "owner-9",
		Plan:           "pro",
		OpeningCredits: 75,
	})
	require.NoError(t, err)
	assert.Equal(t, dbm.PlanPro, b.SubscriptionPlan)
	assert.Equal(t, dbm.SubStatusActive, b.SubscriptionStatus)
	assert.Equal(t, int64(75), b.Credits)

	txns := f.fullHistory(t, b.ID)
	require.Len(t, txns, 1)
	assert.Equal(t, dbm.TxnTypeBonus, txns[0].TransactionType)
	assert.Equal(t, "Opening balance", txns[0].Description)
	f.requireConsistentLedger(t, b.ID)

	_, err = consume(t, f.credits, b.ID, ActionVideoGeneration)
	require.NoError(t, err)
	f.requireConsistentLedger(t, b.ID)
}

func TestProvisionBusiness_Defaults(t *testing.T) {
	f := newFixture(t)

	b, err := f.credits.ProvisionBusiness(context.Background(), ProvisionBusinessParams{Name: "Kiosk"})
	require.NoError(t, err)
	assert.Equal(t, dbm.PlanFree, b.SubscriptionPlan)
	assert.Zero(t, b.Credits)
	assert.Empty(t, f.fullHistory(t, b.ID))
}

func TestProvisionBusiness_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	existing := f.business(t, 10)

	_, err := f.credits.ProvisionBusiness(ctx, ProvisionBusinessParams{ID: existing, Name: "Again"})
	assert.ErrorIs(t, err, utils.ErrBusinessExists)
	assert.Equal(t, int64(10), f.balance(t, existing))

	_, err = f.credits.ProvisionBusiness(ctx, ProvisionBusinessParams{Name: "Neg", OpeningCredits: -1})
	assert.ErrorIs(t, err, utils.ErrInvalidAmount)

	_, err = f.credits.ProvisionBusiness(ctx, ProvisionBusinessParams{Name: "Odd", Plan: "platinum"})
	assert.ErrorIs(t, err, utils.ErrInvalidPlan)
}

func TestProvisionBusiness_RollsBackOnCommitFailure(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()

	f.store.FailNextCommits(1, errors.New("disk full"))
	_, err := f.credits.ProvisionBusiness(context.Background(), ProvisionBusinessParams{ID: id, Name: "Flaky", OpeningCredits: 40})
	require.Error(t, err)

	_, err = f.credits.GetBalance(context.Background(), id)
	assert.ErrorIs(t, err, utils.ErrBusinessNotFound)
	assert.Empty(t, f.fullHistory(t, id))
}
