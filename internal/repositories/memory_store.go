package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	dbm "reelcraft/internal/models/db_models"
	"reelcraft/pkg/utils"
)

// MemoryStore is an in-process Store with the same transactional contract as
// the gorm store: transactions are serialized and roll back on error.
// Test fixtures only; cmd/app always runs against Postgres.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState

	// failCommits makes the next n transactions roll back with err after fn
	// succeeds, the way a serialization failure surfaces at COMMIT.
	failCommits int
	failErr     error
}

type memoryState struct {
	businesses   map[uuid.UUID]dbm.Business
	transactions []dbm.CreditTransaction
	usageLogs    []dbm.CreditUsageLog
	campaigns    map[uuid.UUID]dbm.Campaign
	campaignSeq  []uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memoryState{
			businesses: make(map[uuid.UUID]dbm.Business),
			campaigns:  make(map[uuid.UUID]dbm.Campaign),
		},
	}
}

// FailNextCommits arranges for the next n transactions to abort with err.
func (s *MemoryStore) FailNextCommits(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommits = n
	s.failErr = err
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	err := fn(&memoryTx{state: s.state})
	if err == nil && s.failCommits > 0 {
		s.failCommits--
		err = s.failErr
	}
	if err != nil {
		*s.state = *snapshot
	}
	return err
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) CreateBusiness(ctx context.Context, business *dbm.Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().CreateBusiness(ctx, business)
}

func (s *MemoryStore) FindBusinessByID(ctx context.Context, id uuid.UUID) (*dbm.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().FindBusinessByID(ctx, id)
}

func (s *MemoryStore) FindBusinessByStripeCustomer(ctx context.Context, customerID string) (*dbm.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().FindBusinessByStripeCustomer(ctx, customerID)
}

func (s *MemoryStore) AdjustCredits(ctx context.Context, id uuid.UUID, delta int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().AdjustCredits(ctx, id, delta)
}

func (s *MemoryStore) UpdateSubscription(ctx context.Context, id uuid.UUID, update SubscriptionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().UpdateSubscription(ctx, id, update)
}

func (s *MemoryStore) InsertTransaction(ctx context.Context, txn *dbm.CreditTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().InsertTransaction(ctx, txn)
}

func (s *MemoryStore) InsertUsageLog(ctx context.Context, entry *dbm.CreditUsageLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().InsertUsageLog(ctx, entry)
}

func (s *MemoryStore) ListTransactions(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]dbm.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().ListTransactions(ctx, businessID, limit, offset)
}

func (s *MemoryStore) FindTransactionByPaymentRef(ctx context.Context, ref string) (*dbm.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().FindTransactionByPaymentRef(ctx, ref)
}

func (s *MemoryStore) ListUsageLogsSince(ctx context.Context, businessID uuid.UUID, sinceUnixNano int64) ([]dbm.CreditUsageLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().ListUsageLogsSince(ctx, businessID, sinceUnixNano)
}

func (s *MemoryStore) CreateCampaign(ctx context.Context, campaign *dbm.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().CreateCampaign(ctx, campaign)
}

func (s *MemoryStore) FindCampaignByID(ctx context.Context, businessID, id uuid.UUID) (*dbm.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().FindCampaignByID(ctx, businessID, id)
}

func (s *MemoryStore) FindCampaignForUpdate(ctx context.Context, businessID, id uuid.UUID) (*dbm.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().FindCampaignForUpdate(ctx, businessID, id)
}

func (s *MemoryStore) UpdateCampaign(ctx context.Context, campaign *dbm.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().UpdateCampaign(ctx, campaign)
}

func (s *MemoryStore) ListCampaigns(ctx context.Context, filter CampaignFilter) ([]dbm.Campaign, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().ListCampaigns(ctx, filter)
}

func (s *MemoryStore) tx() *memoryTx {
	return &memoryTx{state: s.state}
}

// memoryTx operates on the state without locking; the caller holds MemoryStore.mu.
type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) Transaction(ctx context.Context, fn func(tx Store) error) error {
	snapshot := t.state.clone()
	if err := fn(t); err != nil {
		*t.state = *snapshot
		return err
	}
	return nil
}

func (t *memoryTx) Ping(context.Context) error { return nil }

func (t *memoryTx) CreateBusiness(_ context.Context, business *dbm.Business) error {
	if business.Credits != 0 {
		return fmt.Errorf("%w: opening balance must be granted through the ledger", utils.ErrInvalidAmount)
	}
	if business.ID == uuid.Nil {
		business.ID = uuid.New()
	}
	if _, ok := t.state.businesses[business.ID]; ok {
		return utils.ErrBusinessExists
	}
	if business.SubscriptionPlan == "" {
		business.SubscriptionPlan = dbm.PlanFree
	}
	if business.SubscriptionStatus == "" {
		business.SubscriptionStatus = dbm.SubStatusActive
	}
	t.state.businesses[business.ID] = *business
	return nil
}

func (t *memoryTx) FindBusinessByID(_ context.Context, id uuid.UUID) (*dbm.Business, error) {
	b, ok := t.state.businesses[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (t *memoryTx) FindBusinessByStripeCustomer(_ context.Context, customerID string) (*dbm.Business, error) {
	for _, b := range t.state.businesses {
		if b.StripeCustomerID == customerID {
			found := b
			return &found, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) AdjustCredits(_ context.Context, id uuid.UUID, delta int64) (int64, bool, error) {
	b, ok := t.state.businesses[id]
	if !ok {
		return 0, false, utils.ErrBusinessNotFound
	}
	if b.Credits+delta < 0 {
		return b.Credits, false, nil
	}
	b.Credits += delta
	t.state.businesses[id] = b
	return b.Credits, true, nil
}

func (t *memoryTx) UpdateSubscription(_ context.Context, id uuid.UUID, update SubscriptionUpdate) error {
	b, ok := t.state.businesses[id]
	if !ok {
		return utils.ErrBusinessNotFound
	}
	if update.Plan != nil {
		b.SubscriptionPlan = *update.Plan
	}
	if update.Status != nil {
		b.SubscriptionStatus = *update.Status
	}
	if update.ExpiresAt != nil {
		expires := *update.ExpiresAt
		b.SubscriptionExpiresAt = &expires
	}
	if update.StripeCustomerID != nil {
		b.StripeCustomerID = *update.StripeCustomerID
	}
	if update.StripeSubscriptionID != nil {
		b.StripeSubscriptionID = *update.StripeSubscriptionID
	}
	t.state.businesses[id] = b
	return nil
}

func (t *memoryTx) InsertTransaction(_ context.Context, txn *dbm.CreditTransaction) error {
	if txn.StripePaymentIntentID != nil {
		for _, existing := range t.state.transactions {
			if existing.StripePaymentIntentID != nil && *existing.StripePaymentIntentID == *txn.StripePaymentIntentID {
				return utils.ErrDuplicatePayment
			}
		}
	}
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	t.state.transactions = append(t.state.transactions, *txn)
	return nil
}

func (t *memoryTx) InsertUsageLog(_ context.Context, entry *dbm.CreditUsageLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	t.state.usageLogs = append(t.state.usageLogs, *entry)
	return nil
}

// ListTransactions walks the log backwards; insertion order is creation order.
func (t *memoryTx) ListTransactions(_ context.Context, businessID uuid.UUID, limit, offset int) ([]dbm.CreditTransaction, error) {
	result := make([]dbm.CreditTransaction, 0, limit)
	skipped := 0
	for i := len(t.state.transactions) - 1; i >= 0 && len(result) < limit; i-- {
		txn := t.state.transactions[i]
		if txn.BusinessID != businessID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		result = append(result, txn)
	}
	return result, nil
}

func (t *memoryTx) FindTransactionByPaymentRef(_ context.Context, ref string) (*dbm.CreditTransaction, error) {
	for _, txn := range t.state.transactions {
		if txn.StripePaymentIntentID != nil && *txn.StripePaymentIntentID == ref {
			found := txn
			return &found, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) ListUsageLogsSince(_ context.Context, businessID uuid.UUID, sinceUnixNano int64) ([]dbm.CreditUsageLog, error) {
	result := make([]dbm.CreditUsageLog, 0)
	for _, entry := range t.state.usageLogs {
		if entry.BusinessID == businessID && entry.CreatedAt >= sinceUnixNano {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (t *memoryTx) CreateCampaign(_ context.Context, campaign *dbm.Campaign) error {
	if campaign.ID == uuid.Nil {
		campaign.ID = uuid.New()
	}
	if _, ok := t.state.businesses[campaign.BusinessID]; !ok {
		return utils.ErrBusinessNotFound
	}
	t.state.campaigns[campaign.ID] = cloneCampaign(*campaign)
	t.state.campaignSeq = append(t.state.campaignSeq, campaign.ID)
	return nil
}

func (t *memoryTx) FindCampaignByID(_ context.Context, businessID, id uuid.UUID) (*dbm.Campaign, error) {
	c, ok := t.state.campaigns[id]
	if !ok || c.BusinessID != businessID {
		return nil, nil
	}
	c = cloneCampaign(c)
	return &c, nil
}

func (t *memoryTx) FindCampaignForUpdate(ctx context.Context, businessID, id uuid.UUID) (*dbm.Campaign, error) {
	return t.FindCampaignByID(ctx, businessID, id)
}

func (t *memoryTx) UpdateCampaign(_ context.Context, campaign *dbm.Campaign) error {
	existing, ok := t.state.campaigns[campaign.ID]
	if !ok || existing.BusinessID != campaign.BusinessID {
		return utils.ErrCampaignNotFound
	}
	t.state.campaigns[campaign.ID] = cloneCampaign(*campaign)
	return nil
}

func (t *memoryTx) ListCampaigns(_ context.Context, filter CampaignFilter) ([]dbm.Campaign, int64, error) {
	matched := make([]dbm.Campaign, 0)
	for i := len(t.state.campaignSeq) - 1; i >= 0; i-- {
		c := t.state.campaigns[t.state.campaignSeq[i]]
		if c.BusinessID != filter.BusinessID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		matched = append(matched, cloneCampaign(c))
	}
	// Newest first, matching ORDER BY created_at DESC.
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt > matched[j].CreatedAt })

	total := int64(len(matched))
	start := filter.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit
	if filter.Limit == 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *memoryState) clone() *memoryState {
	out := &memoryState{
		businesses:   make(map[uuid.UUID]dbm.Business, len(s.businesses)),
		transactions: append([]dbm.CreditTransaction(nil), s.transactions...),
		usageLogs:    append([]dbm.CreditUsageLog(nil), s.usageLogs...),
		campaigns:    make(map[uuid.UUID]dbm.Campaign, len(s.campaigns)),
		campaignSeq:  append([]uuid.UUID(nil), s.campaignSeq...),
	}
	for id, b := range s.businesses {
		out.businesses[id] = b
	}
	for id, c := range s.campaigns {
		out.campaigns[id] = cloneCampaign(c)
	}
	return out
}

func cloneCampaign(c dbm.Campaign) dbm.Campaign {
	c.Settings = cloneJSONMap(c.Settings)
	c.Metadata = cloneJSONMap(c.Metadata)
	c.SceneData = cloneJSONMap(c.SceneData)
	return c
}

func cloneJSONMap(m datatypes.JSONMap) datatypes.JSONMap {
	if m == nil {
		return nil
	}
	out := make(datatypes.JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*memoryTx)(nil)
	_ Store = (*gormStore)(nil)
)
