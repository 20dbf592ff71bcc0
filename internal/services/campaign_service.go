package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	dbm "reelcraft/internal/models/db_models"
	"reelcraft/internal/repositories"
	"reelcraft/pkg/metrics"
	"reelcraft/pkg/utils"
)

const (
	DefaultCampaignPageSize = 20
	MaxCampaignPageSize     = 100
)

type CreateCampaignParams struct {
	BusinessID   uuid.UUID
	UserID       string
	Name         string
	CampaignType string
	Settings     map[string]interface{}
	Metadata     map[string]interface{}
	SceneData    map[string]interface{}
}

// UpdateCampaignParams patches a draft. Nil fields are left alone. Settings
// replaces the stored blob; Metadata and SceneData are merged key by key and
// a nil value deletes the key.
type UpdateCampaignParams struct {
	Name         *string
	CampaignType *string
	Settings     map[string]interface{}
	Metadata     map[string]interface{}
	SceneData    map[string]interface{}
}

type CampaignServiceInterface interface {
	EstimateCredits(campaignType string, settings map[string]interface{}) (int64, error)
	CreateCampaign(ctx context.Context, params CreateCampaignParams) (*dbm.Campaign, error)
	GetCampaign(ctx context.Context, businessID, campaignID uuid.UUID) (*dbm.Campaign, error)
	ListCampaigns(ctx context.Context, businessID uuid.UUID, status string, limit, offset int) ([]dbm.Campaign, int64, error)
	UpdateDraft(ctx context.Context, businessID, campaignID uuid.UUID, params UpdateCampaignParams) (*dbm.Campaign, error)
	StartCampaign(ctx context.Context, businessID, campaignID uuid.UUID, userID string) (*dbm.Campaign, error)
	CompleteCampaign(ctx context.Context, businessID, campaignID uuid.UUID, actualCreditsUsed *int64) (*dbm.Campaign, error)
	FailCampaign(ctx context.Context, businessID, campaignID uuid.UUID, reason string) (*dbm.Campaign, error)
	CancelCampaign(ctx context.Context, businessID, campaignID uuid.UUID, reason string) (*dbm.Campaign, error)
}

type CampaignService struct {
	store      repositories.Store
	ledger     ledger
	clock      utils.Clock
	maxRetries int
}

func NewCampaignService(store repositories.Store, clock utils.Clock, maxRetries int) CampaignServiceInterface {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &CampaignService{
		store:      store,
		ledger:     ledger{clock: clock},
		clock:      clock,
		maxRetries: maxRetries,
	}
}

func (s *CampaignService) EstimateCredits(campaignType string, settings map[string]interface{}) (int64, error) {
	return EstimateCredits(normalizeCampaignType(campaignType), settings)
}

func (s *CampaignService) CreateCampaign(ctx context.Context, params CreateCampaignParams) (*dbm.Campaign, error) {
	campaignType := normalizeCampaignType(params.CampaignType)
	estimate, err := EstimateCredits(campaignType, params.Settings)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().Unix()
	campaign := &dbm.Campaign{
		BaseModel:        dbm.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		BusinessID:       params.BusinessID,
		UserID:           params.UserID,
		Name:             strings.TrimSpace(params.Name),
		Status:           dbm.CampaignStatusDraft,
		CampaignType:     campaignType,
		EstimatedCredits: estimate,
		Settings:         datatypes.JSONMap(copyMap(params.Settings)),
		Metadata:         datatypes.JSONMap(copyMap(params.Metadata)),
		SceneData:        datatypes.JSONMap(copyMap(params.SceneData)),
	}

	business, err := s.store.FindBusinessByID(ctx, params.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if business == nil {
		return nil, utils.ErrBusinessNotFound
	}
	if err := s.store.CreateCampaign(ctx, campaign); err != nil {
		return nil, err
	}

	log.Info().
		Str("business_id", params.BusinessID.String()).
		Str("campaign_id", campaign.ID.String()).
		Int64("estimated_credits", estimate).
		Msg("campaign created")
	return campaign, nil
}

func (s *CampaignService) GetCampaign(ctx context.Context, businessID, campaignID uuid.UUID) (*dbm.Campaign, error) {
	campaign, err := s.store.FindCampaignByID(ctx, businessID, campaignID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if campaign == nil {
		return nil, utils.ErrCampaignNotFound
	}
	return campaign, nil
}

func (s *CampaignService) ListCampaigns(ctx context.Context, businessID uuid.UUID, status string, limit, offset int) ([]dbm.Campaign, int64, error) {
	if limit < 1 || limit > MaxCampaignPageSize {
		return nil, 0, utils.ErrInvalidPageSize
	}
	if offset < 0 {
		return nil, 0, utils.ErrInvalidPage
	}
	filter := repositories.CampaignFilter{
		BusinessID: businessID,
		Status:     dbm.CampaignStatus(strings.ToLower(strings.TrimSpace(status))),
		Limit:      limit,
		Offset:     offset,
	}
	campaigns, total, err := s.store.ListCampaigns(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	return campaigns, total, nil
}

func (s *CampaignService) UpdateDraft(ctx context.Context, businessID, campaignID uuid.UUID, params UpdateCampaignParams) (*dbm.Campaign, error) {
	var updated *dbm.Campaign
	err := runInTx(ctx, s.store, s.maxRetries, func(tx repositories.Store) error {
		campaign, err := tx.FindCampaignForUpdate(ctx, businessID, campaignID)
		if err != nil {
			return err
		}
		if campaign == nil {
			return utils.ErrCampaignNotFound
		}
		if campaign.Status != dbm.CampaignStatusDraft {
			return fmt.Errorf("%w: status is %s", utils.ErrCampaignNotEditable, campaign.Status)
		}

		if params.Name != nil {
			campaign.Name = strings.TrimSpace(*params.Name)
		}
		if params.CampaignType != nil {
			campaign.CampaignType = normalizeCampaignType(*params.CampaignType)
		}
		if params.Settings != nil {
			campaign.Settings = datatypes.JSONMap(copyMap(params.Settings))
		}
		if params.Metadata != nil {
			campaign.Metadata = mergeJSON(campaign.Metadata, params.Metadata)
		}
		if params.SceneData != nil {
			campaign.SceneData = mergeJSON(campaign.SceneData, params.SceneData)
		}

		estimate, err := EstimateCredits(campaign.CampaignType, campaign.Settings)
		if err != nil {
			return err
		}
		campaign.EstimatedCredits = estimate
		campaign.UpdatedAt = s.clock.Now().Unix()

		if err := tx.UpdateCampaign(ctx, campaign); err != nil {
			return err
		}
		updated = campaign
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// StartCampaign moves a draft to in_progress and debits the estimate.
func (s *CampaignService) StartCampaign(ctx context.Context, businessID, campaignID uuid.UUID, userID string) (*dbm.Campaign, error) {
	return s.transition(ctx, businessID, campaignID, campaignTransition{
		to:   dbm.CampaignStatusInProgress,
		from: []dbm.CampaignStatus{dbm.CampaignStatusDraft},
		apply: func(ctx context.Context, tx repositories.Store, c *dbm.Campaign, fx *effects) error {
			if c.EstimatedCredits > 0 {
				actor := userID
				if actor == "" {
					actor = c.UserID
				}
				if _, err := s.ledger.debit(ctx, tx, debitEntry{
					BusinessID:  c.BusinessID,
					Amount:      c.EstimatedCredits,
					Action:      ActionCampaignStart,
					UserID:      actor,
					Feature:     string(c.CampaignType),
					Description: fmt.Sprintf("Started campaign %s", c.Name),
					Metadata:    campaignMetadata(c),
				}); err != nil {
					return err
				}
				fx.consumed[ActionCampaignStart] += c.EstimatedCredits
			}
			c.CreditsUsed = c.EstimatedCredits
			started := s.clock.Now().Unix()
			c.StartedAt = &started
			return nil
		},
	})
}

// CompleteCampaign reconciles the actual cost against what was debited at
// start. A nil actual keeps the debited amount.
func (s *CampaignService) CompleteCampaign(ctx context.Context, businessID, campaignID uuid.UUID, actualCreditsUsed *int64) (*dbm.Campaign, error) {
	if actualCreditsUsed != nil && *actualCreditsUsed < 0 {
		return nil, utils.ErrInvalidAmount
	}
	return s.transition(ctx, businessID, campaignID, campaignTransition{
		to:   dbm.CampaignStatusCompleted,
		from: []dbm.CampaignStatus{dbm.CampaignStatusInProgress},
		apply: func(ctx context.Context, tx repositories.Store, c *dbm.Campaign, fx *effects) error {
			if actualCreditsUsed != nil {
				actual := *actualCreditsUsed
				delta := actual - c.CreditsUsed
				switch {
				case delta < 0:
					if _, err := s.ledger.credit(ctx, tx, creditEntry{
						BusinessID:  c.BusinessID,
						Amount:      -delta,
						Type:        dbm.TxnTypeRefund,
						Description: fmt.Sprintf("Refund for campaign %s: used %d of %d credits", c.Name, actual, c.CreditsUsed),
						Metadata:    campaignMetadata(c),
					}); err != nil {
						return err
					}
					fx.added[dbm.TxnTypeRefund] += -delta
				case delta > 0:
					if _, err := s.ledger.debit(ctx, tx, debitEntry{
						BusinessID:  c.BusinessID,
						Amount:      delta,
						Action:      ActionCampaignAdjustment,
						UserID:      c.UserID,
						Feature:     string(c.CampaignType),
						Description: fmt.Sprintf("Adjustment for campaign %s: used %d of %d credits", c.Name, actual, c.CreditsUsed),
						Metadata:    campaignMetadata(c),
					}); err != nil {
						return err
					}
					fx.consumed[ActionCampaignAdjustment] += delta
				}
				c.CreditsUsed = actual
			}
			completed := s.clock.Now().Unix()
			c.CompletedAt = &completed
			return nil
		},
	})
}

func (s *CampaignService) FailCampaign(ctx context.Context, businessID, campaignID uuid.UUID, reason string) (*dbm.Campaign, error) {
	return s.transition(ctx, businessID, campaignID, campaignTransition{
		to:    dbm.CampaignStatusFailed,
		from:  []dbm.CampaignStatus{dbm.CampaignStatusInProgress},
		apply: s.refundAndClose(reason, "failed"),
	})
}

// CancelCampaign also accepts drafts, which have nothing to refund.
func (s *CampaignService) CancelCampaign(ctx context.Context, businessID, campaignID uuid.UUID, reason string) (*dbm.Campaign, error) {
	return s.transition(ctx, businessID, campaignID, campaignTransition{
		to:    dbm.CampaignStatusCancelled,
		from:  []dbm.CampaignStatus{dbm.CampaignStatusDraft, dbm.CampaignStatusInProgress},
		apply: s.refundAndClose(reason, "cancelled"),
	})
}

// refundAndClose returns credits_used to the balance. credits_used itself is
// kept on the row as a record of what was reserved.
func (s *CampaignService) refundAndClose(reason, verb string) transitionFunc {
	return func(ctx context.Context, tx repositories.Store, c *dbm.Campaign, fx *effects) error {
		if c.CreditsUsed > 0 {
			if _, err := s.ledger.credit(ctx, tx, creditEntry{
				BusinessID:  c.BusinessID,
				Amount:      c.CreditsUsed,
				Type:        dbm.TxnTypeRefund,
				Description: fmt.Sprintf("Refund for %s campaign %s", verb, c.Name),
				Metadata:    campaignMetadata(c),
			}); err != nil {
				return err
			}
			fx.added[dbm.TxnTypeRefund] += c.CreditsUsed
		}
		c.FailureReason = strings.TrimSpace(reason)
		closed := s.clock.Now().Unix()
		c.CompletedAt = &closed
		return nil
	}
}

type transitionFunc func(ctx context.Context, tx repositories.Store, c *dbm.Campaign, fx *effects) error

type campaignTransition struct {
	to    dbm.CampaignStatus
	from  []dbm.CampaignStatus
	apply transitionFunc
}

// transition locks the campaign row, checks the source status, applies the
// ledger effect, and writes the new status, all in one transaction.
// Re-applying a terminal transition to a campaign already in that state
// returns it unchanged.
func (s *CampaignService) transition(ctx context.Context, businessID, campaignID uuid.UUID, t campaignTransition) (*dbm.Campaign, error) {
	var (
		result *dbm.Campaign
		from   dbm.CampaignStatus
		noop   bool
		fx     *effects
	)
	err := runInTx(ctx, s.store, s.maxRetries, func(tx repositories.Store) error {
		fx = newEffects()
		noop = false

		campaign, err := tx.FindCampaignForUpdate(ctx, businessID, campaignID)
		if err != nil {
			return err
		}
		if campaign == nil {
			return utils.ErrCampaignNotFound
		}
		from = campaign.Status

		if from == t.to && t.to.IsTerminal() {
			noop = true
			result = campaign
			return nil
		}
		if !statusIn(from, t.from) {
			return fmt.Errorf("%w: %s -> %s", utils.ErrInvalidStateTransition, from, t.to)
		}

		if err := t.apply(ctx, tx, campaign, fx); err != nil {
			return err
		}
		campaign.Status = t.to
		campaign.UpdatedAt = s.clock.Now().Unix()
		if err := tx.UpdateCampaign(ctx, campaign); err != nil {
			return err
		}
		result = campaign
		return nil
	})
	if err != nil {
		if utils.IsInsufficient(err) {
			action := ActionCampaignAdjustment
			if t.to == dbm.CampaignStatusInProgress {
				action = ActionCampaignStart
			}
			metrics.RecordInsufficient(action)
		}
		log.WithLevel(transitionLogLevel(err)).Err(err).
			Str("campaign_id", campaignID.String()).
			Str("to", string(t.to)).
			Msg("campaign transition rejected")
		return nil, err
	}
	if noop {
		return result, nil
	}

	fx.flush()
	metrics.RecordTransition(string(from), string(t.to))
	log.Info().
		Str("business_id", businessID.String()).
		Str("campaign_id", campaignID.String()).
		Str("from", string(from)).
		Str("to", string(t.to)).
		Int64("credits_used", result.CreditsUsed).
		Msg("campaign transitioned")
	return result, nil
}

// transitionLogLevel keeps caller mistakes at info so storage failures stand out.
func transitionLogLevel(err error) zerolog.Level {
	switch {
	case errors.Is(err, utils.ErrInvalidStateTransition),
		errors.Is(err, utils.ErrCampaignNotFound),
		errors.Is(err, utils.ErrBusinessNotFound),
		errors.Is(err, utils.ErrCampaignNotEditable),
		errors.Is(err, utils.ErrInvalidAmount),
		utils.IsInsufficient(err):
		return zerolog.InfoLevel
	default:
		return zerolog.ErrorLevel
	}
}

func statusIn(status dbm.CampaignStatus, allowed []dbm.CampaignStatus) bool {
	for _, s := range allowed {
		if s == status {
			return true
		}
	}
	return false
}

func normalizeCampaignType(t string) dbm.CampaignType {
	return dbm.CampaignType(strings.ToLower(strings.TrimSpace(t)))
}

func campaignMetadata(c *dbm.Campaign) map[string]interface{} {
	return map[string]interface{}{
		"campaign_id":   c.ID.String(),
		"campaign_type": string(c.CampaignType),
	}
}

// mergeJSON applies a shallow patch to a stored blob. Nil patch values delete.
func mergeJSON(stored datatypes.JSONMap, patch map[string]interface{}) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(stored)+len(patch))
	for k, v := range stored {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}
