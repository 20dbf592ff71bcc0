package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	dbm "reelcraft/internal/models/db_models"
	"reelcraft/internal/repositories"
	"reelcraft/pkg/utils"
)

// Checkout and subscription objects carry these metadata keys, set when the
// session is created by the billing frontend.
const (
	metaBusinessID   = "business_id"
	metaBusinessName = "business_name"
	metaOwnerID      = "owner_id"
	metaCredits      = "credits"
	metaPlan         = "plan"
)

type StripeConfig struct {
	WebhookSecret string
}

// WebhookResult reports what an event did, for logging and the response body.
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Handled   bool   `json:"handled"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Balance   *int64 `json:"balance,omitempty"`
}

type PaymentService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error)
	HandleEvent(ctx context.Context, event stripe.Event) (*WebhookResult, error)
}

type paymentService struct {
	store   repositories.Store
	credits CreditServiceInterface
	cfg     StripeConfig
}

func NewPaymentService(store repositories.Store, credits CreditServiceInterface, cfg StripeConfig) (PaymentService, error) {
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, fmt.Errorf("%w: stripe webhook secret", utils.ErrMissingSecret)
	}
	return &paymentService{
		store:   store,
		credits: credits,
		cfg:     cfg,
	}, nil
}

// HandleWebhook verifies the Stripe-Signature header before dispatching.
func (p *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrInvalidWebhook, err)
	}
	return p.HandleEvent(ctx, event)
}

func (p *paymentService) HandleEvent(ctx context.Context, event stripe.Event) (*WebhookResult, error) {
	result := &WebhookResult{EventID: event.ID, EventType: string(event.Type)}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", utils.ErrInvalidWebhook, event.ID)
	}

	var (
		balance int64
		err     error
	)
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var credited bool
		balance, credited, err = p.onCheckoutCompleted(ctx, event.Data.Raw)
		if err == nil && !credited {
			return result, nil
		}
	case stripe.EventTypeInvoicePaid:
		balance, err = p.onInvoicePaid(ctx, event.Data.Raw)
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		err = p.onSubscriptionChanged(ctx, event.Type, event.Data.Raw)
		if err == nil {
			result.Handled = true
			return result, nil
		}
	default:
		log.Debug().Str("event_id", event.ID).Str("type", string(event.Type)).Msg("ignoring stripe event")
		return result, nil
	}

	if errors.Is(err, utils.ErrDuplicatePayment) {
		log.Info().Str("event_id", event.ID).Msg("stripe payment already recorded")
		result.Handled = true
		result.Duplicate = true
		return result, nil
	}
	if err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Str("type", string(event.Type)).Msg("stripe event failed")
		return nil, err
	}

	result.Handled = true
	result.Balance = &balance
	return result, nil
}

// onCheckoutCompleted credits one-off purchases. Subscription sessions are
// credited by invoice.paid, and sessions still awaiting a delayed payment
// method come back as checkout.session.async_payment_succeeded; both are
// acknowledged without crediting.
func (p *paymentService) onCheckoutCompleted(ctx context.Context, raw json.RawMessage) (int64, bool, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return 0, false, fmt.Errorf("%w: checkout session: %v", utils.ErrInvalidWebhook, err)
	}
	if session.Mode != "" && session.Mode != stripe.CheckoutSessionModePayment {
		log.Debug().Str("session_id", session.ID).Str("mode", string(session.Mode)).Msg("skipping non-payment checkout session")
		return 0, false, nil
	}
	if session.PaymentStatus != "" && session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		log.Info().Str("session_id", session.ID).Str("payment_status", string(session.PaymentStatus)).Msg("checkout session not paid yet")
		return 0, false, nil
	}

	businessID, err := metadataBusinessID(session.Metadata)
	if err != nil {
		return 0, false, err
	}
	credits, err := strconv.ParseInt(strings.TrimSpace(session.Metadata[metaCredits]), 10, 64)
	if err != nil || credits <= 0 {
		return 0, false, fmt.Errorf("%w: session %s has no positive credits metadata", utils.ErrInvalidWebhook, session.ID)
	}

	ref := session.ID
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		ref = session.PaymentIntent.ID
	}

	if session.Customer != nil && session.Customer.ID != "" {
		customerID := session.Customer.ID
		if err := p.store.UpdateSubscription(ctx, businessID, repositories.SubscriptionUpdate{StripeCustomerID: &customerID}); err != nil {
			return 0, false, err
		}
	}

	balance, err := p.credits.AddCredits(ctx, AddCreditsParams{
		BusinessID:            businessID,
		Amount:                credits,
		TransactionType:       dbm.TxnTypePurchase,
		Description:           fmt.Sprintf("Purchased %d credits", credits),
		StripePaymentIntentID: ref,
		Metadata: map[string]interface{}{
			"stripe_session_id": session.ID,
			"amount_total":      session.AmountTotal,
			"currency":          string(session.Currency),
		},
	})
	if err != nil {
		return 0, false, err
	}
	return balance, true, nil
}

func (p *paymentService) onInvoicePaid(ctx context.Context, raw json.RawMessage) (int64, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(raw, &invoice); err != nil {
		return 0, fmt.Errorf("%w: invoice: %v", utils.ErrInvalidWebhook, err)
	}

	meta := invoice.Metadata
	if invoice.SubscriptionDetails != nil && len(invoice.SubscriptionDetails.Metadata) > 0 {
		meta = invoice.SubscriptionDetails.Metadata
	}

	businessID, err := metadataBusinessID(meta)
	if err != nil {
		business, lookupErr := p.businessForCustomer(ctx, invoice.Customer)
		if lookupErr != nil {
			return 0, err
		}
		businessID = business.ID
	}

	return p.credits.AllocateMonthlyCredits(ctx, businessID, meta[metaPlan], "invoice:"+invoice.ID)
}

func (p *paymentService) onSubscriptionChanged(ctx context.Context, eventType stripe.EventType, raw json.RawMessage) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return fmt.Errorf("%w: subscription: %v", utils.ErrInvalidWebhook, err)
	}

	businessID, err := metadataBusinessID(sub.Metadata)
	if err != nil {
		business, lookupErr := p.businessForCustomer(ctx, sub.Customer)
		if lookupErr != nil {
			return err
		}
		businessID = business.ID
	} else if eventType == stripe.EventTypeCustomerSubscriptionCreated {
		if err := p.ensureBusiness(ctx, businessID, &sub); err != nil {
			return err
		}
	}

	status := subscriptionStatus(sub.Status)
	if eventType == stripe.EventTypeCustomerSubscriptionDeleted {
		status = dbm.SubStatusCanceled
	}
	update := repositories.SubscriptionUpdate{
		Status:               &status,
		StripeSubscriptionID: &sub.ID,
	}
	if sub.CurrentPeriodEnd > 0 {
		expires := sub.CurrentPeriodEnd
		update.ExpiresAt = &expires
	}
	if sub.Customer != nil && sub.Customer.ID != "" {
		update.StripeCustomerID = &sub.Customer.ID
	}
	if planName := sub.Metadata[metaPlan]; planName != "" {
		terms, err := LookupPlan(planName)
		if err != nil {
			return err
		}
		update.Plan = &terms.Plan
	}

	if err := p.store.UpdateSubscription(ctx, businessID, update); err != nil {
		return err
	}
	log.Info().
		Str("business_id", businessID.String()).
		Str("subscription_id", sub.ID).
		Str("status", string(status)).
		Msg("subscription updated")
	return nil
}

// ensureBusiness provisions the business named in a new subscription's
// metadata when signup happened on the billing side first.
func (p *paymentService) ensureBusiness(ctx context.Context, id uuid.UUID, sub *stripe.Subscription) error {
	existing, err := p.store.FindBusinessByID(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	_, err = p.credits.ProvisionBusiness(ctx, ProvisionBusinessParams{
		ID:      id,
		Name:    sub.Metadata[metaBusinessName],
		OwnerID: sub.Metadata[metaOwnerID],
		Plan:    sub.Metadata[metaPlan],
	})
	if errors.Is(err, utils.ErrBusinessExists) {
		// A concurrent delivery of the same event won the insert.
		return nil
	}
	return err
}

func (p *paymentService) businessForCustomer(ctx context.Context, customer *stripe.Customer) (*dbm.Business, error) {
	if customer == nil || customer.ID == "" {
		return nil, utils.ErrBusinessNotFound
	}
	business, err := p.store.FindBusinessByStripeCustomer(ctx, customer.ID)
	if err != nil {
		return nil, err
	}
	if business == nil {
		return nil, utils.ErrBusinessNotFound
	}
	return business, nil
}

func metadataBusinessID(meta map[string]string) (uuid.UUID, error) {
	raw := strings.TrimSpace(meta[metaBusinessID])
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: missing %s metadata", utils.ErrInvalidWebhook, metaBusinessID)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad %s metadata: %v", utils.ErrInvalidWebhook, metaBusinessID, err)
	}
	return id, nil
}

func subscriptionStatus(s stripe.SubscriptionStatus) dbm.SubscriptionStatus {
	switch s {
	case stripe.SubscriptionStatusTrialing:
		return dbm.SubStatusTrialing
	case stripe.SubscriptionStatusActive:
		return dbm.SubStatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusIncomplete:
		return dbm.SubStatusPastDue
	case stripe.SubscriptionStatusCanceled:
		return dbm.SubStatusCanceled
	default:
		return dbm.SubStatusExpired
	}
}
