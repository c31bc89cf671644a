package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	stripeapi "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"

	"github.com/vellumapp/platform/internal/config"
	"github.com/vellumapp/platform/internal/docstore"
	"github.com/vellumapp/platform/internal/domain"
	"github.com/vellumapp/platform/internal/errs"
	"github.com/vellumapp/platform/internal/graph"
	"github.com/vellumapp/platform/internal/ids"
	"github.com/vellumapp/platform/internal/money"
	"github.com/vellumapp/platform/internal/txrunner"
)

// StripeAuthenticator verifies the HMAC signature over the raw request body
// and parses it into a typed stripe-go event, per §4.8 step 1.
type StripeAuthenticator struct {
	cfg config.StripeConfig
}

func NewStripeAuthenticator(cfg config.StripeConfig) *StripeAuthenticator {
	return &StripeAuthenticator{cfg: cfg}
}

// Authenticate validates the Stripe-Signature header against the raw body
// and normalizes the event into a ProviderEvent ready for Reconcile.
func (a *StripeAuthenticator) Authenticate(payload []byte, signatureHeader string) (ProviderEvent, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, a.cfg.WebhookSecret)
	if err != nil {
		return ProviderEvent{}, errs.Wrap(errs.KindSignatureInvalid, "verify stripe webhook signature", err)
	}

	resourceKey, rerr := stripeResourceKey(event)
	if rerr != nil {
		return ProviderEvent{}, rerr
	}

	return ProviderEvent{
		Provider:        domain.ProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		ResourceKey:     resourceKey,
		Raw:             event,
	}, nil
}

// stripeResourceKey derives the idempotency mutex key from the *resource*
// (the subscription, customer, or invoice the event is about), not the
// event itself, so redeliveries and related events about the same
// subscription serialize against each other.
func stripeResourceKey(event stripeapi.Event) (string, error) {
	switch event.Type {
	case "checkout.session.completed":
		var s stripeapi.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return "", errs.Wrap(errs.KindBadRequest, "decode checkout session", err)
		}
		if s.Customer != nil {
			return "customer:" + s.Customer.ID, nil
		}
		return "session:" + s.ID, nil
	case "invoice.paid":
		var inv stripeapi.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return "", errs.Wrap(errs.KindBadRequest, "decode invoice", err)
		}
		return "customer:" + inv.Customer.ID, nil
	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripeapi.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return "", errs.Wrap(errs.KindBadRequest, "decode subscription", err)
		}
		return "subscription:" + sub.ID, nil
	case "charge.refunded", "charge.dispute.created", "charge.dispute.closed":
		var ch stripeapi.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return "", errs.Wrap(errs.KindBadRequest, "decode charge", err)
		}
		return "charge:" + ch.ID, nil
	default:
		return "event:" + event.ID, nil
	}
}

// StripeDispatcher implements Dispatcher for every Stripe event type §4.8
// names. ResolveUserID resolves a Stripe customer/session back to a
// platform user id (via the metadata the checkout session was created
// with), which the reconciler needs to write entitlement edges.
type StripeDispatcher struct {
	gateway       *docstore.Gateway
	resolveUserID func(ctx context.Context, stripeCustomerID string, metadata map[string]string) (string, error)
}

func NewStripeDispatcher(gateway *docstore.Gateway, resolveUserID func(ctx context.Context, stripeCustomerID string, metadata map[string]string) (string, error)) *StripeDispatcher {
	return &StripeDispatcher{gateway: gateway, resolveUserID: resolveUserID}
}

func (d *StripeDispatcher) Dispatch(ctx context.Context, tx *txrunner.Tx, event ProviderEvent) (string, error) {
	stripeEvent, ok := event.Raw.(stripeapi.Event)
	if !ok {
		return "", errs.New(errs.KindFatal, "stripe dispatcher received non-stripe event")
	}

	switch stripeEvent.Type {
	case "checkout.session.completed":
		return d.handleCheckoutCompleted(ctx, tx, stripeEvent)
	case "invoice.paid":
		return d.handleInvoicePaid(ctx, tx, stripeEvent)
	case "customer.subscription.updated":
		return d.handleSubscriptionUpdated(ctx, tx, stripeEvent)
	case "customer.subscription.deleted":
		return d.handleSubscriptionDeleted(ctx, tx, stripeEvent)
	case "charge.refunded", "charge.dispute.created", "charge.dispute.closed":
		return d.handleChargeDispute(ctx, tx, stripeEvent)
	default:
		return "", nil
	}
}

func (d *StripeDispatcher) handleCheckoutCompleted(ctx context.Context, tx *txrunner.Tx, event stripeapi.Event) (string, error) {
	var session stripeapi.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return "", errs.Wrap(errs.KindBadRequest, "decode checkout session", err)
	}

	customerID := ""
	if session.Customer != nil {
		customerID = session.Customer.ID
	}
	userID, err := d.resolveUserID(ctx, customerID, session.Metadata)
	if err != nil {
		return "", err
	}

	switch string(session.Mode) {
	case "setup":
		// Promotes the new payment method to default; the default payment
		// method itself is tracked on the Stripe customer object, not
		// mirrored into this core's documents.
		return "", nil
	default:
		if redeemCode := session.Metadata["redeem_code"]; redeemCode != "" {
			return "", d.redeemViaCheckout(ctx, tx, userID, redeemCode)
		}
		return "", nil
	}
}

func (d *StripeDispatcher) redeemViaCheckout(ctx context.Context, tx *txrunner.Tx, userID, redeemCode string) error {
	codes := docstore.NewRepository[domain.RedeemCode](d.gateway, docstore.CollRedeemCodes)
	code, err := codes.FindOne(ctx, bsonM("code", redeemCode))
	if err != nil {
		return err
	}
	if code.Exhausted() || code.Expired(time.Now()) {
		return errs.New(errs.KindConflict, "redeem code exhausted or expired")
	}

	effects := code.Effects
	if len(effects) == 0 && code.ProductID != "" {
		effects = []domain.Node{domain.ProductNode(code.ProductID)}
	}
	for _, effect := range effects {
		now := time.Now()
		edge := domain.NewEdge(domain.UserNode(userID), effect, domain.ManagedByRedeemCode, now)
		if err := graph.InsertEdge(ctx, d.gateway, edge); err != nil {
			return err
		}
		tx.RegisterEvent(domain.NewEvent(domain.EventEdgeCreated, userID, code.ID, map[string]any{
			"from": edge.ID.From.String(),
			"to":   edge.ID.To.String(),
		}, now))
		tx.RegisterEvent(domain.NewEvent(domain.EventRedeemCodeRedeemed, userID, code.ID, map[string]any{"effect": effect.String()}, now))
	}

	code.UsedCount++
	return codes.UpsertByID(ctx, code.ID, code)
}

func (d *StripeDispatcher) handleInvoicePaid(ctx context.Context, tx *txrunner.Tx, event stripeapi.Event) (string, error) {
	var inv stripeapi.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return "", errs.Wrap(errs.KindBadRequest, "decode invoice", err)
	}
	if inv.Subscription == nil {
		return "", nil
	}

	subs := docstore.NewRepository[domain.Subscription](d.gateway, docstore.CollSubscriptions)
	existing, findErr := subs.FindOne(ctx, bsonM("provider_sub_id", inv.Subscription.ID))

	period := domain.SubscriptionPeriod{
		ID:          ids.New().String(),
		Start:       time.Unix(inv.PeriodStart, 0).UTC(),
		End:         time.Unix(inv.PeriodEnd, 0).UTC(),
		ProviderRef: fmt.Sprintf("invoice:%s", inv.ID),
		AmountPaid:  stripeInvoiceAmount(inv),
	}

	if errs.KindOf(findErr) == errs.KindNotFound {
		customerID := ""
		if inv.Customer != nil {
			customerID = inv.Customer.ID
		}
		userID, err := d.resolveUserID(ctx, customerID, nil)
		if err != nil {
			return "", err
		}
		sub := domain.Subscription{
			ID:            ids.New().String(),
			UserID:        userID,
			Provider:      domain.ProviderStripe,
			ProviderSubID: inv.Subscription.ID,
			Status:        domain.SubscriptionActive,
			CurrentPeriod: period,
			CreatedAt:     time.Now().UTC(),
		}
		if err := subs.InsertOne(ctx, sub); err != nil {
			return "", err
		}
		tx.RegisterEvent(domain.NewEvent(domain.EventSubscriptionCreated, sub.UserID, sub.ID, nil, time.Now()))
		return sub.ID, nil
	}
	if findErr != nil {
		return "", findErr
	}

	existing.PastPeriods = append(existing.PastPeriods, existing.CurrentPeriod)
	existing.CurrentPeriod = period
	existing.Status = domain.SubscriptionActive
	if err := subs.UpsertByID(ctx, existing.ID, existing); err != nil {
		return "", err
	}
	tx.RegisterEvent(domain.NewEvent(domain.EventSubscriptionRenewed, existing.UserID, existing.ID, nil, time.Now()))
	return existing.ID, nil
}

func (d *StripeDispatcher) handleSubscriptionUpdated(ctx context.Context, tx *txrunner.Tx, event stripeapi.Event) (string, error) {
	var sub stripeapi.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return "", errs.Wrap(errs.KindBadRequest, "decode subscription", err)
	}
	if sub.Items != nil && len(sub.Items.Data) != 1 {
		// A multi-item subscription is a diagnostic condition this core does
		// not know how to map to a single Product; record nothing and leave
		// the subscription untouched rather than guess.
		return "", nil
	}

	subs := docstore.NewRepository[domain.Subscription](d.gateway, docstore.CollSubscriptions)
	existing, err := subs.FindOne(ctx, bsonM("provider_sub_id", sub.ID))
	if err != nil {
		return "", err
	}

	if sub.CancelAtPeriodEnd {
		existing.CanceledAt = timePtr(time.Now().UTC())
	} else {
		existing.CanceledAt = nil
	}
	if err := subs.UpsertByID(ctx, existing.ID, existing); err != nil {
		return "", err
	}
	return existing.ID, nil
}

func (d *StripeDispatcher) handleSubscriptionDeleted(ctx context.Context, tx *txrunner.Tx, event stripeapi.Event) (string, error) {
	var sub stripeapi.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return "", errs.Wrap(errs.KindBadRequest, "decode subscription", err)
	}

	subs := docstore.NewRepository[domain.Subscription](d.gateway, docstore.CollSubscriptions)
	existing, err := subs.FindOne(ctx, bsonM("provider_sub_id", sub.ID))
	if err != nil {
		return "", err
	}

	existing.Status = domain.SubscriptionCanceled
	existing.CurrentPeriod.End = time.Now().UTC()
	if err := subs.UpsertByID(ctx, existing.ID, existing); err != nil {
		return "", err
	}
	tx.RegisterEvent(domain.NewEvent(domain.EventSubscriptionCanceled, existing.UserID, existing.ID, nil, time.Now()))
	return existing.ID, nil
}

func (d *StripeDispatcher) handleChargeDispute(ctx context.Context, tx *txrunner.Tx, event stripeapi.Event) (string, error) {
	var ch stripeapi.Charge
	if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
		return "", errs.Wrap(errs.KindBadRequest, "decode charge", err)
	}

	// A refund/dispute is honored regardless of whether the underlying
	// product is still active for new purchases (see DESIGN.md's Open
	// Question decision): it flags the payment and, for a confirmed
	// dispute loss, truncates the subscription's current period.
	tx.RegisterEvent(domain.NewEvent(domain.EventPaymentRefunded, "", ch.ID, map[string]any{
		"amount_refunded": ch.AmountRefunded,
	}, time.Now()))

	if ch.Invoice == nil || ch.Invoice.Subscription == nil {
		return "", nil
	}
	subs := docstore.NewRepository[domain.Subscription](d.gateway, docstore.CollSubscriptions)
	existing, err := subs.FindOne(ctx, bsonM("provider_sub_id", ch.Invoice.Subscription.ID))
	if errs.KindOf(err) == errs.KindNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if event.Type == "charge.dispute.closed" {
		existing.CurrentPeriod.End = time.Now().UTC()
		if err := subs.UpsertByID(ctx, existing.ID, existing); err != nil {
			return "", err
		}
	}
	return existing.ID, nil
}

func timePtr(t time.Time) *time.Time { return &t }

// stripeInvoiceAmount converts an invoice's settled charge into Money for
// audit purposes, via money.StripeAdapter. A currency this core's asset
// registry doesn't recognize (anything but USD/EUR today) is recorded as
// unset rather than failing reconciliation over a bookkeeping detail.
func stripeInvoiceAmount(inv stripeapi.Invoice) *money.Money {
	adapter := money.NewStripeAdapter()
	m, err := adapter.FromStripeAmount(string(inv.Currency), inv.AmountPaid)
	if err != nil {
		return nil
	}
	return &m
}
