// Package redeem implements the redeem-code flow (§12): granting the
// effects of a code directly inside a C4 transaction, or, when one of those
// effects is a subscription product the user doesn't already hold an active
// period for, deferring the grant to the checkout.session.completed webhook
// and handing the caller a Stripe checkout session instead.
package redeem

import (
	"context"
	"time"

	stripeapi "github.com/stripe/stripe-go/v72"
	checkoutsession "github.com/stripe/stripe-go/v72/checkout/session"
	"github.com/stripe/stripe-go/v72/customer"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/vellumapp/platform/internal/config"
	"github.com/vellumapp/platform/internal/customers"
	"github.com/vellumapp/platform/internal/docstore"
	"github.com/vellumapp/platform/internal/domain"
	"github.com/vellumapp/platform/internal/errs"
	"github.com/vellumapp/platform/internal/graph"
	"github.com/vellumapp/platform/internal/rpcutil"
	"github.com/vellumapp/platform/internal/txrunner"
)

// Result is what the redeem endpoint returns: either a checkout session to
// authorize (Items empty), or the entitlements granted immediately
// (AuthorizeURL empty).
type Result struct {
	AuthorizeURL string
	Items        []domain.Node
}

// Handler implements the redeem-code branch described in §12.
type Handler struct {
	gateway   *docstore.Gateway
	runner    *txrunner.Runner
	customers *customers.Resolver
	stripeCfg config.StripeConfig
}

func NewHandler(gateway *docstore.Gateway, runner *txrunner.Runner, resolver *customers.Resolver, stripeCfg config.StripeConfig) *Handler {
	return &Handler{gateway: gateway, runner: runner, customers: resolver, stripeCfg: stripeCfg}
}

func (h *Handler) codes() *docstore.Repository[domain.RedeemCode] {
	return docstore.NewRepository[domain.RedeemCode](h.gateway, docstore.CollRedeemCodes)
}

// Redeem looks up code, validates it is usable, and either grants its
// effects directly or defers to a Stripe checkout session per the branch in
// §12.
func (h *Handler) Redeem(ctx context.Context, userID, code string) (Result, error) {
	row, err := h.codes().FindOne(ctx, bson.M{"code": code})
	if err != nil {
		return Result{}, err
	}
	if row.Exhausted() {
		return Result{}, errs.New(errs.KindConflict, "redeem code exhausted")
	}
	if row.Expired(time.Now()) {
		return Result{}, errs.New(errs.KindConflict, "redeem code expired")
	}

	productID, deferred, err := h.pendingSubscriptionProduct(ctx, userID, row)
	if err != nil {
		return Result{}, err
	}
	if deferred {
		return h.deferToCheckout(ctx, userID, row, productID)
	}

	return h.grantDirect(ctx, userID, row)
}

// pendingSubscriptionProduct reports the first subscription-product effect
// on row the user does not already hold an active period for. A code with
// no product effect, or one whose product the user is already subscribed
// to, returns deferred=false so the caller grants everything directly.
func (h *Handler) pendingSubscriptionProduct(ctx context.Context, userID string, row domain.RedeemCode) (string, bool, error) {
	subs := docstore.NewRepository[domain.Subscription](h.gateway, docstore.CollSubscriptions)

	for _, effect := range row.Effects {
		if effect.Kind != domain.NodeProduct {
			continue
		}

		sub, err := subs.FindOne(ctx, bson.M{"user_id": userID, "product_id": effect.ID})
		if err != nil {
			if errs.KindOf(err) == errs.KindNotFound {
				return effect.ID, true, nil
			}
			return "", false, err
		}
		if !sub.CurrentlyEntitled(time.Now()) {
			return effect.ID, true, nil
		}
	}
	return "", false, nil
}

// deferToCheckout finds or creates the caller's Stripe customer mirror and
// returns a checkout session for productID's configured price. The code's
// effects are granted later by the Stripe dispatcher's redeemViaCheckout,
// triggered off the completed checkout's redeem_code metadata.
func (h *Handler) deferToCheckout(ctx context.Context, userID string, row domain.RedeemCode, productID string) (Result, error) {
	stripeapi.Key = h.stripeCfg.SecretKey

	externalID, err := h.customers.ExternalIDByUser(ctx, domain.ProviderStripe, userID)
	if err != nil {
		if errs.KindOf(err) != errs.KindNotFound {
			return Result{}, err
		}
		cust, cerr := rpcutil.WithRetry(ctx, func() (*stripeapi.Customer, error) {
			return customer.New(&stripeapi.CustomerParams{})
		})
		if cerr != nil {
			return Result{}, errs.Wrap(errs.KindExternalProvider, "create stripe customer", cerr)
		}
		if _, err := h.customers.FindOrCreate(ctx, domain.ProviderStripe, userID, cust.ID); err != nil {
			return Result{}, err
		}
		externalID = cust.ID
	}

	product, err := docstore.NewRepository[domain.Product](h.gateway, docstore.CollProducts).FindByID(ctx, productID)
	if err != nil {
		return Result{}, err
	}
	priceID := product.Providers[domain.ProviderStripe]
	if priceID == "" {
		return Result{}, errs.New(errs.KindConflict, "product has no stripe price configured")
	}

	params := &stripeapi.CheckoutSessionParams{
		Mode:               stripeapi.String(string(stripeapi.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripeapi.StringSlice([]string{"card"}),
		Customer:           stripeapi.String(externalID),
		SuccessURL:         stripeapi.String(h.stripeCfg.SuccessURL),
		CancelURL:          stripeapi.String(h.stripeCfg.CancelURL),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{Price: stripeapi.String(priceID), Quantity: stripeapi.Int64(1)},
		},
	}
	params.Metadata = map[string]string{"redeem_code": row.Code, "user_id": userID}

	s, err := rpcutil.WithRetry(ctx, func() (*stripeapi.CheckoutSession, error) {
		return checkoutsession.New(params)
	})
	if err != nil {
		return Result{}, errs.Wrap(errs.KindExternalProvider, "create stripe checkout session", err)
	}

	return Result{AuthorizeURL: s.URL}, nil
}

// grantDirect inserts an edge for every effect on row and bumps its use
// count, all inside one transaction, and journals an edge.created event and a
// redeem_code.redeemed event per granted edge.
func (h *Handler) grantDirect(ctx context.Context, userID string, row domain.RedeemCode) (Result, error) {
	_, err := txrunner.Run(ctx, h.runner, "redeem_code_grant", func(ctx context.Context, tx *txrunner.Tx) (struct{}, error) {
		now := time.Now()
		for _, effect := range row.Effects {
			edge := domain.NewEdge(domain.UserNode(userID), effect, domain.ManagedByRedeemCode, now)
			if err := graph.InsertEdge(ctx, h.gateway, edge); err != nil {
				return struct{}{}, err
			}
			tx.RegisterEvent(domain.NewEvent(domain.EventEdgeCreated, userID, row.ID, map[string]any{
				"from": edge.ID.From.String(),
				"to":   edge.ID.To.String(),
			}, now))
			tx.RegisterEvent(domain.NewEvent(domain.EventRedeemCodeRedeemed, userID, row.ID, map[string]any{"effect": effect.String()}, now))
		}

		row.UsedCount++
		return struct{}{}, h.codes().UpsertByID(ctx, row.ID, row)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Items: row.Effects}, nil
}
