// Package customers resolves platform users to and from the customer
// records Stripe and PayPal know them by, the lookup both the payment
// reconciler (an inbound webhook keyed on a provider id) and the redeem
// handler (creating a mirror before deferring to checkout) need.
package customers

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/vellumapp/platform/internal/docstore"
	"github.com/vellumapp/platform/internal/domain"
	"github.com/vellumapp/platform/internal/errs"
	"github.com/vellumapp/platform/internal/ids"
)

// Resolver looks up and creates ProviderCustomer mirrors over a single
// gateway collection.
type Resolver struct {
	gateway *docstore.Gateway
}

func NewResolver(gateway *docstore.Gateway) *Resolver {
	return &Resolver{gateway: gateway}
}

func (r *Resolver) repo() *docstore.Repository[domain.ProviderCustomer] {
	return docstore.NewRepository[domain.ProviderCustomer](r.gateway, docstore.CollProviderCustomers)
}

// UserIDByExternal resolves a provider's external customer/agreement id
// back to the platform user it belongs to.
func (r *Resolver) UserIDByExternal(ctx context.Context, provider domain.Provider, externalID string) (string, error) {
	rec, err := r.repo().FindOne(ctx, bson.M{"provider": provider, "external_customer_id": externalID})
	if err != nil {
		return "", err
	}
	return rec.UserID, nil
}

// ExternalIDByUser resolves a user's mirror for provider, if one has been
// created yet.
func (r *Resolver) ExternalIDByUser(ctx context.Context, provider domain.Provider, userID string) (string, error) {
	rec, err := r.repo().FindOne(ctx, bson.M{"user_id": userID, "provider": provider})
	if err != nil {
		return "", err
	}
	return rec.ExternalCustomerID, nil
}

// FindOrCreate links userID to externalID under provider, reusing an
// existing mirror if present rather than creating a duplicate (the
// per-customer-create mutex scope callers take around this call is what
// actually collapses concurrent creations; this just makes the write
// idempotent once serialized).
func (r *Resolver) FindOrCreate(ctx context.Context, provider domain.Provider, userID, externalID string) (domain.ProviderCustomer, error) {
	existing, err := r.repo().FindOne(ctx, bson.M{"user_id": userID, "provider": provider})
	if err == nil {
		return existing, nil
	}
	if errs.KindOf(err) != errs.KindNotFound {
		return domain.ProviderCustomer{}, err
	}

	rec := domain.ProviderCustomer{
		ID:                 ids.New().String(),
		UserID:             userID,
		Provider:           provider,
		ExternalCustomerID: externalID,
		CreatedAt:          time.Now().UTC(),
	}
	if err := r.repo().InsertOne(ctx, rec); err != nil {
		return domain.ProviderCustomer{}, err
	}
	return rec, nil
}

// StripeResolver adapts this resolver to the signature
// internal/reconciler.StripeDispatcher needs: resolve the mirror if one
// exists, otherwise mint one from the checkout/invoice metadata's user id.
func (r *Resolver) StripeResolver() func(ctx context.Context, stripeCustomerID string, metadata map[string]string) (string, error) {
	return func(ctx context.Context, stripeCustomerID string, metadata map[string]string) (string, error) {
		userID, err := r.UserIDByExternal(ctx, domain.ProviderStripe, stripeCustomerID)
		if err == nil {
			return userID, nil
		}
		if errs.KindOf(err) != errs.KindNotFound {
			return "", err
		}

		uid := metadata["user_id"]
		if uid == "" {
			return "", errs.New(errs.KindNotFound, "no user mapped to stripe customer and no user_id metadata to mint one")
		}
		if _, err := r.FindOrCreate(ctx, domain.ProviderStripe, uid, stripeCustomerID); err != nil {
			return "", err
		}
		return uid, nil
	}
}

// PaypalResolver adapts this resolver to the signature
// internal/reconciler.PaypalDispatcher needs. Nothing in this module mirrors
// a PayPal billing agreement up front, and unlike StripeResolver this
// resolver never mints a mapping, so an unmapped agreement here is a
// not-found error.
func (r *Resolver) PaypalResolver() func(ctx context.Context, billingAgreementID string) (string, error) {
	return func(ctx context.Context, billingAgreementID string) (string, error) {
		return r.UserIDByExternal(ctx, domain.ProviderPaypal, billingAgreementID)
	}
}
