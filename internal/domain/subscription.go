package domain

import (
	"time"

	"github.com/vellumapp/platform/internal/money"
)

// Provider names the external payment rail a subscription or one-time
// purchase settled through. The reconciler dispatch table is keyed by this.
type Provider string

const (
	ProviderStripe Provider = "stripe"
	ProviderPaypal Provider = "paypal"
)

// SubscriptionStatus mirrors the external provider's lifecycle states,
// collapsed to the subset the entitlement graph cares about.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionExpired  SubscriptionStatus = "expired"
)

// SubscriptionPeriod is one billed interval of a subscription. A
// subscription can have many periods over its lifetime; the entitlement
// edge it manages is only valid while the current period has not ended
// (§12: a subscription product's benefit is honored for refunds regardless
// of the subscription's active flag, but entitlement grants follow period
// end, not the active flag, for ordinary lapses).
type SubscriptionPeriod struct {
	ID          string    `bson:"_id"`
	Start       time.Time `bson:"start"`
	End         time.Time `bson:"end"`
	ProviderRef string    `bson:"provider_ref"`

	// AmountPaid is the settled charge for this period, when the provider
	// event carried one (absent for a PayPal dispute/cancel close-out with
	// no attached amount). Recorded for reconciliation audit, not read back
	// by any entitlement decision.
	AmountPaid *money.Money `bson:"amount_paid,omitempty"`
}

// Subscription is a recurring grant of a Product's benefits to a user,
// reconciled from either Stripe or PayPal webhook events.
type Subscription struct {
	ID              string             `bson:"_id"`
	UserID          string             `bson:"user_id"`
	ProductID       string             `bson:"product_id"`
	Provider        Provider           `bson:"provider"`
	ProviderSubID   string             `bson:"provider_sub_id"`
	Status          SubscriptionStatus `bson:"status"`
	CurrentPeriod   SubscriptionPeriod `bson:"current_period"`
	PastPeriods     []SubscriptionPeriod `bson:"past_periods,omitempty"`
	CreatedAt       time.Time          `bson:"created_at"`
	CanceledAt      *time.Time         `bson:"canceled_at,omitempty"`
}

func (s Subscription) CurrentlyEntitled(at time.Time) bool {
	return s.CurrentPeriod.End.After(at) && s.Status != SubscriptionCanceled
}

// Product is a purchasable bundle of benefits: a one-time grant, a
// subscription tier, or both. Its edges in the entitlement graph run from
// NodeProduct to each NodeSubscriptionBenefit it bundles.
type Product struct {
	ID       string   `bson:"_id"`
	Name     string   `bson:"name"`
	Active   bool     `bson:"active"`
	BenefitIDs []string `bson:"benefit_ids"`
	Providers map[Provider]string `bson:"providers"` // provider -> external price/plan id
}
