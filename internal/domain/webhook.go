package domain

import "time"

// WebhookEventStatus tracks the idempotency lifecycle of one inbound
// provider webhook, from receipt through dispatch completion or failure.
type WebhookEventStatus string

const (
	WebhookReceived   WebhookEventStatus = "received"
	WebhookProcessing WebhookEventStatus = "processing"
	WebhookCompleted  WebhookEventStatus = "completed"
	WebhookFailed     WebhookEventStatus = "failed"
)

// WebhookEvent is the idempotency record the reconciler upserts under the
// distributed mutex before dispatching a provider event. ProviderEventID is
// the natural key: a provider redelivery with the same id that finds a
// WebhookCompleted row is treated as a replay: its ReceivedCount is bumped
// and it is acknowledged without reprocessing.
type WebhookEvent struct {
	ID              string             `bson:"_id"`
	Provider        Provider           `bson:"provider"`
	ProviderEventID string             `bson:"provider_event_id"`
	EventType       string             `bson:"event_type"`
	Status          WebhookEventStatus `bson:"status"`
	// ReceivedCount counts every delivery of this provider event this record
	// has ever seen, including the one that first created it and every
	// replay a provider redelivers afterward.
	ReceivedCount int64      `bson:"received_count"`
	ReceivedAt    time.Time  `bson:"received_at"`
	CompletedAt   *time.Time `bson:"completed_at,omitempty"`
	// ExpiresAt bounds how long this idempotency record is retained; a
	// provider redelivery arriving after this point is treated as a new
	// event rather than a replay.
	ExpiresAt time.Time `bson:"expires_at"`
	Error     string    `bson:"error,omitempty"`
}

// RedeemCode is a single-use or multi-use code that grants a set of
// entitlement edges directly, bypassing the payment providers entirely.
// Effects lists the entitlement targets the code grants; ProductID is set
// when one of those effects is a subscription product, which is what makes
// the redeem handler's active-subscription branch apply.
type RedeemCode struct {
	ID        string     `bson:"_id"`
	Code      string     `bson:"code"`
	ProductID string     `bson:"product_id,omitempty"`
	Effects   []Node     `bson:"effects"`
	MaxUses   int64      `bson:"max_uses"`
	UsedCount int64      `bson:"used_count"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
	CreatedAt time.Time  `bson:"created_at"`
}

func (c RedeemCode) Exhausted() bool {
	return c.MaxUses > 0 && c.UsedCount >= c.MaxUses
}

func (c RedeemCode) Expired(at time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(at)
}
