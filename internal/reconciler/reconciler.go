// Package reconciler is the payment reconciler (C8): it authenticates an
// inbound provider webhook, serializes processing per resource behind the
// distributed mutex, records idempotency under a transaction, and dispatches
// to the provider-specific handler table in stripe.go/paypal.go.
package reconciler

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/vellumapp/platform/internal/docstore"
	"github.com/vellumapp/platform/internal/domain"
	"github.com/vellumapp/platform/internal/errs"
	"github.com/vellumapp/platform/internal/ids"
	"github.com/vellumapp/platform/internal/metrics"
	"github.com/vellumapp/platform/internal/mutex"
	"github.com/vellumapp/platform/internal/txrunner"
)

// RefreshEnqueuer is notified with a subscription id whenever a reconciled
// mutation changed a subscription's identity, so derived edges and
// search-index markers can be recomputed out of band.
type RefreshEnqueuer interface {
	EnqueueSubscriptionRefresh(ctx context.Context, subscriptionID string)
}

// webhookRetention is how long an idempotency record is kept before a
// redelivery of the same provider event is treated as a new one.
const webhookRetention = 30 * 24 * time.Hour

// ProviderEvent is the normalized shape every provider parser produces
// before dispatch, regardless of Stripe's or PayPal's wire format.
type ProviderEvent struct {
	Provider        domain.Provider
	ProviderEventID string
	EventType       string
	ResourceKey     string // the resource the idempotency mutex serializes on
	Raw             any
}

// Dispatcher handles one normalized ProviderEvent inside an open C4
// transaction, returning the subscription id it mutated (if any) so the
// reconciler can enqueue a refresh.
type Dispatcher func(ctx context.Context, tx *txrunner.Tx, event ProviderEvent) (changedSubscriptionID string, err error)

// Reconciler ties the mutex, transaction runner, and webhook idempotency
// table together for both payment providers.
type Reconciler struct {
	gateway  *docstore.Gateway
	mu       mutex.Mutex
	runner   *txrunner.Runner
	refresh  RefreshEnqueuer
	metrics  *metrics.Metrics
	mutexTTL time.Duration
}

func New(gateway *docstore.Gateway, mu mutex.Mutex, runner *txrunner.Runner, refresh RefreshEnqueuer) *Reconciler {
	return &Reconciler{gateway: gateway, mu: mu, runner: runner, refresh: refresh, mutexTTL: 30 * time.Second}
}

// WithMetrics attaches a metrics collector the reconciler reports webhook
// outcomes and subscription-event counts to. Optional: a Reconciler built
// without it simply skips instrumentation.
func (r *Reconciler) WithMetrics(m *metrics.Metrics) *Reconciler {
	r.metrics = m
	return r
}

// Reconcile assumes authentication already happened in the caller (Stripe
// HMAC / PayPal signature verification happen in the HTTP handler before
// this is invoked) and performs idempotency key derivation, the
// transactional idempotency upsert, dispatch, and refresh enqueue.
func (r *Reconciler) Reconcile(ctx context.Context, event ProviderEvent, dispatch Dispatcher) error {
	resourceKey := "reconciler:" + string(event.Provider) + ":" + event.ResourceKey
	start := time.Now()

	err := mutex.WithLock(ctx, r.mu, resourceKey, r.mutexTTL, func(ctx context.Context) error {
		changedSubID, err := txrunner.Run(ctx, r.runner, "reconcile_"+event.EventType, func(ctx context.Context, tx *txrunner.Tx) (string, error) {
			webhookRepo := docstore.NewRepository[domain.WebhookEvent](r.gateway, docstore.CollWebhookEvents)

			recordID := ids.New().String()
			now := time.Now().UTC()
			var receivedCount int64 = 1
			existing, findErr := webhookRepo.FindOne(ctx, bson.M{
				"provider":          event.Provider,
				"provider_event_id": event.ProviderEventID,
			})
			if findErr != nil && errs.KindOf(findErr) != errs.KindNotFound {
				return "", findErr
			}
			if findErr == nil {
				recordID = existing.ID
				receivedCount = existing.ReceivedCount + 1
				if existing.Status == domain.WebhookCompleted {
					if err := webhookRepo.UpdateByID(ctx, recordID, bson.M{"$set": bson.M{"received_count": receivedCount}}); err != nil {
						return "", err
					}
					if r.metrics != nil {
						r.metrics.ObserveWebhookIdempotencyHit(string(event.Provider))
					}
					// Returning nil commits the received_count bump; an error
					// here would abort the transaction and roll it back.
					return "", nil
				}
			}

			record := domain.WebhookEvent{
				ID:              recordID,
				Provider:        event.Provider,
				ProviderEventID: event.ProviderEventID,
				EventType:       event.EventType,
				Status:          domain.WebhookProcessing,
				ReceivedCount:   receivedCount,
				ReceivedAt:      now,
				ExpiresAt:       now.Add(webhookRetention),
			}
			if err := webhookRepo.UpsertByID(ctx, record.ID, record); err != nil {
				return "", err
			}

			changed, dispatchErr := dispatch(ctx, tx, event)
			if dispatchErr != nil {
				_ = webhookRepo.UpdateByID(ctx, record.ID, bson.M{"$set": bson.M{
					"status": domain.WebhookFailed, "error": dispatchErr.Error(),
				}})
				return "", dispatchErr
			}

			completed := time.Now().UTC()
			if err := webhookRepo.UpdateByID(ctx, record.ID, bson.M{"$set": bson.M{
				"status": domain.WebhookCompleted, "completed_at": completed,
			}}); err != nil {
				return "", err
			}

			if changed != "" && r.metrics != nil {
				r.metrics.ObserveSubscriptionEvent(string(event.Provider), event.EventType)
			}
			return changed, nil
		})

		if err != nil {
			if errs.KindOf(err) == errs.KindWebhookReplay {
				return nil
			}
			return err
		}
		if changedSubID != "" && r.refresh != nil {
			r.refresh.EnqueueSubscriptionRefresh(ctx, changedSubID)
		}
		return nil
	})

	if r.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		r.metrics.ObserveWebhook(string(event.Provider), event.EventType, status, time.Since(start))
	}
	return err
}
