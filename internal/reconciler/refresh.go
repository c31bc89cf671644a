package reconciler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/vellumapp/platform/internal/docstore"
	"github.com/vellumapp/platform/internal/domain"
)

// MarkerRefresher implements RefreshEnqueuer the simplest way this core can:
// no background job queue exists, so a subscription refresh just flips the
// subscriber's ReindexPending marker in place. The next cache load fabric
// request for that user (§4.11) takes the full-traversal path instead of
// its cached search index, which is exactly what recomputing derived edges
// and search-index markers means here.
type MarkerRefresher struct {
	gateway *docstore.Gateway
	log     zerolog.Logger
}

func NewMarkerRefresher(gateway *docstore.Gateway, log zerolog.Logger) *MarkerRefresher {
	return &MarkerRefresher{gateway: gateway, log: log.With().Str("component", "reconciler.refresh").Logger()}
}

func (m *MarkerRefresher) EnqueueSubscriptionRefresh(ctx context.Context, subscriptionID string) {
	subs := docstore.NewRepository[domain.Subscription](m.gateway, docstore.CollSubscriptions)
	sub, err := subs.FindByID(ctx, subscriptionID)
	if err != nil {
		m.log.Error().Err(err).Str("subscription_id", subscriptionID).Msg("refresh: subscription lookup failed")
		return
	}

	users := docstore.NewRepository[domain.User](m.gateway, docstore.CollUsers)
	user, err := users.FindByID(ctx, sub.UserID)
	if err != nil {
		m.log.Error().Err(err).Str("user_id", sub.UserID).Msg("refresh: user lookup failed")
		return
	}

	user.ReindexPending = true
	user.UpdatedAt = time.Now().UTC()
	if err := users.UpsertByID(ctx, user.ID, user); err != nil {
		m.log.Error().Err(err).Str("user_id", user.ID).Msg("refresh: failed to mark user for reindex")
	}
}
