// Package docstore is the document store gateway (C1): a thin, typed layer
// over the MongoDB collections backing every entity in internal/domain, plus
// the session wrapper internal/txrunner drives its commit retries through.
package docstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vellumapp/platform/internal/config"
	"github.com/vellumapp/platform/internal/errs"
)

// Collection names. Kept as constants so every package referencing a
// collection goes through this registry rather than a string literal.
const (
	CollUsers             = "users"
	CollRoles             = "roles"
	CollBans              = "bans"
	CollEdges             = "entitlement_edges"
	CollEmoteSets         = "emote_sets"
	CollEmotes            = "emotes"
	CollBadges            = "badges"
	CollPaints            = "paints"
	CollUserSessions      = "user_sessions"
	CollProviderCustomers = "provider_customers"
	CollProducts          = "products"
	CollSubscriptions     = "subscriptions"
	CollEvents            = "events"
	CollWebhookEvents     = "webhook_events"
	CollRedeemCodes       = "redeem_codes"
	CollCronJobs          = "cron_jobs"
	CollModerationReq     = "emote_moderation_requests"
)

// Gateway owns the MongoDB client and exposes typed collection handles.
type Gateway struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials MongoDB per the given store configuration, pings to confirm
// connectivity, and ensures every collection index this core depends on.
func Connect(ctx context.Context, cfg config.StoreConfig) (*Gateway, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout.Duration)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize))
	if err != nil {
		return nil, errs.Wrap(errs.KindExternalProvider, "connect to document store", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, errs.Wrap(errs.KindExternalProvider, "ping document store", err)
	}

	g := &Gateway{client: client, db: client.Database(cfg.Database)}

	if err := g.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, err
	}

	return g, nil
}

func (g *Gateway) Client() *mongo.Client { return g.client }
func (g *Gateway) Database() *mongo.Database { return g.db }

func (g *Gateway) Collection(name string) *mongo.Collection { return g.db.Collection(name) }

// Close is registered with internal/lifecycle at startup.
func (g *Gateway) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return g.client.Disconnect(ctx)
}

func (g *Gateway) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		CollUsers: {
			{Keys: bson.D{{Key: "connections.platform", Value: 1}, {Key: "connections.platform_id", Value: 1}}},
		},
		CollEdges: {
			{Keys: bson.D{{Key: "_id.from.kind", Value: 1}, {Key: "_id.from.id", Value: 1}}},
			{Keys: bson.D{{Key: "_id.to.kind", Value: 1}, {Key: "_id.to.id", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
		},
		CollSubscriptions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
			{Keys: bson.D{{Key: "provider", Value: 1}, {Key: "provider_sub_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CollWebhookEvents: {
			{Keys: bson.D{{Key: "provider", Value: 1}, {Key: "provider_event_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CollRedeemCodes: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CollCronJobs: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "next_run_at", Value: 1}}},
		},
		CollEvents: {
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		CollEmotes: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}}},
		},
		CollUserSessions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
		CollProviderCustomers: {
			{Keys: bson.D{{Key: "provider", Value: 1}, {Key: "external_customer_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "provider", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for name, models := range indexes {
		if _, err := g.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return errs.Wrap(errs.KindExternalProvider, fmt.Sprintf("create indexes for %s", name), err)
		}
	}
	return nil
}
