package loaders

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/vellumapp/platform/internal/docstore"
	"github.com/vellumapp/platform/internal/domain"
	"github.com/vellumapp/platform/internal/graph"
)

// Fabric holds one Loader per entity the rest of this core addresses by id
// (§4.11's named list), each backed by a single $in query per batch.
type Fabric struct {
	Users                *Loader[string, domain.User]
	UserSessions         *Loader[string, domain.UserSession]
	Roles                *Loader[string, domain.Role]
	Emotes               *Loader[string, domain.Emote]
	EmoteSets            *Loader[string, domain.EmoteSet]
	Paints               *Loader[string, domain.Paint]
	Badges               *Loader[string, domain.Badge]
	SubscriptionProducts *Loader[string, domain.Product]
	EdgesOutbound        *Loader[domain.Node, []domain.Edge]
	EdgesInbound         *Loader[domain.Node, []domain.Edge]
}

// NewFabric builds every loader in the fabric against a single gateway.
// Each loader owns its own batch window, independent of the others.
func NewFabric(gateway *docstore.Gateway) *Fabric {
	return &Fabric{
		Users:                New(findByIDs[domain.User](gateway, docstore.CollUsers, func(u domain.User) string { return u.ID })),
		UserSessions:         New(findByIDs[domain.UserSession](gateway, docstore.CollUserSessions, func(s domain.UserSession) string { return s.ID })),
		Roles:                New(findByIDs[domain.Role](gateway, docstore.CollRoles, func(r domain.Role) string { return r.ID })),
		Emotes:               New(findByIDs[domain.Emote](gateway, docstore.CollEmotes, func(e domain.Emote) string { return e.ID })),
		EmoteSets:            New(findByIDs[domain.EmoteSet](gateway, docstore.CollEmoteSets, func(s domain.EmoteSet) string { return s.ID })),
		Paints:               New(findByIDs[domain.Paint](gateway, docstore.CollPaints, func(p domain.Paint) string { return p.ID })),
		Badges:               New(findByIDs[domain.Badge](gateway, docstore.CollBadges, func(b domain.Badge) string { return b.ID })),
		SubscriptionProducts: New(findByIDs[domain.Product](gateway, docstore.CollProducts, func(p domain.Product) string { return p.ID })),
		EdgesOutbound:        New(edgeBatch(gateway, graph.Outbound)),
		EdgesInbound:         New(edgeBatch(gateway, graph.Inbound)),
	}
}

// findByIDs builds the BatchFunc every simple by-id loader shares: one
// $in query against coll, scattered back into a map keyed by keyOf.
func findByIDs[T any](gateway *docstore.Gateway, coll string, keyOf func(T) string) BatchFunc[string, T] {
	repo := docstore.NewRepository[T](gateway, coll)
	return func(ctx context.Context, ids []string) (map[string]T, error) {
		anyIDs := make([]any, len(ids))
		for i, id := range ids {
			anyIDs[i] = id
		}
		docs, err := repo.Find(ctx, bson.M{"_id": bson.M{"$in": anyIDs}})
		if err != nil {
			return nil, err
		}
		out := make(map[string]T, len(docs))
		for _, d := range docs {
			out[keyOf(d)] = d
		}
		return out, nil
	}
}

// edgeBatch wraps a graph.Loader (itself already one batched $or query per
// call) in the fabric's BatchFunc shape, grouping the edges it returns by
// whichever endpoint the requested keys matched on.
func edgeBatch(gateway *docstore.Gateway, direction graph.Direction) BatchFunc[domain.Node, []domain.Edge] {
	gl := graph.NewLoader(gateway, direction)
	return func(ctx context.Context, keys []domain.Node) (map[domain.Node][]domain.Edge, error) {
		edges, err := gl.LoadMany(ctx, keys)
		if err != nil {
			return nil, err
		}
		out := make(map[domain.Node][]domain.Edge, len(keys))
		for _, k := range keys {
			out[k] = nil
		}
		for _, e := range edges {
			node := e.ID.From
			if direction == graph.Inbound {
				node = e.ID.To
			}
			out[node] = append(out[node], e)
		}
		return out, nil
	}
}
