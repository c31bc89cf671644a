// Package graph is the entitlement graph (C5): batched inbound/outbound
// edge loaders over the document store and the bounded BFS traversal that
// computes a node's full authorization set.
package graph

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/vellumapp/platform/internal/docstore"
	"github.com/vellumapp/platform/internal/domain"
	"github.com/vellumapp/platform/internal/errs"
)

// Direction selects which side of an edge a loader keys on.
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

// EdgeLoader is the batching interface Traverse depends on. The document
// store-backed Loader is the production implementation; tests substitute an
// in-memory one over a fixed edge set.
type EdgeLoader interface {
	LoadMany(ctx context.Context, keys []domain.Node) ([]domain.Edge, error)
	opposite(e domain.Edge) domain.Node
}

// Loader batches lookups of edges adjacent to a set of nodes in a single
// document store query, the same shape internal/loaders generalizes for
// every other batched entity fetch in this core.
type Loader struct {
	repo      *docstore.Repository[domain.Edge]
	direction Direction
}

func NewLoader(g *docstore.Gateway, direction Direction) *Loader {
	return &Loader{repo: docstore.NewRepository[domain.Edge](g, docstore.CollEdges), direction: direction}
}

// LoadMany fetches every edge adjacent to any node in keys on this loader's
// side, in a single query.
func (l *Loader) LoadMany(ctx context.Context, keys []domain.Node) ([]domain.Edge, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	field := "_id.from"
	if l.direction == Inbound {
		field = "_id.to"
	}

	ors := make([]bson.M, 0, len(keys))
	for _, k := range keys {
		ors = append(ors, bson.M{field + ".kind": k.Kind, field + ".id": k.ID})
	}

	edges, err := l.repo.Find(ctx, bson.M{"$or": ors})
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// opposite returns the endpoint on the side a traversal should expand to
// next: the `to` node for an outbound loader, the `from` node for inbound.
func (l *Loader) opposite(e domain.Edge) domain.Node {
	if l.direction == Outbound {
		return e.ID.To
	}
	return e.ID.From
}

// InsertEdge and DeleteEdge give graph callers a stable entry point for
// mutating edges without reaching into docstore directly.
func InsertEdge(ctx context.Context, g *docstore.Gateway, e domain.Edge) error {
	repo := docstore.NewRepository[domain.Edge](g, docstore.CollEdges)
	return repo.InsertOne(ctx, e)
}

func DeleteEdge(ctx context.Context, g *docstore.Gateway, id domain.EdgeID) error {
	repo := docstore.NewRepository[domain.Edge](g, docstore.CollEdges)
	if err := repo.DeleteByID(ctx, id); err != nil {
		if errs.KindOf(err) == errs.KindNotFound {
			return nil
		}
		return err
	}
	return nil
}
