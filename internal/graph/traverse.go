package graph

import (
	"context"
	"time"

	"github.com/vellumapp/platform/internal/domain"
)

// Traverse performs the bounded BFS described in the specification: starting
// from seeds, it repeatedly batch-loads every edge adjacent to the current
// frontier in direction, collects them, and advances the frontier to the
// opposite endpoints not yet visited. It terminates because the node
// universe is finite, and visiting a node twice (a cycle) is a no-op rather
// than an error.
func Traverse(ctx context.Context, loader EdgeLoader, seeds []domain.Node, at time.Time) ([]domain.Edge, error) {
	visited := make(map[domain.Node]bool, len(seeds))
	frontier := make([]domain.Node, 0, len(seeds))
	for _, s := range seeds {
		if !visited[s] {
			visited[s] = true
			frontier = append(frontier, s)
		}
	}

	var allEdges []domain.Edge
	seenEdges := make(map[domain.EdgeID]bool)

	for len(frontier) > 0 {
		batch, err := loader.LoadMany(ctx, frontier)
		if err != nil {
			return nil, err
		}

		var next []domain.Node
		for _, e := range batch {
			if e.Expired(at) {
				continue
			}
			if !seenEdges[e.ID] {
				seenEdges[e.ID] = true
				allEdges = append(allEdges, e)
			}
			opp := loader.opposite(e)
			if !visited[opp] {
				visited[opp] = true
				next = append(next, opp)
			}
		}

		frontier = next
	}

	return allEdges, nil
}

// UserAuthorizationSeeds returns the two roots every user traversal starts
// from: the user's own node and the global default entitlement group.
func UserAuthorizationSeeds(userID string) []domain.Node {
	return []domain.Node{domain.UserNode(userID), domain.GlobalDefaultEntitlementGroup}
}

// EndpointsByKind groups the opposite endpoints of edges by node kind,
// which is how the permission folder pulls out role/badge/paint/emote-set
// ids from a flat edge list without repeating the same switch everywhere.
func EndpointsByKind(edges []domain.Edge, direction Direction) map[domain.NodeKind][]string {
	out := make(map[domain.NodeKind][]string)
	for _, e := range edges {
		node := e.ID.To
		if direction == Inbound {
			node = e.ID.From
		}
		if node.ID == "" {
			continue
		}
		out[node.Kind] = append(out[node.Kind], node.ID)
	}
	return out
}
