package graph

import (
	"context"
	"testing"
	"time"

	"github.com/vellumapp/platform/internal/domain"
)

// fakeLoader serves LoadMany from a fixed in-memory edge set, letting the
// traversal algorithm be tested without a document store.
type fakeLoader struct {
	edges     []domain.Edge
	direction Direction
}

func (f *fakeLoader) LoadMany(ctx context.Context, keys []domain.Node) ([]domain.Edge, error) {
	keySet := make(map[domain.Node]bool, len(keys))
	for _, k := range keys {
		keySet[k] = true
	}

	field := func(e domain.Edge) domain.Node {
		if f.direction == Outbound {
			return e.ID.From
		}
		return e.ID.To
	}

	var out []domain.Edge
	for _, e := range f.edges {
		if keySet[field(e)] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLoader) opposite(e domain.Edge) domain.Node {
	if f.direction == Outbound {
		return e.ID.To
	}
	return e.ID.From
}

func TestTraverse_UserAuthorizationSet(t *testing.T) {
	now := time.Now()
	user := domain.UserNode("u1")
	role := domain.RoleNode("subscriber")
	badge := domain.BadgeNode("og")
	emoteSet := domain.EmoteSetNode("es1")

	edges := []domain.Edge{
		domain.NewEdge(domain.GlobalDefaultEntitlementGroup, domain.RoleNode("default"), domain.ManagedBySystem, now),
		domain.NewEdge(user, role, domain.ManagedBySubscription, now),
		domain.NewEdge(role, badge, domain.ManagedBySystem, now),
		domain.NewEdge(user, emoteSet, domain.ManagedByUser, now),
	}

	loader := &fakeLoader{edges: edges, direction: Outbound}

	result, err := Traverse(context.Background(), loader, UserAuthorizationSeeds("u1"), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 4 {
		t.Fatalf("expected 4 edges reached, got %d", len(result))
	}

	byKind := EndpointsByKind(result, Outbound)
	if len(byKind[domain.NodeRole]) != 2 {
		t.Fatalf("expected 2 role grants (default + subscriber), got %d", len(byKind[domain.NodeRole]))
	}
	if len(byKind[domain.NodeBadge]) != 1 {
		t.Fatalf("expected 1 badge grant, got %d", len(byKind[domain.NodeBadge]))
	}
}

func TestTraverse_ExpiredEdgeExcluded(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	user := domain.UserNode("u1")

	expired := domain.NewEdge(user, domain.BadgeNode("temp"), domain.ManagedBySpecialEvent, now)
	expired.ExpiresAt = &past

	loader := &fakeLoader{edges: []domain.Edge{expired}, direction: Outbound}

	result, err := Traverse(context.Background(), loader, []domain.Node{user}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 0 {
		t.Fatalf("expected expired edge to be excluded, got %d edges", len(result))
	}
}

func TestTraverse_CycleDoesNotReVisit(t *testing.T) {
	now := time.Now()
	a := domain.RoleNode("a")
	b := domain.RoleNode("b")

	edges := []domain.Edge{
		domain.NewEdge(a, b, domain.ManagedBySystem, now),
		domain.NewEdge(b, a, domain.ManagedBySystem, now),
	}
	loader := &fakeLoader{edges: edges, direction: Outbound}

	result, err := Traverse(context.Background(), loader, []domain.Node{a}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected both cycle edges visited exactly once, got %d", len(result))
	}
}
