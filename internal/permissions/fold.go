// Package permissions is the permission folder (C6): it turns a user's
// traversed role/badge/paint/emote-set set into folded Permissions and a
// published CalculatedEntitlements, with a fast path that trusts a still-valid
// cached search index instead of re-running the graph traversal.
package permissions

import (
	"context"
	"sort"

	"github.com/vellumapp/platform/internal/docstore"
	"github.com/vellumapp/platform/internal/domain"
	"github.com/vellumapp/platform/internal/graph"
)

// RoleOrder is the admin-maintained total order roles are ranked by. Index
// in the slice is the rank; later entries outrank earlier ones, matching
// the specification's "role_order" concept directly instead of reusing
// Role.Rank for this (a role's own Rank field is its own declared rank;
// RoleOrder is the authoritative tie-break sequence admins curate).
type RoleOrder []string

func (o RoleOrder) indexOf(roleID string) int {
	for i, id := range o {
		if id == roleID {
			return i
		}
	}
	return -1
}

// Folder computes a user's Permissions and CalculatedEntitlements, either by
// full graph traversal or the cached fast path.
type Folder struct {
	gateway *docstore.Gateway
}

func NewFolder(gateway *docstore.Gateway) *Folder {
	return &Folder{gateway: gateway}
}

// Fold runs the full traversal-based computation over traversal, the edges
// of an outbound traversal the caller seeded from the user's own node and the
// global default group: it groups the edges by kind, folds Permissions from
// allRoles in role_order, and overlays any active ban.
func (f *Folder) Fold(ctx context.Context, userID string, roleOrder RoleOrder, allRoles map[string]domain.Role, ban *domain.Ban, generation int64, traversal []domain.Edge) domain.CalculatedEntitlements {
	byKind := graph.EndpointsByKind(traversal, graph.Outbound)

	roleIDs := dedupe(byKind[domain.NodeRole])
	sortByRoleOrder(roleIDs, roleOrder)

	folded := domain.NewPermissions()
	for _, id := range roleIDs {
		role, ok := allRoles[id]
		if !ok {
			continue
		}
		folded = folded.Merge(role.Permissions)
	}

	if ban != nil {
		folded = overlayBan(folded, *ban)
	}

	return domain.CalculatedEntitlements{
		UserID:      userID,
		Roles:       roleIDs,
		Badges:      dedupe(byKind[domain.NodeBadge]),
		Paints:      dedupe(byKind[domain.NodePaint]),
		EmoteSets:   dedupe(byKind[domain.NodeEmoteSet]),
		Permissions: folded,
		Generation:  generation,
	}
}

// FoldFromCache is the fast path: it trusts the user's cached search index
// for role/badge/paint/emote-set membership and only re-derives Permissions
// from the current role table, so a role permission change takes effect
// immediately without forcing a full traversal.
func (f *Folder) FoldFromCache(cache domain.SearchIndexCache, userID string, roleOrder RoleOrder, allRoles map[string]domain.Role, ban *domain.Ban) domain.CalculatedEntitlements {
	roleIDs := append([]string(nil), cache.RoleIDs...)
	sortByRoleOrder(roleIDs, roleOrder)

	folded := domain.NewPermissions()
	for _, id := range roleIDs {
		role, ok := allRoles[id]
		if !ok {
			continue
		}
		folded = folded.Merge(role.Permissions)
	}
	if ban != nil {
		folded = overlayBan(folded, *ban)
	}

	return domain.CalculatedEntitlements{
		UserID:      userID,
		Roles:       roleIDs,
		Badges:      cache.BadgeIDs,
		Paints:      cache.PaintIDs,
		EmoteSets:   cache.EmoteSetIDs,
		Permissions: folded,
		Generation:  cache.Generation,
	}
}

// HighestRole returns the highest-ranked held role id (per roleOrder) and
// its rank index, or ("", -1) if the user holds no ranked role.
func HighestRole(roleIDs []string, roleOrder RoleOrder) (string, int) {
	best := ""
	bestRank := -1
	for _, id := range roleIDs {
		if rank := roleOrder.indexOf(id); rank > bestRank {
			bestRank = rank
			best = id
		}
	}
	return best, bestRank
}

// HighestRoleColor scans held roles from highest to lowest rank and returns
// the first nonzero color found.
func HighestRoleColor(roleIDs []string, roleOrder RoleOrder, allRoles map[string]domain.Role) int32 {
	ranked := append([]string(nil), roleIDs...)
	sortByRoleOrder(ranked, roleOrder)
	for i := len(ranked) - 1; i >= 0; i-- {
		if role, ok := allRoles[ranked[i]]; ok && role.Color != 0 {
			return role.Color
		}
	}
	return 0
}

// overlayBan unions ban's deny set into p's deny set. It runs after the role
// fold rather than inside Merge so a ban never needs a rank position in
// RoleOrder: it always wins regardless of which role it's layered over.
func overlayBan(p domain.Permissions, ban domain.Ban) domain.Permissions {
	return p.Merge(domain.Permissions{Deny: ban.Deny.Deny})
}

func sortByRoleOrder(roleIDs []string, order RoleOrder) {
	sort.SliceStable(roleIDs, func(i, j int) bool {
		return order.indexOf(roleIDs[i]) < order.indexOf(roleIDs[j])
	})
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
