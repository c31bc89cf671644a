package permissions

import (
	"testing"

	"github.com/vellumapp/platform/internal/domain"
)

func roleWithFlag(id string, flag domain.PermissionFlag, color int32) domain.Role {
	return domain.Role{
		ID:    id,
		Name:  id,
		Color: color,
		Permissions: domain.Permissions{
			Allow: map[string]domain.PermissionFlag{"emote": flag},
			Deny:  map[string]domain.PermissionFlag{},
			Caps:  map[domain.Cap]int64{domain.CapEmoteSetSlots: 1},
		},
	}
}

func roleWithDeny(id string, deny domain.PermissionFlag) domain.Role {
	return domain.Role{
		ID:   id,
		Name: id,
		Permissions: domain.Permissions{
			Allow: map[string]domain.PermissionFlag{},
			Deny:  map[string]domain.PermissionFlag{"emote": deny},
			Caps:  map[domain.Cap]int64{},
		},
	}
}

func TestFold_UnionsFlagsAndMaxesCaps(t *testing.T) {
	roles := map[string]domain.Role{
		"default":    roleWithFlag("default", domain.PermEmoteUpload, 0),
		"subscriber": roleWithFlag("subscriber", domain.PermEmoteSetEdit, 0xAABBCC),
	}
	roles["subscriber"].Permissions.Caps[domain.CapEmoteSetSlots] = 5

	order := RoleOrder{"default", "subscriber"}
	f := NewFolder(nil)

	traversal := []domain.Edge{
		{ID: domain.EdgeID{From: domain.UserNode("u1"), To: domain.RoleNode("default")}},
		{ID: domain.EdgeID{From: domain.UserNode("u1"), To: domain.RoleNode("subscriber")}},
	}
	got := f.Fold(nil, "u1", order, roles, nil, 1, traversal)

	if !got.Permissions.Has("emote", domain.PermEmoteUpload) || !got.Permissions.Has("emote", domain.PermEmoteSetEdit) {
		t.Fatalf("expected both flags present in folded permissions")
	}
	if got.Permissions.Cap(domain.CapEmoteSetSlots) != 5 {
		t.Fatalf("expected cap to take the max (5), got %d", got.Permissions.Cap(domain.CapEmoteSetSlots))
	}
}

func TestOverlayBan_NoPermissionsZeroesAllFlags(t *testing.T) {
	base := domain.Permissions{
		Allow: map[string]domain.PermissionFlag{"emote": domain.PermEmoteUpload | domain.PermEmoteEdit},
		Deny:  map[string]domain.PermissionFlag{},
		Caps:  map[domain.Cap]int64{},
	}
	ban := domain.Ban{Deny: domain.DenyAllPermissions()}

	out := overlayBan(base, ban)
	if out.Has("emote", domain.PermEmoteUpload) || out.Has("emote", domain.PermEmoteEdit) {
		t.Fatalf("expected all flags cleared under a no_permissions ban, got allow=%v deny=%v", out.Allow, out.Deny)
	}
}

func TestOverlayBan_NoEditingClearsOnlyEditingFlags(t *testing.T) {
	base := domain.Permissions{
		Allow: map[string]domain.PermissionFlag{"emote": domain.PermEmoteUpload | domain.PermUserModerate},
		Deny:  map[string]domain.PermissionFlag{},
		Caps:  map[domain.Cap]int64{},
	}
	ban := domain.Ban{Deny: domain.DenyEditing()}

	out := overlayBan(base, ban)
	if out.Has("emote", domain.PermEmoteUpload) {
		t.Fatalf("expected PermEmoteUpload cleared under a no_editing ban")
	}
	if !out.Has("emote", domain.PermUserModerate) {
		t.Fatalf("expected PermUserModerate to survive a no_editing ban")
	}
}

func TestFoldFromCache_RoleLevelDenyDominatesAllow(t *testing.T) {
	roles := map[string]domain.Role{
		"default":   roleWithFlag("default", domain.PermEmoteUpload, 0),
		"probation": roleWithDeny("probation", domain.PermEmoteUpload),
	}
	order := RoleOrder{"default", "probation"}
	cache := domain.SearchIndexCache{RoleIDs: []string{"default", "probation"}}
	f := NewFolder(nil)

	got := f.FoldFromCache(cache, "u1", order, roles, nil)
	if got.Permissions.Has("emote", domain.PermEmoteUpload) {
		t.Fatalf("expected probation role's explicit deny to dominate default role's allow")
	}
}

func TestHighestRole_PicksLastInRoleOrder(t *testing.T) {
	order := RoleOrder{"default", "subscriber", "admin"}
	id, rank := HighestRole([]string{"default", "subscriber"}, order)
	if id != "subscriber" || rank != 1 {
		t.Fatalf("expected subscriber at rank 1, got %q rank %d", id, rank)
	}
}

func TestHighestRole_NoRankedRole(t *testing.T) {
	order := RoleOrder{"default"}
	id, rank := HighestRole([]string{"unranked"}, order)
	if id != "" || rank != -1 {
		t.Fatalf("expected no ranked role, got %q rank %d", id, rank)
	}
}

func TestHighestRoleColor_SkipsZeroColorRoles(t *testing.T) {
	order := RoleOrder{"default", "subscriber", "admin"}
	roles := map[string]domain.Role{
		"default":    roleWithFlag("default", domain.PermEmoteUpload, 0),
		"subscriber": roleWithFlag("subscriber", domain.PermEmoteUpload, 0),
		"admin":      roleWithFlag("admin", domain.PermEmoteUpload, 0x123456),
	}
	color := HighestRoleColor([]string{"default", "subscriber", "admin"}, order, roles)
	if color != 0x123456 {
		t.Fatalf("expected admin's color, got %x", color)
	}
}

func TestFoldFromCache_UsesCachedMembership(t *testing.T) {
	roles := map[string]domain.Role{
		"default": roleWithFlag("default", domain.PermEmoteUpload, 0),
	}
	order := RoleOrder{"default"}
	cache := domain.SearchIndexCache{
		Generation: 7,
		RoleIDs:    []string{"default"},
		BadgeIDs:   []string{"og"},
		PaintIDs:   nil,
		EmoteSetIDs: []string{"es1"},
	}

	f := NewFolder(nil)
	got := f.FoldFromCache(cache, "u1", order, roles, nil)

	if got.Generation != 7 {
		t.Fatalf("expected generation 7, got %d", got.Generation)
	}
	if len(got.Badges) != 1 || got.Badges[0] != "og" {
		t.Fatalf("expected cached badge og, got %v", got.Badges)
	}
	if !got.Permissions.Has("emote", domain.PermEmoteUpload) {
		t.Fatalf("expected folded permission from cached role id")
	}
}
