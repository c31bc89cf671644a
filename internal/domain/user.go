package domain

import "time"

// StyleSelection records which badge/paint a user has chosen to display,
// among the ones the entitlement graph grants them. Selecting an entitlement
// the user no longer holds is caught at write time by the permission folder,
// not silently dropped at read time.
type StyleSelection struct {
	BadgeID string `bson:"badge_id,omitempty"`
	PaintID string `bson:"paint_id,omitempty"`
}

// SearchIndexCache is the fast-path snapshot of a user's role, badge, paint
// and emote-set membership, so that a routine request can skip the BFS
// traversal entirely (§4.6, §12). UserComputedLoader uses it only while the
// user's ReindexPending marker is unset. Nothing in this module writes the
// snapshot back after a full recomputation or clears ReindexPending.
type SearchIndexCache struct {
	Generation int64     `bson:"generation"`
	RoleIDs    []string  `bson:"role_ids"`
	BadgeIDs   []string  `bson:"badge_ids"`
	PaintIDs   []string  `bson:"paint_ids"`
	EmoteSetIDs []string `bson:"emote_set_ids"`
	ComputedAt time.Time `bson:"computed_at"`
}

// User is the platform identity record: its own connections to upstream auth
// providers, the styles it has actively selected, any active ban, and the
// cached entitlement snapshot computed by the permission folder.
type User struct {
	ID              string            `bson:"_id"`
	DisplayName     string            `bson:"display_name"`
	Connections     []Connection      `bson:"connections"`
	StyleSelection  StyleSelection    `bson:"style_selection"`
	ActiveEmoteSetID string           `bson:"active_emote_set_id,omitempty"`
	ProfilePicture  *ImageSet         `bson:"profile_picture,omitempty"`
	ProfilePicturePending bool        `bson:"profile_picture_pending"`
	SearchIndex     *SearchIndexCache `bson:"search_index,omitempty"`
	ReindexPending  bool              `bson:"reindex_pending"`
	CreatedAt       time.Time         `bson:"created_at"`
	UpdatedAt       time.Time         `bson:"updated_at"`
}

// Connection links a User to an upstream identity provider account.
type Connection struct {
	Platform  string `bson:"platform"`
	PlatformID string `bson:"platform_id"`
	Username  string `bson:"username"`
}

// CalculatedEntitlements is the result of folding a user's graph traversal
// into a single permission/style view. It is built by two independent paths
// per §12 — a full BFS fold and the cached search-index fast path — and both
// must agree bit-for-bit on the same input state.
type CalculatedEntitlements struct {
	UserID      string      `bson:"user_id"`
	Roles       []string    `bson:"roles"`
	Badges      []string    `bson:"badges"`
	Paints      []string    `bson:"paints"`
	EmoteSets   []string    `bson:"emote_sets"`
	Permissions Permissions `bson:"permissions"`
	Generation  int64       `bson:"generation"`
}
