package domain

// PermissionFlag is one bit of a category's capability bitset. Flags within
// a category OR together across every role a user holds; a category absent
// from every held role denies all its flags.
type PermissionFlag uint32

const (
	PermEmoteUpload PermissionFlag = 1 << iota
	PermEmoteEdit
	PermEmoteDelete
	PermEmoteSetCreate
	PermEmoteSetEdit
	PermEmoteSetAssign
	PermUserModerate
	PermUserBan
	PermRoleAssign
	PermBadgeAssign
	PermPaintAssign
	PermAdminMetrics
	PermAdminCron
)

// Cap is a numeric ceiling a role contributes (e.g. max active emote sets, max
// emotes per set). Unlike flags, caps take the maximum across held roles, not
// the union — a higher-rank role raising a cap must never be shadowed by a
// lower one.
type Cap string

const (
	CapEmoteSetSlots      Cap = "emote_set_slots"
	CapEmoteSetCapacity   Cap = "emote_set_capacity"
	CapPersonalEmoteSlots Cap = "personal_emote_slots"
)

// Permissions is a category-keyed pair of allow/deny flag bitsets plus a
// numeric cap table. Allow and Deny are disjoint in intent but not enforced
// to be: a flag set in both means a role grants a capability another role
// explicitly revokes, and Has resolves that in Deny's favor.
type Permissions struct {
	Allow map[string]PermissionFlag `bson:"allow"`
	Deny  map[string]PermissionFlag `bson:"deny"`
	Caps  map[Cap]int64             `bson:"caps"`
}

func NewPermissions() Permissions {
	return Permissions{Allow: map[string]PermissionFlag{}, Deny: map[string]PermissionFlag{}, Caps: map[Cap]int64{}}
}

// denyAllCategory is a deny-side sentinel category: a flag set against it
// denies that flag in every category, used by a ban that strips permissions
// outright without needing to know every category name in advance.
const denyAllCategory = "*"

// Has reports whether flag is granted in category: allowed by some held role
// and not explicitly denied by another. An explicit deny always wins over an
// allow, regardless of which role contributed which.
func (p Permissions) Has(category string, flag PermissionFlag) bool {
	deny := p.Deny[category] | p.Deny[denyAllCategory]
	granted := p.Allow[category] &^ deny
	return granted&flag != 0
}

func (p Permissions) Cap(cap Cap) int64 {
	return p.Caps[cap]
}

// Merge folds other into p: allow flags union per category, deny flags union
// per category, caps take the max. Merge is commutative in the flags it
// produces — explicit deny dominance is resolved later by Has, not by the
// order roles are merged in — but callers still fold roles in rank order
// because cap precedence and color tie-breaking elsewhere depend on it.
func (p Permissions) Merge(other Permissions) Permissions {
	out := Permissions{
		Allow: make(map[string]PermissionFlag, len(p.Allow)),
		Deny:  make(map[string]PermissionFlag, len(p.Deny)),
		Caps:  make(map[Cap]int64, len(p.Caps)),
	}
	for k, v := range p.Allow {
		out.Allow[k] = v
	}
	for k, v := range other.Allow {
		out.Allow[k] |= v
	}
	for k, v := range p.Deny {
		out.Deny[k] = v
	}
	for k, v := range other.Deny {
		out.Deny[k] |= v
	}
	for k, v := range p.Caps {
		out.Caps[k] = v
	}
	for k, v := range other.Caps {
		if v > out.Caps[k] {
			out.Caps[k] = v
		}
	}
	return out
}

// Role is a named, ranked permission bundle. Higher Rank outranks lower for
// tie-breaking purposes (display color, default role precedence).
type Role struct {
	ID          string      `bson:"_id"`
	Name        string      `bson:"name"`
	Rank        int32       `bson:"rank"`
	Color       int32       `bson:"color"`
	Permissions Permissions `bson:"permissions"`
}

// Ban records an active moderation restriction on a user. Deny is overlaid
// onto the folded role result after the role fold, not merged into it: its
// Deny side is unioned into the result's Deny side, so a ban can revoke a
// capability no held role's own Deny set touches. Allow and Caps on a ban's
// Deny value are unused by the overlay and should stay empty.
type Ban struct {
	ID       string `bson:"_id"`
	UserID   string `bson:"user_id"`
	Reason   string `bson:"reason"`
	IssuedBy string `bson:"issued_by"`
	// ExpiresAt nil means permanent.
	ExpiresAt *int64      `bson:"expires_at,omitempty"`
	Deny      Permissions `bson:"deny"`
}

// DenyAllPermissions returns a Ban deny set that blocks every flag in every
// category, for a ban that strips all permissions outright.
func DenyAllPermissions() Permissions {
	p := NewPermissions()
	p.Deny[denyAllCategory] = ^PermissionFlag(0)
	return p
}

// DenyEditing returns a Ban deny set that blocks upload and edit flags in
// the emote category, leaving moderation and other categories untouched.
func DenyEditing() Permissions {
	p := NewPermissions()
	p.Deny["emote"] = PermEmoteUpload | PermEmoteEdit | PermEmoteSetEdit
	return p
}
