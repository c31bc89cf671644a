package domain

import "time"

// EmoteSetEmote is one slot in an emote set: the emote reference plus the
// alias it is bound to within that set (aliases are per-set, not global).
type EmoteSetEmote struct {
	EmoteID string    `bson:"emote_id"`
	Alias   string    `bson:"alias"`
	Flags   int64     `bson:"flags"`
	AddedBy string    `bson:"added_by"`
	AddedAt time.Time `bson:"added_at"`
}

// EmoteSetKind discriminates the handful of set roles the platform assigns
// special handling to: a user's default personal set, a global set implicitly
// available to everyone, or a set tied to a SpecialEvent node.
type EmoteSetKind string

const (
	EmoteSetNormal   EmoteSetKind = "normal"
	EmoteSetPersonal EmoteSetKind = "personal"
	EmoteSetSpecial  EmoteSetKind = "special"
	EmoteSetGlobal   EmoteSetKind = "global"
)

// EmoteSet is a named, owned collection of emote slots, capped by whatever
// CapEmoteSetCapacity the owner's folded permissions allow.
// EmotesChangedSinceReindex is the per-set reindex marker. Nothing in this
// module sets or clears it, and UserComputedLoader's cache check reads
// User.ReindexPending rather than this field.
type EmoteSet struct {
	ID                        string          `bson:"_id"`
	Name                      string          `bson:"name"`
	OwnerID                   string          `bson:"owner_id"`
	Kind                      EmoteSetKind    `bson:"kind"`
	Emotes                    []EmoteSetEmote `bson:"emotes"`
	Capacity                  int64           `bson:"capacity"`
	EmotesChangedSinceReindex bool            `bson:"emotes_changed_since_reindex"`
	CreatedAt                 time.Time       `bson:"created_at"`
	UpdatedAt                 time.Time       `bson:"updated_at"`
}

func (s EmoteSet) Full() bool {
	return int64(len(s.Emotes)) >= s.Capacity
}

func (s EmoteSet) IndexOfAlias(alias string) int {
	for i, e := range s.Emotes {
		if e.Alias == alias {
			return i
		}
	}
	return -1
}

// EmoteModerationRequest is queued when a user submits an emote for listing
// review. Concurrent submissions for the same emote can legitimately race
// past the uniqueness check between read and insert — this is an accepted
// reproduction of the original's behavior, not a bug to close (Open
// Question, resolved: left open rather than serialized behind a mutex,
// since double-queuing a review is harmless and the moderation UI already
// dedupes by emote id at render time).
type EmoteModerationRequest struct {
	ID        string    `bson:"_id"`
	EmoteID   string    `bson:"emote_id"`
	UserID    string    `bson:"user_id"`
	CreatedAt time.Time `bson:"created_at"`
	Resolved  bool      `bson:"resolved"`
}
