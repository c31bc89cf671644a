// Package ids provides the 128-bit time-ordered identifiers used for every
// entity in the core: users, roles, entitlement edges, subscriptions,
// emote sets, webhook events, and cron jobs. IDs sort lexicographically by
// creation time because they are backed by UUIDv7 (RFC 9562), which packs a
// 48-bit millisecond timestamp into the high bits.
package ids

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// ID is a 128-bit time-ordered identifier.
type ID uuid.UUID

// Nil is the zero ID.
var Nil ID

// New generates a fresh time-ordered ID.
func New() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the entropy source is broken; that is a
		// fatal condition for every other part of the process too.
		panic(fmt.Sprintf("ids: failed to generate v7 uuid: %v", err))
	}
	return ID(id)
}

// Parse parses the canonical string form of an ID.
func Parse(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("ids: parse %q: %w", s, err)
	}
	return ID(u), nil
}

// MustParse parses s or panics; for use with compile-time-known literals in
// tests and seed data.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether id is the zero value.
func (id ID) IsNil() bool {
	return id == Nil
}

// Legacy96 returns a lossy 96-bit identifier for systems that have not
// migrated off the legacy id width, by dropping the low 32 bits. The
// conversion is lossless exactly when those bits are already zero.
func (id ID) Legacy96() [12]byte {
	var out [12]byte
	copy(out[:], uuid.UUID(id)[:12])
	return out
}

// Time returns the millisecond Unix timestamp encoded in a UUIDv7 value's
// high 48 bits.
func (id ID) Time() int64 {
	var buf [8]byte
	copy(buf[2:], uuid.UUID(id)[:6])
	return int64(binary.BigEndian.Uint64(buf[:]))
}

// MarshalBSONValue stores the ID as a BSON binary through the driver's
// default encoding of a 16-byte array (generic subtype 0x00, not the UUID
// subtype 0x04), so Mongo orders and indexes it by its time-ordered bytes.
func (id ID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(uuid.UUID(id))
}

func (id *ID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	var u uuid.UUID
	if err := bson.UnmarshalValue(t, data, &u); err != nil {
		return err
	}
	*id = ID(u)
	return nil
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Value implements driver.Valuer for the rare code path that still reads
// through database/sql (legacy archival jobs).
func (id ID) Value() (driver.Value, error) {
	return id.String(), nil
}
