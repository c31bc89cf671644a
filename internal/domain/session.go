package domain

import "time"

// UserSession is a login session token issued after a successful external
// auth provider callback (§3: "Users are created on first successful
// external login").
type UserSession struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

func (s UserSession) Expired(at time.Time) bool {
	return !s.ExpiresAt.After(at)
}
