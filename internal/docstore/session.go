package docstore

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vellumapp/platform/internal/errs"
)

// Session wraps a mongo.SessionContext so internal/txrunner can drive the
// retry loop against this gateway without importing the driver directly.
type Session struct {
	mongo.SessionContext
}

// WithSession starts a MongoDB client session and invokes fn with a fresh
// Session wrapper, ending the session on return regardless of outcome.
func (g *Gateway) WithSession(ctx context.Context, fn func(ctx context.Context, sess *Session) error) error {
	sess, err := g.client.StartSession()
	if err != nil {
		return errs.Wrap(errs.KindTransientStore, "start document store session", err)
	}
	defer sess.EndSession(ctx)

	return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		return fn(sc, &Session{SessionContext: sc})
	})
}

// StartTransaction begins a multi-document transaction on the session.
func (s *Session) StartTransaction() error {
	return s.SessionContext.StartTransaction()
}

// CommitTransaction commits the in-flight transaction.
func (s *Session) CommitTransaction(ctx context.Context) error {
	return s.SessionContext.CommitTransaction(ctx)
}

// AbortTransaction aborts the in-flight transaction.
func (s *Session) AbortTransaction(ctx context.Context) error {
	return s.SessionContext.AbortTransaction(ctx)
}

// HasErrorLabel exposes mongo's transient/commit-uncertain error labels so
// internal/txrunner's retry loop can classify a commit failure without
// importing mongo.ServerError directly.
func HasErrorLabel(err error, label string) bool {
	se, ok := err.(mongo.ServerError)
	return ok && se.HasErrorLabel(label)
}

const (
	LabelTransientTransaction     = "TransientTransactionError"
	LabelUnknownTransactionCommit = "UnknownTransactionCommitResult"
)
