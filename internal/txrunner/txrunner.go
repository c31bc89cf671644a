// Package txrunner is the transaction runner (C4): it drives a MongoDB
// multi-document transaction to commit, retrying the whole operation on a
// transient error and retrying just the commit step on an uncertain commit
// result, then awaits every journal event the operation registered being
// durably published before returning.
package txrunner

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vellumapp/platform/internal/bus"
	"github.com/vellumapp/platform/internal/docstore"
	"github.com/vellumapp/platform/internal/domain"
	"github.com/vellumapp/platform/internal/errs"
	"github.com/vellumapp/platform/internal/metrics"
)

// maxRetries bounds the outer retry_operation loop. The operation callback
// runs at most maxRetries+1 times before the runner gives up.
const maxRetries = 3

// Tx is the handle an operation callback receives: a live document-store
// session plus an accumulator for journal events to publish after commit.
type Tx struct {
	*docstore.Session
	events []domain.Event
}

// RegisterEvent queues an event to be inserted into the journal and
// published to the bus once (and only if) this transaction commits.
func (tx *Tx) RegisterEvent(e domain.Event) {
	tx.events = append(tx.events, e)
}

// Runner composes the document store gateway and the durable bus to run
// transactional operations end to end.
type Runner struct {
	gateway      *docstore.Gateway
	bus          bus.Bus
	eventSubject string
	metrics      *metrics.Metrics
	log          zerolog.Logger
}

func New(gateway *docstore.Gateway, b bus.Bus, eventSubjectPrefix string, m *metrics.Metrics, log zerolog.Logger) *Runner {
	return &Runner{gateway: gateway, bus: b, eventSubject: eventSubjectPrefix, metrics: m, log: log.With().Str("component", "txrunner").Logger()}
}

// Run executes fn inside a MongoDB transaction, retrying per the algorithm
// above, and on success durably publishes every event fn registered before
// returning fn's result to the caller.
func Run[T any](ctx context.Context, r *Runner, operation string, fn func(ctx context.Context, tx *Tx) (T, error)) (T, error) {
	var zero T
	start := time.Now()

	var result T
	err := r.gateway.WithSession(ctx, func(ctx context.Context, sess *docstore.Session) error {
		if err := sess.StartTransaction(); err != nil {
			return errs.Wrap(errs.KindTransientStore, "start transaction", err)
		}

		retries := 0
	retryOperation:
		for {
			if retries > maxRetries {
				return errs.New(errs.KindFatal, "too many transaction retries")
			}
			retries++

			tx := &Tx{Session: sess}
			output, opErr := fn(ctx, tx)

			if opErr != nil {
				if docstore.HasErrorLabel(opErr, docstore.LabelTransientTransaction) {
					r.observeRetry(operation, "transient_store")
					continue retryOperation
				}
				_ = sess.AbortTransaction(ctx)
				return opErr
			}

			for _, ev := range tx.events {
				if err := insertEvent(r.gateway, sess, ev); err != nil {
					_ = sess.AbortTransaction(ctx)
					return err
				}
			}

			for {
				commitErr := sess.CommitTransaction(ctx)
				if commitErr == nil {
					// A publish failure here is logged, never unwound: the
					// commit already happened, so the operation already
					// succeeded from the caller's point of view. Run the
					// publish step on a context shielded from cancellation so
					// a caller that abandons the request right after commit
					// can't also abort event delivery.
					if err := r.publishEvents(context.WithoutCancel(ctx), tx.events); err != nil {
						r.log.Error().Err(err).Str("operation", operation).Msg("post-commit event publish failed")
					}
					result = output
					return nil
				}

				if docstore.HasErrorLabel(commitErr, docstore.LabelUnknownTransactionCommit) {
					r.observeRetry(operation, "unknown_commit")
					continue
				}
				if docstore.HasErrorLabel(commitErr, docstore.LabelTransientTransaction) {
					r.observeRetry(operation, "transient_store")
					continue retryOperation
				}
				return errs.Wrap(errs.KindTransientStore, "commit transaction", commitErr)
			}
		}
	})

	outcome := "committed"
	if err != nil {
		outcome = "aborted"
	}
	if r.metrics != nil {
		r.metrics.ObserveTransaction(operation, outcome, time.Since(start))
	}

	if err != nil {
		return zero, err
	}
	return result, nil
}

func insertEvent(g *docstore.Gateway, sess *docstore.Session, ev domain.Event) error {
	_, err := g.Collection(docstore.CollEvents).InsertOne(sess, ev)
	if err != nil {
		return errs.Wrap(errs.KindTransientStore, "insert journal event", err)
	}
	return nil
}

// publishEvents awaits every event's broker ack concurrently, exactly
// mirroring the FuturesUnordered fan-out-then-collect the original
// transaction runner performs after a successful commit.
func (r *Runner) publishEvents(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ev := range events {
		ev := ev
		g.Go(func() error {
			return bus.PublishJSON(gctx, r.bus, ev.Subject(r.eventSubject), ev)
		})
	}
	if err := g.Wait(); err != nil {
		return errs.Wrap(errs.KindTransientStore, "publish journal events", err)
	}
	return nil
}

func (r *Runner) observeRetry(operation, reason string) {
	if r.metrics != nil {
		r.metrics.ObserveTransactionRetry(operation, reason)
	}
}
