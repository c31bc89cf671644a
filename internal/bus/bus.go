// Package bus is the durable message bus (C2 support): publishing journal
// events with an awaited broker ack, and subscribing to them with a durable
// consumer that survives process restarts and reconnects with backoff.
package bus

import (
	"context"
	"encoding/json"
	"time"
)

// Message is one bus delivery: a subject, an opaque payload, and the
// function the subscriber calls to acknowledge successful processing.
type Message struct {
	Subject string
	Data    []byte
	Ack     func() error
	Nak     func() error
}

// Decode unmarshals the message payload into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Data, v)
}

// Handler processes one message. Returning nil acks it; returning an error
// naks it for redelivery.
type Handler func(ctx context.Context, msg Message) error

// Bus is the publish/subscribe surface every component composes against.
// internal/txrunner publishes journal events after each commit, for the
// reconciler and every other transactional caller; internal/imagepipeline
// subscribes to image processing callbacks.
type Bus interface {
	// Publish sends data to subject and blocks until the broker acknowledges
	// durable receipt.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a durable consumer on subject (which may be a
	// wildcard) and invokes handler for each delivered message until ctx is
	// canceled.
	Subscribe(ctx context.Context, subject, durableName string, handler Handler) error

	Close() error
}

// PublishJSON marshals v and publishes it to subject.
func PublishJSON(ctx context.Context, b Bus, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Publish(ctx, subject, data)
}

// backoff implements the capped exponential reconnect delay every Subscribe
// loop in this package uses between failed fetch/connect attempts.
type backoff struct {
	current time.Duration
	max     time.Duration
}

func newBackoff(max time.Duration) *backoff {
	return &backoff{current: 500 * time.Millisecond, max: max}
}

func (b *backoff) next() time.Duration {
	d := b.current
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

func (b *backoff) reset() {
	b.current = 500 * time.Millisecond
}
