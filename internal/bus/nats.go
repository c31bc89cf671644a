package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/vellumapp/platform/internal/config"
	"github.com/vellumapp/platform/internal/errs"
)

// NATSBus is the JetStream-backed Bus implementation. Every publish awaits
// the stream's ack before returning; every subscription uses a durable pull
// consumer so redelivery survives a worker crash or restart.
type NATSBus struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	cfg    config.BusConfig
	log    zerolog.Logger
}

// Connect dials the configured NATS server, ensures the event stream exists,
// and returns a ready-to-use NATSBus.
func Connect(cfg config.BusConfig, log zerolog.Logger) (*NATSBus, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("platform-entitlement-core"),
		nats.ReconnectWait(cfg.ReconnectWait.Duration),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, errs.Wrap(errs.KindExternalProvider, "connect to nats", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, errs.Wrap(errs.KindExternalProvider, "create jetstream context", err)
	}

	if _, err := js.AddStream(&nats.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: []string{cfg.EventSubject + ">", cfg.CallbackPrefix + ">"},
	}); err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		conn.Close()
		return nil, errs.Wrap(errs.KindExternalProvider, "ensure jetstream stream", err)
	}

	return &NATSBus{conn: conn, js: js, cfg: cfg, log: log.With().Str("component", "bus").Logger()}, nil
}

func (b *NATSBus) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := b.js.Publish(subject, data, nats.Context(ctx))
	if err != nil {
		return errs.Wrap(errs.KindTransientStore, "publish message", err)
	}
	return nil
}

func (b *NATSBus) Subscribe(ctx context.Context, subject, durableName string, handler Handler) error {
	bo := newBackoff(30 * time.Second)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := b.runSubscription(ctx, subject, durableName, handler)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}

		b.log.Warn().Err(err).Str("subject", subject).Dur("backoff", bo.current).Msg("subscription error, reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bo.next()):
		}
	}
}

func (b *NATSBus) runSubscription(ctx context.Context, subject, durableName string, handler Handler) error {
	sub, err := b.js.PullSubscribe(subject, durableName,
		nats.AckExplicit(),
		nats.AckWait(b.cfg.AckWait.Duration),
		nats.DeliverAll(),
	)
	if err != nil {
		return fmt.Errorf("pull subscribe: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := sub.Fetch(10, nats.MaxWait(2*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch: %w", err)
		}

		for _, msg := range msgs {
			natsMsg := msg
			m := Message{
				Subject: natsMsg.Subject,
				Data:    natsMsg.Data,
				Ack:     func() error { return natsMsg.Ack() },
				Nak:     func() error { return natsMsg.Nak() },
			}
			if err := handler(ctx, m); err != nil {
				// Redelivery backs off with the delivery count: 1s, 2s, 3s, ...
				// capped at 30s.
				delay := time.Second
				if meta, merr := natsMsg.Metadata(); merr == nil && meta.NumDelivered > 0 {
					delay = time.Duration(meta.NumDelivered) * time.Second
				}
				if delay > 30*time.Second {
					delay = 30 * time.Second
				}
				b.log.Warn().Err(err).Str("subject", natsMsg.Subject).Dur("redelivery_delay", delay).Msg("handler failed, nak")
				_ = natsMsg.NakWithDelay(delay)
				continue
			}
			if err := natsMsg.Ack(); err != nil {
				b.log.Warn().Err(err).Msg("failed to ack message")
			}
		}
	}
}

func (b *NATSBus) Close() error {
	b.conn.Close()
	return nil
}
