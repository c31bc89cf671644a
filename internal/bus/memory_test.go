package bus

import (
	"context"
	"testing"
	"time"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	b := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 1)
	go func() {
		_ = b.Subscribe(ctx, "events.edge.created", "test-consumer", func(_ context.Context, msg Message) error {
			received <- string(msg.Data)
			return nil
		})
	}()

	time.Sleep(10 * time.Millisecond)
	if err := b.Publish(ctx, "events.edge.created", []byte("payload")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case got := <-received:
		if got != "payload" {
			t.Fatalf("expected payload, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestMemoryBus_WildcardSubject(t *testing.T) {
	b := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 1)
	go func() {
		_ = b.Subscribe(ctx, "events.subscription.>", "test-consumer", func(_ context.Context, msg Message) error {
			received <- msg.Subject
			return nil
		})
	}()

	time.Sleep(10 * time.Millisecond)
	if err := b.Publish(ctx, "events.subscription.created", []byte("x")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case got := <-received:
		if got != "events.subscription.created" {
			t.Fatalf("unexpected subject: %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}
