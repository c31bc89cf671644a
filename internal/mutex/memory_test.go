package mutex

import (
	"context"
	"testing"
	"time"

	"github.com/vellumapp/platform/internal/errs"
)

func TestMemoryMutex_ExclusiveAcquire(t *testing.T) {
	m := NewMemoryMutex()
	ctx := context.Background()

	lock, err := m.TryAcquire(ctx, "user:123", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = m.TryAcquire(ctx, "user:123", time.Second)
	if errs.KindOf(err) != errs.KindConflict {
		t.Fatalf("expected KindConflict, got %v", err)
	}

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	if _, err := m.TryAcquire(ctx, "user:123", time.Second); err != nil {
		t.Fatalf("expected reacquire to succeed after release: %v", err)
	}
}

func TestMemoryMutex_ExtendAfterRelease(t *testing.T) {
	m := NewMemoryMutex()
	ctx := context.Background()

	lock, err := m.TryAcquire(ctx, "resource", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	if err := lock.Extend(ctx, time.Second); errs.KindOf(err) != errs.KindMutexLost {
		t.Fatalf("expected KindMutexLost after release, got %v", err)
	}
}

func TestMemoryMutex_StaleHolderCannotReleaseOrExtendStolenLock(t *testing.T) {
	m := NewMemoryMutex()
	ctx := context.Background()

	stale, err := m.TryAcquire(ctx, "resource", time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	fresh, err := m.TryAcquire(ctx, "resource", time.Second)
	if err != nil {
		t.Fatalf("expected reacquire after expiry to succeed: %v", err)
	}

	if err := stale.Release(ctx); err != nil {
		t.Fatalf("stale release should be a no-op, not an error: %v", err)
	}
	if err := stale.Extend(ctx, time.Second); errs.KindOf(err) != errs.KindMutexLost {
		t.Fatalf("expected stale holder's Extend to report KindMutexLost, got %v", err)
	}

	if err := fresh.Extend(ctx, time.Second); err != nil {
		t.Fatalf("expected fresh holder's lease to survive the stale holder's calls: %v", err)
	}
}

func TestWithLock(t *testing.T) {
	m := NewMemoryMutex()
	ctx := context.Background()
	ran := false

	err := WithLock(ctx, m, "resource", time.Second, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Fatal("expected fn to run")
	}

	if _, err := m.TryAcquire(ctx, "resource", time.Second); err != nil {
		t.Fatalf("expected lock to be released after WithLock: %v", err)
	}
}
