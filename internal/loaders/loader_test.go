package loaders

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestLoader_CoalescesConcurrentLoadsIntoOneBatch(t *testing.T) {
	var calls int32
	var seenKeys sync.Map

	l := New(func(_ context.Context, keys []int) (map[int]string, error) {
		atomic.AddInt32(&calls, 1)
		out := make(map[int]string, len(keys))
		for _, k := range keys {
			seenKeys.Store(k, true)
			out[k] = "value"
		}
		return out, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := l.Load(context.Background(), i)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if v != "value" {
				t.Errorf("unexpected value: %q", v)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one batched fetch, got %d", got)
	}
	for i := 0; i < 5; i++ {
		if _, ok := seenKeys.Load(i); !ok {
			t.Fatalf("expected key %d to have been fetched", i)
		}
	}
}

func TestLoader_MissingKeyResolvesNotFound(t *testing.T) {
	l := New(func(_ context.Context, keys []string) (map[string]int, error) {
		return map[string]int{}, nil
	})

	if _, err := l.Load(context.Background(), "missing"); err == nil {
		t.Fatal("expected an error for a key the batch function didn't return")
	}
}

func TestLoader_LoadManyReturnsEveryResolvedKey(t *testing.T) {
	l := New(func(_ context.Context, keys []int) (map[int]int, error) {
		out := make(map[int]int, len(keys))
		for _, k := range keys {
			out[k] = k * 2
		}
		return out, nil
	})

	out, err := l.LoadMany(context.Background(), []int{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 || out[1] != 2 || out[2] != 4 || out[3] != 6 {
		t.Fatalf("unexpected result: %+v", out)
	}
}
