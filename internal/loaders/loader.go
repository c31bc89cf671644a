// Package loaders is the cache loader fabric (C11): a generic, batching,
// deduplicating loader over the document store, instantiated once per
// entity the rest of this core addresses by id, plus a UserComputedLoader
// that chains the entitlement graph traversal and permission fold behind
// the same load/load_many surface.
package loaders

import (
	"context"
	"sync"
	"time"

	"github.com/vellumapp/platform/internal/errs"
)

// window is how long a Loader waits after its first enqueued key before
// flushing a batch, giving concurrent callers in the same tick a chance to
// coalesce into one BatchFunc invocation (§4.11).
const window = time.Millisecond

type result[V any] struct {
	val V
	err error
}

// BatchFunc fetches every key in one round trip, returning a value only for
// the keys that resolved; an absent key resolves to errs.KindNotFound for
// whichever caller asked for it.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

// Loader coalesces concurrent Load calls into batched BatchFunc
// invocations and scatters results back to each caller.
type Loader[K comparable, V any] struct {
	fetch BatchFunc[K, V]

	mu      sync.Mutex
	pending map[K][]chan result[V]
	timer   *time.Timer
}

func New[K comparable, V any](fetch BatchFunc[K, V]) *Loader[K, V] {
	return &Loader[K, V]{fetch: fetch}
}

// Load fetches key, joining whatever batch is currently being assembled (or
// starting a new one).
func (l *Loader[K, V]) Load(ctx context.Context, key K) (V, error) {
	ch := make(chan result[V], 1)
	l.enqueue(key, ch)

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		return res.val, res.err
	}
}

// LoadMany fetches every key concurrently through the same batching window,
// so a caller asking for N keys at once still issues a single BatchFunc
// call rather than N.
func (l *Loader[K, V]) LoadMany(ctx context.Context, keys []K) (map[K]V, error) {
	out := make(map[K]V, len(keys))
	var mu sync.Mutex
	var firstErr error
	var wg sync.WaitGroup

	for _, k := range keys {
		k := k
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := l.Load(ctx, k)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			out[k] = v
		}()
	}
	wg.Wait()
	return out, firstErr
}

func (l *Loader[K, V]) enqueue(key K, ch chan result[V]) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending == nil {
		l.pending = make(map[K][]chan result[V])
	}
	l.pending[key] = append(l.pending[key], ch)
	if l.timer == nil {
		l.timer = time.AfterFunc(window, l.flush)
	}
}

// flush runs fetch over every key gathered since the last flush and
// delivers each waiter its result. It deliberately does not thread a
// caller's ctx through to fetch: the batch may serve many callers with
// different contexts, and a single canceled caller should not abort a
// fetch the rest are still waiting on.
func (l *Loader[K, V]) flush() {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	l.timer = nil
	l.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	keys := make([]K, 0, len(batch))
	for k := range batch {
		keys = append(keys, k)
	}

	vals, err := l.fetch(context.Background(), keys)
	for k, chans := range batch {
		var res result[V]
		switch {
		case err != nil:
			res.err = err
		default:
			if v, ok := vals[k]; ok {
				res.val = v
			} else {
				res.err = errs.New(errs.KindNotFound, "document not found")
			}
		}
		for _, ch := range chans {
			ch <- res
		}
	}
}
