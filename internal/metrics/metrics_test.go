package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsInitialization(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m == nil {
		t.Fatal("metrics collector should not be nil")
	}
	if m.TransactionsTotal == nil {
		t.Error("TransactionsTotal should be initialized")
	}
	if m.TransactionRetriesTotal == nil {
		t.Error("TransactionRetriesTotal should be initialized")
	}
	if m.MutexLostTotal == nil {
		t.Error("MutexLostTotal should be initialized")
	}
	if m.WebhookIdempotencyHits == nil {
		t.Error("WebhookIdempotencyHits should be initialized")
	}
	if m.CronLeaseLostTotal == nil {
		t.Error("CronLeaseLostTotal should be initialized")
	}
	if m.LoaderCacheHits == nil {
		t.Error("LoaderCacheHits should be initialized")
	}
}

func TestObserveTransaction(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveTransaction("grant_entitlement", "committed", 50*time.Millisecond)

	got := promtest.ToFloat64(m.TransactionsTotal.WithLabelValues("grant_entitlement", "committed"))
	if got != 1 {
		t.Fatalf("expected 1 transaction recorded, got %v", got)
	}
}

func TestObserveTransactionRetry(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveTransactionRetry("grant_entitlement", "transient_store")
	m.ObserveTransactionRetry("grant_entitlement", "transient_store")

	got := promtest.ToFloat64(m.TransactionRetriesTotal.WithLabelValues("grant_entitlement", "transient_store"))
	if got != 2 {
		t.Fatalf("expected 2 retries recorded, got %v", got)
	}
}

func TestObserveMutexLostAndHold(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveMutexAcquire("user:123", "acquired")
	m.ObserveMutexLost("user:123")
	m.ObserveMutexHold("user:123", 2*time.Second)

	if got := promtest.ToFloat64(m.MutexAcquireTotal.WithLabelValues("user:123", "acquired")); got != 1 {
		t.Fatalf("expected 1 acquire recorded, got %v", got)
	}
	if got := promtest.ToFloat64(m.MutexLostTotal.WithLabelValues("user:123")); got != 1 {
		t.Fatalf("expected 1 lost lease recorded, got %v", got)
	}
}

func TestObserveRateLimit(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveRateLimit("webhook", false)
	m.ObserveRateLimit("webhook", true)

	if got := promtest.ToFloat64(m.RateLimitHitsTotal.WithLabelValues("webhook")); got != 2 {
		t.Fatalf("expected 2 hits recorded, got %v", got)
	}
	if got := promtest.ToFloat64(m.RateLimitRejectionsTotal.WithLabelValues("webhook")); got != 1 {
		t.Fatalf("expected 1 rejection recorded, got %v", got)
	}
}

func TestObserveWebhookIdempotencyHit(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveWebhook("stripe", "invoice.paid", "completed", 10*time.Millisecond)
	m.ObserveWebhookIdempotencyHit("stripe")

	if got := promtest.ToFloat64(m.WebhookIdempotencyHits.WithLabelValues("stripe")); got != 1 {
		t.Fatalf("expected 1 idempotency hit recorded, got %v", got)
	}
}

func TestObserveCronLeaseLost(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveCronRun("reindex_search", "completed", time.Second)
	m.ObserveCronLeaseLost("reindex_search")

	if got := promtest.ToFloat64(m.CronLeaseLostTotal.WithLabelValues("reindex_search")); got != 1 {
		t.Fatalf("expected 1 lease-lost recorded, got %v", got)
	}
}

func TestClassifyError(t *testing.T) {
	cases := map[error]string{
		nil: "none",
	}
	for err, want := range cases {
		if got := ClassifyError(err); got != want {
			t.Fatalf("ClassifyError(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestMeasureDBQueryNilMetrics(t *testing.T) {
	stop := MeasureDBQuery(nil, "find_one", "users")
	stop()
}
