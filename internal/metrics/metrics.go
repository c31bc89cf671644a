package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the platform.
type Metrics struct {
	// Transaction runner metrics (C4)
	TransactionsTotal      *prometheus.CounterVec
	TransactionRetriesTotal *prometheus.CounterVec
	TransactionDuration    *prometheus.HistogramVec

	// Document store metrics (C1)
	DBQueryDuration     *prometheus.HistogramVec
	DBConnectionsActive prometheus.Gauge

	// Distributed mutex metrics (C3)
	MutexAcquireTotal   *prometheus.CounterVec
	MutexLostTotal      *prometheus.CounterVec
	MutexHoldDuration   *prometheus.HistogramVec

	// Rate limit metrics (C7)
	RateLimitHitsTotal      *prometheus.CounterVec
	RateLimitRejectionsTotal *prometheus.CounterVec

	// Payment reconciler metrics (C8)
	WebhooksTotal             *prometheus.CounterVec
	WebhookIdempotencyHits    *prometheus.CounterVec
	WebhookDuration           *prometheus.HistogramVec
	SubscriptionEventsTotal   *prometheus.CounterVec

	// Image pipeline metrics (C9)
	ImageJobsTotal    *prometheus.CounterVec
	ImageJobDuration  *prometheus.HistogramVec

	// Cron leaser metrics (C10)
	CronRunsTotal       *prometheus.CounterVec
	CronLeaseLostTotal  *prometheus.CounterVec
	CronJobDuration     *prometheus.HistogramVec

	// Cache loader metrics (C11)
	LoaderBatchSize   *prometheus.HistogramVec
	LoaderCacheHits   *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		TransactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_transactions_total",
				Help: "Total number of transaction runner invocations",
			},
			[]string{"operation", "outcome"},
		),
		TransactionRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_transaction_retries_total",
				Help: "Total number of transaction retry attempts, by reason",
			},
			[]string{"operation", "reason"},
		),
		TransactionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_transaction_duration_seconds",
				Help:    "Time taken to run a transaction to commit or abort",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"operation"},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_db_query_duration_seconds",
				Help:    "Document store query duration",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1, 2},
			},
			[]string{"operation", "collection"},
		),
		DBConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "platform_db_connections_active",
				Help: "Number of active document store connections",
			},
		),

		MutexAcquireTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_mutex_acquire_total",
				Help: "Total number of distributed mutex acquire attempts",
			},
			[]string{"resource", "outcome"},
		),
		MutexLostTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_mutex_lost_total",
				Help: "Total number of times a held mutex lease was lost before release",
			},
			[]string{"resource"},
		),
		MutexHoldDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_mutex_hold_duration_seconds",
				Help:    "Time a distributed mutex was held before release",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"resource"},
		),

		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_rate_limit_hits_total",
				Help: "Total number of rate limit checks",
			},
			[]string{"resource"},
		),
		RateLimitRejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_rate_limit_rejections_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"resource"},
		),

		WebhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_webhooks_total",
				Help: "Total number of inbound provider webhook deliveries",
			},
			[]string{"provider", "event_type", "status"},
		),
		WebhookIdempotencyHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_webhook_idempotency_hits_total",
				Help: "Total number of webhook deliveries recognized as replays",
			},
			[]string{"provider"},
		),
		WebhookDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_webhook_duration_seconds",
				Help:    "Time taken to process an inbound webhook to completion",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"provider", "event_type"},
		),
		SubscriptionEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_subscription_events_total",
				Help: "Total number of subscription lifecycle events reconciled",
			},
			[]string{"provider", "kind"},
		),

		ImageJobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_image_jobs_total",
				Help: "Total number of image pipeline jobs processed",
			},
			[]string{"kind", "outcome"},
		),
		ImageJobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_image_job_duration_seconds",
				Help:    "Time taken to process an image pipeline job",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),

		CronRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_cron_runs_total",
				Help: "Total number of cron job executions",
			},
			[]string{"job", "outcome"},
		),
		CronLeaseLostTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_cron_lease_lost_total",
				Help: "Total number of times a cron worker lost its lease before completion",
			},
			[]string{"job"},
		),
		CronJobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_cron_job_duration_seconds",
				Help:    "Time taken to run a cron job to completion",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"job"},
		),

		LoaderBatchSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_loader_batch_size",
				Help:    "Number of keys collected per cache loader batch dispatch",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
			},
			[]string{"loader"},
		),
		LoaderCacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_loader_cache_hits_total",
				Help: "Total number of cache loader lookups served without a backing fetch",
			},
			[]string{"loader", "outcome"},
		),
	}
}

// ObserveTransaction records a transaction runner invocation's outcome.
func (m *Metrics) ObserveTransaction(operation, outcome string, duration time.Duration) {
	m.TransactionsTotal.WithLabelValues(operation, outcome).Inc()
	m.TransactionDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveTransactionRetry records one retry attempt with its triggering reason
// (transient_store, unknown_commit, mutex_lost).
func (m *Metrics) ObserveTransactionRetry(operation, reason string) {
	m.TransactionRetriesTotal.WithLabelValues(operation, reason).Inc()
}

// ObserveDBQuery records a document store query duration.
func (m *Metrics) ObserveDBQuery(operation, collection string, duration time.Duration) {
	m.DBQueryDuration.WithLabelValues(operation, collection).Observe(duration.Seconds())
}

// ObserveMutexAcquire records a distributed mutex acquire attempt.
func (m *Metrics) ObserveMutexAcquire(resource, outcome string) {
	m.MutexAcquireTotal.WithLabelValues(resource, outcome).Inc()
}

// ObserveMutexLost records a mutex held lease lost before release.
func (m *Metrics) ObserveMutexLost(resource string) {
	m.MutexLostTotal.WithLabelValues(resource).Inc()
}

// ObserveMutexHold records how long a mutex was held before release.
func (m *Metrics) ObserveMutexHold(resource string, duration time.Duration) {
	m.MutexHoldDuration.WithLabelValues(resource).Observe(duration.Seconds())
}

// ObserveRateLimit records a rate limit check and whether it was rejected.
func (m *Metrics) ObserveRateLimit(resource string, rejected bool) {
	m.RateLimitHitsTotal.WithLabelValues(resource).Inc()
	if rejected {
		m.RateLimitRejectionsTotal.WithLabelValues(resource).Inc()
	}
}

// ObserveWebhook records webhook delivery outcome and duration.
func (m *Metrics) ObserveWebhook(provider, eventType, status string, duration time.Duration) {
	m.WebhooksTotal.WithLabelValues(provider, eventType, status).Inc()
	m.WebhookDuration.WithLabelValues(provider, eventType).Observe(duration.Seconds())
}

// ObserveWebhookIdempotencyHit records a webhook delivery recognized as a replay.
func (m *Metrics) ObserveWebhookIdempotencyHit(provider string) {
	m.WebhookIdempotencyHits.WithLabelValues(provider).Inc()
}

// ObserveSubscriptionEvent records a reconciled subscription lifecycle event.
func (m *Metrics) ObserveSubscriptionEvent(provider, kind string) {
	m.SubscriptionEventsTotal.WithLabelValues(provider, kind).Inc()
}

// ObserveImageJob records an image pipeline job's outcome and duration.
func (m *Metrics) ObserveImageJob(kind, outcome string, duration time.Duration) {
	m.ImageJobsTotal.WithLabelValues(kind, outcome).Inc()
	m.ImageJobDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveCronRun records a cron job execution's outcome and duration.
func (m *Metrics) ObserveCronRun(job, outcome string, duration time.Duration) {
	m.CronRunsTotal.WithLabelValues(job, outcome).Inc()
	m.CronJobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// ObserveCronLeaseLost records a cron worker losing its lease mid-run.
func (m *Metrics) ObserveCronLeaseLost(job string) {
	m.CronLeaseLostTotal.WithLabelValues(job).Inc()
}

// ObserveLoaderBatch records a cache loader batch dispatch size.
func (m *Metrics) ObserveLoaderBatch(loader string, size int) {
	m.LoaderBatchSize.WithLabelValues(loader).Observe(float64(size))
}

// ObserveLoaderCacheLookup records a cache loader lookup outcome (hit/miss).
func (m *Metrics) ObserveLoaderCacheLookup(loader, outcome string) {
	m.LoaderCacheHits.WithLabelValues(loader, outcome).Inc()
}

// ClassifyError buckets an error's message into a coarse reason label for
// metrics cardinality, without needing callers to thread typed reasons
// through every call site.
func ClassifyError(err error) string {
	if err == nil {
		return "none"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "transient"):
		return "transient"
	case strings.Contains(msg, "connection"):
		return "connection"
	case strings.Contains(msg, "not found"):
		return "not_found"
	default:
		return "other"
	}
}
