package metrics

import (
	"time"
)

// MeasureDBQuery wraps a document store operation with timing instrumentation.
// Usage:
//
//	defer metrics.MeasureDBQuery(m, "find_one", "users")()
func MeasureDBQuery(m *Metrics, operation, collection string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.ObserveDBQuery(operation, collection, time.Since(start))
	}
}

// RecordDBQuery records a document store query duration directly, when
// timing was already captured by the caller.
func RecordDBQuery(m *Metrics, operation, collection string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ObserveDBQuery(operation, collection, duration)
}
