package core

import "context"

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}

// Verdict is the advisory filter's answer for one feature vector
type Verdict struct {
	Approve bool
	Score   float64
}

// IAdvisoryFilter defines the advisory-filter capability. A returned error
// is treated as approve by the caller (fail-open); the filter must never be
// able to block trading through its own failure.
type IAdvisoryFilter interface {
	Predict(fv *FeatureVector) (Verdict, error)
}

// IMetricsSink receives metric observations from pipeline components.
// Components record through the sink instead of mutating process-wide
// registries, so tests can inject a no-op implementation.
type IMetricsSink interface {
	Gauge(name string, value float64)
	Count(name string, delta int64, attrs ...string)
}

// IEventStore persists pipeline records. All methods are fire-and-forget:
// implementations enqueue the write and swallow failures, logging them,
// so a persistence outage never affects in-memory decision state.
type IEventStore interface {
	InsertTradeEvent(tick *MarketTick)
	InsertBookEvent(book *BookUpdate)
	InsertFeatureVector(fv *FeatureVector)
	InsertOrder(order *Order)
	Close()
}

// IStateStore persists opaque component state blobs (estimator snapshots)
type IStateStore interface {
	SaveState(ctx context.Context, data []byte) error
	LoadState(ctx context.Context) ([]byte, error)
}

// IPnLSource exposes the ledger summary to the observability surface
type IPnLSource interface {
	Summary() PnLSummary
}
