package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricLatestSpread     = "pair_trader_latest_spread"
	MetricLatestVolatility = "pair_trader_latest_volatility"
	MetricLatestImbalance  = "pair_trader_latest_imbalance"
	MetricDailyPnL         = "pair_trader_daily_pnl"
	MetricTotalPnL         = "pair_trader_pnl_simulated"
	MetricSignalsEmitted   = "pair_trader_signals_emitted_total"
	MetricOrdersFilled     = "pair_trader_orders_filled_total"
	MetricRiskRejections   = "pair_trader_risk_rejections_total"
	MetricTicksProcessed   = "pair_trader_ticks_processed_total"
)

var gaugeDescriptions = map[string]string{
	MetricLatestSpread:     "Latest spread between actual and implied cross price",
	MetricLatestVolatility: "Rolling spread volatility estimate",
	MetricLatestImbalance:  "Current order book imbalance",
	MetricDailyPnL:         "Daily cumulative realized PnL (USD)",
	MetricTotalPnL:         "Simulated running PnL (realized + unrealized)",
}

var counterDescriptions = map[string]string{
	MetricSignalsEmitted: "Total trade signals emitted",
	MetricOrdersFilled:   "Total simulated orders filled",
	MetricRiskRejections: "Total trades rejected by the risk gate",
	MetricTicksProcessed: "Total market events processed by the pipeline",
}

// MetricsHolder holds initialized instruments and observable gauge state
type MetricsHolder struct {
	mu       sync.RWMutex
	gauges   map[string]float64
	counters map[string]metric.Int64Counter
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			gauges:   make(map[string]float64),
			counters: make(map[string]metric.Int64Counter),
		}
		// Instrument creation happens in InitMetrics
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	for name, desc := range counterDescriptions {
		counter, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			return err
		}
		m.mu.Lock()
		m.counters[name] = counter
		m.mu.Unlock()
	}

	for name, desc := range gaugeDescriptions {
		gaugeName := name
		_, err := meter.Float64ObservableGauge(gaugeName, metric.WithDescription(desc),
			metric.WithFloat64Callback(func(_ context.Context, obs metric.Float64Observer) error {
				m.mu.RLock()
				val, ok := m.gauges[gaugeName]
				m.mu.RUnlock()
				if ok {
					obs.Observe(val)
				}
				return nil
			}))
		if err != nil {
			return err
		}
	}

	return nil
}

// SetGauge records the latest value for an observable gauge
func (m *MetricsHolder) SetGauge(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = value
}

// GetGauge returns the latest recorded value for a gauge
func (m *MetricsHolder) GetGauge(name string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gauges[name]
}

// Add increments a counter. attrs are key/value pairs.
func (m *MetricsHolder) Add(name string, delta int64, attrs ...string) {
	m.mu.RLock()
	counter, ok := m.counters[name]
	m.mu.RUnlock()
	if !ok {
		return
	}

	opts := make([]attribute.KeyValue, 0, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		opts = append(opts, attribute.String(attrs[i], attrs[i+1]))
	}
	counter.Add(context.Background(), delta, metric.WithAttributes(opts...))
}

// Sink adapts the metrics holder to the core.IMetricsSink interface so
// pipeline components never touch the global registry directly.
type Sink struct {
	holder *MetricsHolder
}

// NewSink returns a sink backed by the global metrics holder
func NewSink() *Sink {
	return &Sink{holder: GetGlobalMetrics()}
}

func (s *Sink) Gauge(name string, value float64) {
	s.holder.SetGauge(name, value)
}

func (s *Sink) Count(name string, delta int64, attrs ...string) {
	s.holder.Add(name, delta, attrs...)
}

// NoopSink discards all observations. Used in tests.
type NoopSink struct{}

func (NoopSink) Gauge(string, float64)          {}
func (NoopSink) Count(string, int64, ...string) {}
