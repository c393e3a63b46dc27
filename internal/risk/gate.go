// Package risk enforces pre-trade limits on candidate trades.
package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pair_trader/internal/core"
	"pair_trader/pkg/telemetry"
)

// Config holds the gate limits. Zero values fall back to defaults in
// NewGate.
type Config struct {
	MaxPositionNotional decimal.Decimal
	MaxDailyLoss        decimal.Decimal
	SlippageTolerance   decimal.Decimal
	CircuitBreaker      CircuitConfig
}

// DefaultConfig returns the stock limits
func DefaultConfig() Config {
	return Config{
		MaxPositionNotional: decimal.NewFromInt(5000),
		MaxDailyLoss:        decimal.NewFromFloat(0.02),
		SlippageTolerance:   decimal.NewFromFloat(0.0015),
	}
}

// Gate performs the ordered pre-trade checks. Daily PnL accumulates until
// the UTC calendar date advances, then resets to zero before the next
// check runs.
type Gate struct {
	mu       sync.Mutex
	config   Config
	dailyPnL decimal.Decimal
	day      time.Time
	breaker  *CircuitBreaker
	now      func() time.Time
	logger   core.ILogger
	sink     core.IMetricsSink
}

// NewGate creates a gate with the given limits. HOLD decisions must be
// filtered out before calling Approve.
func NewGate(cfg Config, logger core.ILogger, sink core.IMetricsSink) *Gate {
	def := DefaultConfig()
	if cfg.MaxPositionNotional.IsZero() {
		cfg.MaxPositionNotional = def.MaxPositionNotional
	}
	if cfg.MaxDailyLoss.IsZero() {
		cfg.MaxDailyLoss = def.MaxDailyLoss
	}
	if cfg.SlippageTolerance.IsZero() {
		cfg.SlippageTolerance = def.SlippageTolerance
	}
	if sink == nil {
		sink = telemetry.NoopSink{}
	}
	g := &Gate{
		config: cfg,
		now:    time.Now,
		logger: logger.WithField("component", "risk_gate"),
		sink:   sink,
	}
	if cfg.CircuitBreaker.MaxConsecutiveLosses > 0 {
		g.breaker = NewCircuitBreaker(cfg.CircuitBreaker)
	}
	g.day = g.today()
	return g
}

func (g *Gate) today() time.Time {
	return g.now().UTC().Truncate(24 * time.Hour)
}

// rollDay resets the daily counter when the UTC date has advanced.
// Caller holds the lock.
func (g *Gate) rollDay() {
	today := g.today()
	if today.After(g.day) {
		g.logger.Info("Daily risk counters reset", "previous_pnl", g.dailyPnL.String())
		g.dailyPnL = decimal.Zero
		g.day = today
	}
}

// Approve runs the checks in order and rejects on the first failure. A
// trade notional exactly at the ceiling passes.
func (g *Gate) Approve(sig *core.TradeSignal, notional, estimatedSlippage decimal.Decimal) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollDay()

	if g.breaker != nil && g.breaker.IsTripped() {
		g.reject(sig, "circuit_breaker")
		return false
	}
	if g.dailyPnL.LessThan(g.config.MaxDailyLoss.Neg()) {
		g.reject(sig, "daily_loss")
		return false
	}
	if notional.GreaterThan(g.config.MaxPositionNotional) {
		g.reject(sig, "notional")
		return false
	}
	if estimatedSlippage.GreaterThan(g.config.SlippageTolerance) {
		g.reject(sig, "slippage")
		return false
	}
	return true
}

func (g *Gate) reject(sig *core.TradeSignal, reason string) {
	g.logger.Warn("Trade rejected", "reason", reason, "decision", string(sig.Decision), "zscore", sig.ZScore)
	g.sink.Count(telemetry.MetricRiskRejections, 1, "reason", reason)
}

// RecordPnL adds signed realized PnL to the daily counter and feeds the
// circuit breaker. Call exactly once per settled trade.
func (g *Gate) RecordPnL(delta decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollDay()
	g.dailyPnL = g.dailyPnL.Add(delta)
	if g.breaker != nil {
		g.breaker.RecordTrade(delta)
	}
}

// DailyPnL returns the current day's cumulative realized PnL.
func (g *Gate) DailyPnL() decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollDay()
	return g.dailyPnL
}
