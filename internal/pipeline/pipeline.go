// Package pipeline wires the decision chain: features, signal, risk,
// simulated execution and the ledger. All component state is mutated under
// one mutex, so feed goroutines may deliver events concurrently while the
// decision logic itself stays single-consumer.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pair_trader/internal/core"
	"pair_trader/internal/estimator"
	"pair_trader/internal/execution"
	"pair_trader/internal/features"
	"pair_trader/internal/ledger"
	"pair_trader/internal/risk"
	"pair_trader/internal/signal"
	"pair_trader/pkg/telemetry"
	"pair_trader/pkg/tradingutils"
)

const snapshotTimeout = 2 * time.Second

// Config holds pipeline parameters
type Config struct {
	CrossPair         string
	TradeNotional     decimal.Decimal
	EstimatedSlippage decimal.Decimal
	SnapshotInterval  int
}

// DefaultConfig returns the stock pipeline settings
func DefaultConfig() Config {
	return Config{
		CrossPair:         "ETHBTC",
		TradeNotional:     decimal.NewFromInt(1000),
		EstimatedSlippage: decimal.NewFromFloat(0.0005),
		SnapshotInterval:  500,
	}
}

// Deps are the collaborators the pipeline drives. EventStore and Sink must
// be non-nil (use the null variants); StateStore may be nil to disable
// snapshotting.
type Deps struct {
	Estimator  *estimator.KalmanSpread
	Aggregator *features.Aggregator
	Generator  *signal.Generator
	Gate       *risk.Gate
	Simulator  *execution.Simulator
	Ledger     *ledger.Ledger
	EventStore core.IEventStore
	StateStore core.IStateStore
	Sink       core.IMetricsSink
	Logger     core.ILogger
}

// Pipeline is the single consumer of normalized market events.
type Pipeline struct {
	// The aggregator's own mutex-free internals rely on this lock
	mu sync.Mutex

	cfg        Config
	est        *estimator.KalmanSpread
	agg        *features.Aggregator
	gen        *signal.Generator
	gate       *risk.Gate
	sim        *execution.Simulator
	book       *ledger.Ledger
	events     core.IEventStore
	state      core.IStateStore
	sink       core.IMetricsSink
	logger     core.ILogger
	lastPrices map[string]decimal.Decimal
	tickCount  int
}

func New(cfg Config, deps Deps) *Pipeline {
	def := DefaultConfig()
	if cfg.CrossPair == "" {
		cfg.CrossPair = def.CrossPair
	}
	if cfg.TradeNotional.IsZero() {
		cfg.TradeNotional = def.TradeNotional
	}
	if cfg.EstimatedSlippage.IsZero() {
		cfg.EstimatedSlippage = def.EstimatedSlippage
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = def.SnapshotInterval
	}
	return &Pipeline{
		cfg:        cfg,
		est:        deps.Estimator,
		agg:        deps.Aggregator,
		gen:        deps.Generator,
		gate:       deps.Gate,
		sim:        deps.Simulator,
		book:       deps.Ledger,
		events:     deps.EventStore,
		state:      deps.StateStore,
		sink:       deps.Sink,
		logger:     deps.Logger.WithField("component", "pipeline"),
		lastPrices: make(map[string]decimal.Decimal),
	}
}

// OnTick processes one normalized trade event end to end. Persistence and
// metrics failures never roll back the in-memory state changes.
func (p *Pipeline) OnTick(tick *core.MarketTick) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events.InsertTradeEvent(tick)
	p.lastPrices[tick.Pair] = tick.Price
	p.tickCount++
	p.sink.Count(telemetry.MetricTicksProcessed, 1, "pair", tick.Pair)

	fv := p.agg.OnTick(tick)
	if fv != nil {
		p.events.InsertFeatureVector(fv)
		p.decide(fv)
		p.publishGauges(fv)
	}

	p.book.MarkToMarket(p.lastPrices)
	p.sink.Gauge(telemetry.MetricTotalPnL, p.book.TotalPnL().InexactFloat64())

	if p.state != nil && p.tickCount%p.cfg.SnapshotInterval == 0 {
		p.saveSnapshot()
	}
}

// OnBook processes one normalized depth event.
func (p *Pipeline) OnBook(book *core.BookUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events.InsertBookEvent(book)
	p.agg.OnBook(book)
}

// decide runs signal generation through the ledger for one feature vector.
// Caller holds the lock.
func (p *Pipeline) decide(fv *core.FeatureVector) {
	sig := p.gen.Generate(fv)
	if sig == nil || sig.Decision == core.DecisionHold {
		return
	}
	p.sink.Count(telemetry.MetricSignalsEmitted, 1, "decision", string(sig.Decision))
	p.logger.Info("Signal emitted", "decision", string(sig.Decision),
		"zscore", sig.ZScore, "reason", sig.Reason)

	if !p.gate.Approve(sig, p.cfg.TradeNotional, p.cfg.EstimatedSlippage) {
		return
	}

	refPrice, ok := p.lastPrices[p.cfg.CrossPair]
	if !ok || refPrice.IsZero() {
		p.logger.Warn("No reference price for fill", "pair", p.cfg.CrossPair)
		return
	}

	order := p.sim.Fill(sig, refPrice, p.cfg.TradeNotional)
	if order == nil {
		return
	}

	quantity := tradingutils.QuantityForNotional(order.Notional, order.FilledPrice)
	if quantity.IsZero() {
		p.logger.Warn("Fill with non-positive price, skipping ledger apply", "order_id", order.ID)
		return
	}
	side := core.SideBuy
	if order.Decision == core.DecisionSell {
		side = core.SideSell
	}
	delta := p.book.ApplyFill(p.cfg.CrossPair, order.FilledPrice, quantity, side)
	p.gate.RecordPnL(delta)

	p.events.InsertOrder(order)
	p.sink.Count(telemetry.MetricOrdersFilled, 1, "decision", string(order.Decision))
}

// publishGauges pushes the per-tick observability values. Caller holds the
// lock.
func (p *Pipeline) publishGauges(fv *core.FeatureVector) {
	p.sink.Gauge(telemetry.MetricLatestSpread, fv.Spread)
	p.sink.Gauge(telemetry.MetricLatestVolatility, fv.Volatility)
	p.sink.Gauge(telemetry.MetricLatestImbalance, fv.Imbalance)
	p.sink.Gauge(telemetry.MetricDailyPnL, p.gate.DailyPnL().InexactFloat64())
}

// saveSnapshot persists the estimator state, best effort. Caller holds the
// lock.
func (p *Pipeline) saveSnapshot() {
	data, err := p.est.Snapshot().Marshal()
	if err != nil {
		p.logger.Warn("Failed to marshal estimator snapshot", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	if err := p.state.SaveState(ctx, data); err != nil {
		p.logger.Warn("Failed to save estimator snapshot", "error", err)
	}
}

// Summary exposes the ledger snapshot for the PnL query endpoint.
func (p *Pipeline) Summary() core.PnLSummary {
	return p.book.Summary()
}

// RestoreEstimator loads the last saved snapshot into a fresh estimator,
// returning nil when no usable state exists.
func RestoreEstimator(ctx context.Context, state core.IStateStore, logger core.ILogger) *estimator.KalmanSpread {
	data, err := state.LoadState(ctx)
	if err != nil || data == nil {
		if err != nil {
			logger.Warn("Failed to load estimator snapshot, starting fresh", "error", err)
		}
		return nil
	}
	snap, err := estimator.UnmarshalSnapshot(data)
	if err != nil {
		logger.Warn("Stored estimator snapshot unreadable, starting fresh", "error", err)
		return nil
	}
	est, err := estimator.Restore(snap)
	if err != nil {
		logger.Warn("Stored estimator snapshot invalid, starting fresh", "error", err)
		return nil
	}
	logger.Info("Estimator state restored")
	return est
}
