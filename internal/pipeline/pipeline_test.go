package pipeline

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pair_trader/internal/core"
	"pair_trader/internal/estimator"
	"pair_trader/internal/execution"
	"pair_trader/internal/features"
	"pair_trader/internal/ledger"
	"pair_trader/internal/risk"
	"pair_trader/internal/signal"
	"pair_trader/internal/store"
	"pair_trader/pkg/telemetry"
)

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{})                     {}
func (noopLogger) Info(string, ...interface{})                      {}
func (noopLogger) Warn(string, ...interface{})                      {}
func (noopLogger) Error(string, ...interface{})                     {}
func (noopLogger) Fatal(string, ...interface{})                     {}
func (l noopLogger) WithField(string, interface{}) core.ILogger     { return l }
func (l noopLogger) WithFields(map[string]interface{}) core.ILogger { return l }

type capturingStore struct {
	mu       sync.Mutex
	ticks    int
	books    int
	features int
	orders   []*core.Order
}

func (c *capturingStore) InsertTradeEvent(*core.MarketTick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
}

func (c *capturingStore) InsertBookEvent(*core.BookUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.books++
}

func (c *capturingStore) InsertFeatureVector(*core.FeatureVector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.features++
}

func (c *capturingStore) InsertOrder(o *core.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders = append(c.orders, o)
}

func (c *capturingStore) Close() {}

type memStateStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

func (m *memStateStore) SaveState(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.saves++
	return nil
}

func (m *memStateStore) LoadState(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, nil
}

func newTestPipeline(t testing.TB, pcfg Config, rcfg risk.Config, state core.IStateStore, events core.IEventStore) *Pipeline {
	t.Helper()
	logger := noopLogger{}
	est := estimator.New(estimator.Config{})
	agg := features.NewAggregator(features.Config{
		BaseLeg:         "BTCUSDT",
		DependentLeg:    "ETHUSDT",
		CrossPair:       "ETHBTC",
		MinObservations: 10,
	}, est, logger)

	if events == nil {
		events = store.NullEventStore{}
	}
	return New(pcfg, Deps{
		Estimator:  est,
		Aggregator: agg,
		Generator:  signal.NewGenerator(signal.Config{ZScoreThreshold: 2.0}, nil, logger),
		Gate:       risk.NewGate(rcfg, logger, telemetry.NoopSink{}),
		Simulator:  execution.NewSimulator(execution.Config{MaxSlippageBps: 5}, rand.New(rand.NewSource(7)), logger),
		Ledger:     ledger.New(logger),
		EventStore: events,
		StateStore: state,
		Sink:       telemetry.NoopSink{},
		Logger:     logger,
	})
}

func tick(pair string, price decimal.Decimal) *core.MarketTick {
	return &core.MarketTick{
		Timestamp: time.Now().UTC(),
		Exchange:  "binance",
		Pair:      pair,
		Price:     price,
		Quantity:  decimal.NewFromInt(1),
		Side:      core.SideBuy,
	}
}

// warm feeds a stable regime: implied ETH/BTC at 0.06 and the actual cross
// trading right at it, with a whisper of noise so the residual deviation is
// small but nonzero.
func warm(p *Pipeline, rounds int) {
	btc := decimal.NewFromInt(50000)
	eth := decimal.NewFromInt(3000)
	for i := 0; i < rounds; i++ {
		noise := decimal.New(int64(i%3-1), -7) // -1e-7, 0, +1e-7
		p.OnTick(tick("BTCUSDT", btc))
		p.OnTick(tick("ETHUSDT", eth))
		p.OnTick(tick("ETHBTC", decimal.NewFromFloat(0.06).Add(noise)))
	}
}

func TestEndToEndDivergenceTriggersSell(t *testing.T) {
	events := &capturingStore{}
	p := newTestPipeline(t, Config{}, risk.Config{}, nil, events)

	warm(p, 150)
	require.Empty(t, events.orders, "no trades in a stable regime")

	// Actual cross dislocates above the implied price
	p.OnTick(tick("ETHBTC", decimal.NewFromFloat(0.061)))

	require.NotEmpty(t, events.orders, "dislocation should trade")
	order := events.orders[0]
	assert.Equal(t, core.DecisionSell, order.Decision)
	assert.Equal(t, core.OrderStatusFilled, order.Status)
	assert.True(t, order.Notional.Equal(decimal.NewFromInt(1000)))

	summary := p.Summary()
	require.Contains(t, summary.Positions, "ETHBTC")
	pos := summary.Positions["ETHBTC"]
	assert.Equal(t, core.SideSell, pos.Side)
	// quantity = notional / filled price
	assert.True(t, pos.Quantity.Equal(order.Notional.Div(order.FilledPrice)))
}

func TestEndToEndPersistenceCounts(t *testing.T) {
	events := &capturingStore{}
	p := newTestPipeline(t, Config{}, risk.Config{}, nil, events)

	warm(p, 20)
	assert.Equal(t, 60, events.ticks, "every tick persisted")
	assert.Greater(t, events.features, 0, "feature vectors persisted once warm")

	p.OnBook(&core.BookUpdate{
		Timestamp: time.Now().UTC(),
		Exchange:  "binance",
		Pair:      "ETHBTC",
		Bids:      []core.PriceLevel{{Price: decimal.NewFromFloat(0.06), Quantity: decimal.NewFromInt(3)}},
		Asks:      []core.PriceLevel{{Price: decimal.NewFromFloat(0.0601), Quantity: decimal.NewFromInt(1)}},
	})
	assert.Equal(t, 1, events.books)
}

func TestRiskGateBlocksOversizedNotional(t *testing.T) {
	events := &capturingStore{}
	p := newTestPipeline(t,
		Config{TradeNotional: decimal.NewFromInt(9000)},
		risk.Config{MaxPositionNotional: decimal.NewFromInt(5000)},
		nil, events)

	warm(p, 150)
	p.OnTick(tick("ETHBTC", decimal.NewFromFloat(0.061)))

	assert.Empty(t, events.orders, "oversized trades never reach the simulator")
	assert.Empty(t, p.Summary().Positions)
}

func TestSnapshotSavedAtInterval(t *testing.T) {
	state := &memStateStore{}
	p := newTestPipeline(t, Config{SnapshotInterval: 30}, risk.Config{}, state, nil)

	warm(p, 25)

	state.mu.Lock()
	saves := state.saves
	data := state.data
	state.mu.Unlock()
	require.Greater(t, saves, 0)

	snap, err := estimator.UnmarshalSnapshot(data)
	require.NoError(t, err)
	_, err = estimator.Restore(snap)
	assert.NoError(t, err)
}

func TestRestoreEstimatorRoundTrip(t *testing.T) {
	logger := noopLogger{}
	state := &memStateStore{}

	// Nothing stored yet
	assert.Nil(t, RestoreEstimator(context.Background(), state, logger))

	est := estimator.New(estimator.Config{})
	for i := 0; i < 50; i++ {
		est.Update(0.06, 0.0601)
	}
	data, err := est.Snapshot().Marshal()
	require.NoError(t, err)
	require.NoError(t, state.SaveState(context.Background(), data))

	restored := RestoreEstimator(context.Background(), state, logger)
	require.NotNil(t, restored)
	a1, b1 := est.Params()
	a2, b2 := restored.Params()
	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
}
