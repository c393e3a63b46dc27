package store

import (
	"context"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"pair_trader/internal/core"
	"pair_trader/pkg/concurrency"
	"pair_trader/pkg/telemetry"
)

const insertTimeout = 5 * time.Second

// Config holds event store settings
type Config struct {
	DatabaseURL      string
	InsertsPerSecond int
	PoolWorkers      int
	PoolCapacity     int
}

// DefaultConfig returns the stock persistence settings
func DefaultConfig() Config {
	return Config{
		InsertsPerSecond: 100,
		PoolWorkers:      4,
		PoolCapacity:     1024,
	}
}

// PostgresEventStore writes pipeline records to TimescaleDB-style tables.
// Inserts are submitted to a bounded worker pool and throttled by a rate
// limiter; when the pool is full or the write fails, the record is dropped
// and the failure logged. The decision path never waits on the database.
type PostgresEventStore struct {
	pool    *pgxpool.Pool
	workers *concurrency.WorkerPool
	limiter *rate.Limiter
	logger  core.ILogger
	sink    core.IMetricsSink
}

// NewPostgresEventStore connects with retries and prepares the schema.
func NewPostgresEventStore(ctx context.Context, cfg Config, logger core.ILogger, sink core.IMetricsSink) (*PostgresEventStore, error) {
	def := DefaultConfig()
	if cfg.InsertsPerSecond <= 0 {
		cfg.InsertsPerSecond = def.InsertsPerSecond
	}
	if cfg.PoolWorkers <= 0 {
		cfg.PoolWorkers = def.PoolWorkers
	}
	if cfg.PoolCapacity <= 0 {
		cfg.PoolCapacity = def.PoolCapacity
	}
	if sink == nil {
		sink = telemetry.NoopSink{}
	}

	connectPolicy := retrypolicy.NewBuilder[*pgxpool.Pool]().
		WithBackoff(500*time.Millisecond, 10*time.Second).
		WithMaxRetries(5).
		Build()

	pool, err := failsafe.With[*pgxpool.Pool](connectPolicy).GetWithExecution(
		func(exec failsafe.Execution[*pgxpool.Pool]) (*pgxpool.Pool, error) {
			p, err := pgxpool.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("failed to create connection pool: %w", err)
			}
			if err := p.Ping(ctx); err != nil {
				p.Close()
				return nil, fmt.Errorf("failed to ping database: %w", err)
			}
			return p, nil
		})
	if err != nil {
		return nil, err
	}

	s := &PostgresEventStore{
		pool: pool,
		workers: concurrency.NewWorkerPool(concurrency.PoolConfig{
			Name:        "event-store",
			MaxWorkers:  cfg.PoolWorkers,
			MaxCapacity: cfg.PoolCapacity,
			NonBlocking: true,
		}, logger),
		limiter: rate.NewLimiter(rate.Limit(cfg.InsertsPerSecond), cfg.InsertsPerSecond),
		logger:  logger.WithField("component", "event_store"),
		sink:    sink,
	}

	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresEventStore) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS trade_events (
			timestamp TIMESTAMPTZ NOT NULL,
			exchange TEXT NOT NULL,
			pair TEXT NOT NULL,
			price NUMERIC NOT NULL,
			quantity NUMERIC NOT NULL,
			side TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orderbook_events (
			timestamp TIMESTAMPTZ NOT NULL,
			exchange TEXT NOT NULL,
			pair TEXT NOT NULL,
			imbalance DOUBLE PRECISION NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS feature_vectors (
			timestamp TIMESTAMPTZ NOT NULL,
			spread DOUBLE PRECISION NOT NULL,
			volatility DOUBLE PRECISION NOT NULL,
			imbalance DOUBLE PRECISION NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS execution_orders (
			order_id TEXT PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			decision TEXT NOT NULL,
			requested_price NUMERIC NOT NULL,
			filled_price NUMERIC NOT NULL,
			slippage NUMERIC NOT NULL,
			trade_value_usd NUMERIC NOT NULL,
			status TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// submit enqueues one insert, dropping it when the pool is saturated or
// the rate limit has no capacity.
func (s *PostgresEventStore) submit(table string, run func(ctx context.Context) error) {
	if !s.limiter.Allow() {
		s.logger.Debug("Insert dropped by rate limit", "table", table)
		return
	}
	err := s.workers.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		defer cancel()
		if err := run(ctx); err != nil {
			s.logger.Warn("Insert failed", "table", table, "error", err)
		}
	})
	if err != nil {
		s.logger.Warn("Insert dropped, worker pool full", "table", table)
	}
}

func (s *PostgresEventStore) InsertTradeEvent(tick *core.MarketTick) {
	t := *tick
	s.submit("trade_events", func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO trade_events (timestamp, exchange, pair, price, quantity, side)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			t.Timestamp, t.Exchange, t.Pair, t.Price, t.Quantity, string(t.Side))
		return err
	})
}

func (s *PostgresEventStore) InsertBookEvent(book *core.BookUpdate) {
	ts, exchange, pair := book.Timestamp, book.Exchange, book.Pair
	imbalance := book.Imbalance()
	s.submit("orderbook_events", func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO orderbook_events (timestamp, exchange, pair, imbalance)
			 VALUES ($1, $2, $3, $4)`,
			ts, exchange, pair, imbalance)
		return err
	})
}

func (s *PostgresEventStore) InsertFeatureVector(fv *core.FeatureVector) {
	v := *fv
	s.submit("feature_vectors", func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO feature_vectors (timestamp, spread, volatility, imbalance)
			 VALUES ($1, $2, $3, $4)`,
			v.Timestamp, v.Spread, v.Volatility, v.Imbalance)
		return err
	})
}

func (s *PostgresEventStore) InsertOrder(order *core.Order) {
	o := *order
	s.submit("execution_orders", func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO execution_orders
			 (order_id, timestamp, decision, requested_price, filled_price, slippage, trade_value_usd, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			o.ID, o.Timestamp, string(o.Decision), o.RequestedPrice, o.FilledPrice,
			o.Slippage, o.Notional, string(o.Status))
		return err
	})
}

// Close drains the worker pool and releases the connection pool.
func (s *PostgresEventStore) Close() {
	s.workers.Stop()
	s.pool.Close()
}

// NullEventStore is used when persistence is not configured.
type NullEventStore struct{}

func (NullEventStore) InsertTradeEvent(*core.MarketTick)       {}
func (NullEventStore) InsertBookEvent(*core.BookUpdate)        {}
func (NullEventStore) InsertFeatureVector(*core.FeatureVector) {}
func (NullEventStore) InsertOrder(*core.Order)                 {}
func (NullEventStore) Close()                                  {}
