package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"pair_trader/internal/config"
	"pair_trader/internal/core"
	"pair_trader/internal/estimator"
	"pair_trader/internal/execution"
	"pair_trader/internal/features"
	"pair_trader/internal/filter"
	"pair_trader/internal/infrastructure/health"
	"pair_trader/internal/infrastructure/metrics"
	"pair_trader/internal/ingest"
	"pair_trader/internal/ledger"
	"pair_trader/internal/pipeline"
	"pair_trader/internal/risk"
	tradesignal "pair_trader/internal/signal"
	"pair_trader/internal/store"
	apperrors "pair_trader/pkg/errors"
	"pair_trader/pkg/logging"
	"pair_trader/pkg/telemetry"
)

var (
	// Version information (set via build flags)
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/trader.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("trader version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg := loadConfig(*configPath)

	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logging.SetGlobalLogger(logger)

	logger.Info("Starting trader",
		"version", version,
		"cross_pair", cfg.Features.CrossPair,
		"pairs", fmt.Sprintf("%v", cfg.Ingest.Pairs),
	)

	var sink core.IMetricsSink = telemetry.NoopSink{}
	if cfg.Telemetry.EnableMetrics {
		if err := telemetry.InitMetrics("pair_trader"); err != nil {
			logger.Warn("Failed to initialize metrics exporter", "error", err)
		} else {
			sink = telemetry.NewSink()
			logger.Info("Metrics exporter initialized")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipe, cleanup := buildPipeline(ctx, cfg, sink, logger)
	defer cleanup()

	ingestor := ingest.NewIngestor(ingest.Config{
		URL:   cfg.Ingest.StreamURL,
		Pairs: cfg.Ingest.Pairs,
	}, pipe, logger)

	hm := health.NewManager(logger)
	hm.Register("ingest", func() error {
		if !ingestor.Connected() {
			return apperrors.ErrNotConnected
		}
		return nil
	})

	metricsServer := metrics.NewServer(cfg.Telemetry.MetricsPort, pipe, hm, logger)

	ingestor.Start()
	metricsServer.Start()
	logger.Info("Trader is running", "metrics_port", cfg.Telemetry.MetricsPort)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		ingestor.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return metricsServer.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Trader stopped")
}

// loadConfig falls back to defaults when the default config file is absent,
// so the binary runs with no flags at all.
func loadConfig(path string) *config.Config {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Config file %s not found, using defaults\n", path)
		return config.DefaultConfig()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// buildPipeline assembles the decision chain and its persistence
// collaborators. The returned cleanup closes the stores.
func buildPipeline(ctx context.Context, cfg *config.Config, sink core.IMetricsSink, logger core.ILogger) (*pipeline.Pipeline, func()) {
	var stateStore core.IStateStore
	if cfg.Persistence.SQLitePath != "" {
		ss, err := store.NewSQLiteStateStore(cfg.Persistence.SQLitePath)
		if err != nil {
			logger.Warn("State store unavailable, snapshots disabled", "error", err)
		} else {
			stateStore = ss
		}
	}

	var est *estimator.KalmanSpread
	if stateStore != nil {
		est = pipeline.RestoreEstimator(ctx, stateStore, logger)
	}
	if est == nil {
		est = estimator.New(estimator.Config{
			ProcessNoise:     cfg.Estimator.ProcessNoise,
			ObservationNoise: cfg.Estimator.ObservationNoise,
			ResidualWindow:   cfg.Estimator.ResidualWindow,
		})
	}

	var advisory core.IAdvisoryFilter = tradesignal.NullFilter{}
	if cfg.Signal.ModelPath != "" {
		f, err := filter.NewONNXFilter(filter.Config{
			ModelPath:        cfg.Signal.ModelPath,
			ApproveThreshold: cfg.Signal.ApproveThreshold,
		}, logger)
		if err != nil {
			logger.Warn("Advisory model unavailable, trading on rules alone", "error", err)
		} else {
			advisory = f
		}
	}

	var events core.IEventStore = store.NullEventStore{}
	if cfg.Persistence.DatabaseURL != "" {
		es, err := store.NewPostgresEventStore(ctx, store.Config{
			DatabaseURL:      string(cfg.Persistence.DatabaseURL),
			InsertsPerSecond: cfg.Persistence.InsertsPerSecond,
			PoolWorkers:      cfg.Persistence.PoolWorkers,
			PoolCapacity:     cfg.Persistence.PoolCapacity,
		}, logger, sink)
		if err != nil {
			logger.Warn("Event store unavailable, persistence disabled", "error", err)
		} else {
			events = es
		}
	}

	agg := features.NewAggregator(features.Config{
		BaseLeg:         cfg.Features.BaseLeg,
		DependentLeg:    cfg.Features.DependentLeg,
		CrossPair:       cfg.Features.CrossPair,
		PriceWindow:     cfg.Features.PriceWindow,
		MinObservations: cfg.Features.MinObservations,
	}, est, logger)

	gen := tradesignal.NewGenerator(tradesignal.Config{
		ZScoreThreshold: cfg.Signal.ZScoreThreshold,
	}, advisory, logger)

	gate := risk.NewGate(risk.Config{
		MaxPositionNotional: decimal.NewFromFloat(cfg.Risk.MaxPositionNotional),
		MaxDailyLoss:        decimal.NewFromFloat(cfg.Risk.MaxDailyLoss),
		SlippageTolerance:   decimal.NewFromFloat(cfg.Risk.SlippageTolerance),
		CircuitBreaker: risk.CircuitConfig{
			MaxConsecutiveLosses: cfg.Risk.MaxConsecutiveLosses,
			CooldownPeriod:       time.Duration(cfg.Risk.BreakerCooldownSec) * time.Second,
		},
	}, logger, sink)

	sim := execution.NewSimulator(execution.Config{
		MaxSlippageBps: cfg.Execution.MaxSlippageBps,
	}, rand.New(rand.NewSource(time.Now().UnixNano())), logger)

	pipe := pipeline.New(pipeline.Config{
		CrossPair:         cfg.Features.CrossPair,
		TradeNotional:     decimal.NewFromFloat(cfg.Execution.TradeNotional),
		EstimatedSlippage: decimal.NewFromFloat(cfg.Execution.EstimatedSlippage),
		SnapshotInterval:  cfg.Persistence.SnapshotInterval,
	}, pipeline.Deps{
		Estimator:  est,
		Aggregator: agg,
		Generator:  gen,
		Gate:       gate,
		Simulator:  sim,
		Ledger:     ledger.New(logger),
		EventStore: events,
		StateStore: stateStore,
		Sink:       sink,
		Logger:     logger,
	})

	cleanup := func() {
		events.Close()
		if f, ok := advisory.(*filter.ONNXFilter); ok {
			f.Close()
		}
		if ss, ok := stateStore.(*store.SQLiteStateStore); ok {
			_ = ss.Close()
		}
	}
	return pipe, cleanup
}
