// Package features maintains rolling per-instrument price history and
// assembles feature vectors for the signal generator.
package features

import (
	"pair_trader/internal/core"
	"pair_trader/internal/estimator"
	"pair_trader/pkg/ringbuffer"
)

// Defaults for the rolling windows
const (
	DefaultPriceWindow     = 500
	DefaultMinObservations = 10
)

// Config identifies the tracked legs and window sizes. The implied cross
// price is DependentLeg / BaseLeg (both quoted in the same currency); the
// estimator compares it against the actual CrossPair price.
type Config struct {
	BaseLeg         string
	DependentLeg    string
	CrossPair       string
	PriceWindow     int
	MinObservations int
}

// Aggregator feeds the spread estimator and emits at most one FeatureVector
// per qualifying trade tick. Not safe for concurrent use; the pipeline owns
// it behind a single consumer.
type Aggregator struct {
	cfg    Config
	legs   map[string]*ringbuffer.Buffer
	est    *estimator.KalmanSpread
	logger core.ILogger

	// latest order book imbalance per tracked pair
	imbalances map[string]float64
}

// NewAggregator creates an aggregator for the configured legs
func NewAggregator(cfg Config, est *estimator.KalmanSpread, logger core.ILogger) *Aggregator {
	if cfg.PriceWindow <= 0 {
		cfg.PriceWindow = DefaultPriceWindow
	}
	if cfg.MinObservations <= 0 {
		cfg.MinObservations = DefaultMinObservations
	}

	legs := map[string]*ringbuffer.Buffer{
		cfg.BaseLeg:      ringbuffer.New(cfg.PriceWindow),
		cfg.DependentLeg: ringbuffer.New(cfg.PriceWindow),
		cfg.CrossPair:    ringbuffer.New(cfg.PriceWindow),
	}

	return &Aggregator{
		cfg:        cfg,
		legs:       legs,
		est:        est,
		logger:     logger.WithField("component", "feature_aggregator"),
		imbalances: make(map[string]float64),
	}
}

// OnTick ingests a trade tick. Unknown pairs are ignored. Returns a feature
// vector once all legs are warm, nil otherwise.
func (a *Aggregator) OnTick(tick *core.MarketTick) *core.FeatureVector {
	buf, tracked := a.legs[tick.Pair]
	if !tracked {
		return nil
	}

	price, _ := tick.Price.Float64()
	buf.Push(price)

	if !a.Ready() {
		return nil
	}

	base := a.legs[a.cfg.BaseLeg].Last()
	if base == 0 {
		a.logger.Warn("Base leg price is zero, skipping feature computation", "pair", a.cfg.BaseLeg)
		return nil
	}
	implied := a.legs[a.cfg.DependentLeg].Last() / base
	actual := a.legs[a.cfg.CrossPair].Last()

	a.est.Update(implied, actual)

	return &core.FeatureVector{
		Timestamp:  tick.Timestamp,
		Spread:     a.est.LastResidual(),
		ZScore:     a.est.ZScore(),
		Volatility: a.est.ResidualStd(),
		Imbalance:  a.imbalances[a.cfg.CrossPair],
	}
}

// OnBook records the latest order book imbalance for a tracked pair.
// Until a book update arrives the imbalance feature reads zero; production
// use requires a live depth feed.
func (a *Aggregator) OnBook(book *core.BookUpdate) {
	if _, tracked := a.legs[book.Pair]; !tracked {
		return
	}
	a.imbalances[book.Pair] = book.Imbalance()
}

// Ready reports whether every leg holds more than the minimum observations
func (a *Aggregator) Ready() bool {
	for _, buf := range a.legs {
		if buf.Len() <= a.cfg.MinObservations {
			return false
		}
	}
	return true
}
