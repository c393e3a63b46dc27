// Package signal maps feature vectors to directional trade decisions.
package signal

import (
	"fmt"

	"pair_trader/internal/core"
)

// DefaultZScoreThreshold is the symmetric z-score band for entries
const DefaultZScoreThreshold = 2.0

// Config holds signal generation parameters
type Config struct {
	ZScoreThreshold float64
}

// NullFilter is the advisory-filter variant used when no model is
// configured; it always approves so decisions rest on the rules alone.
type NullFilter struct{}

func (NullFilter) Predict(*core.FeatureVector) (core.Verdict, error) {
	return core.Verdict{Approve: true}, nil
}

// Generator turns feature vectors into trade signals. The advisory filter
// is consulted first; a veto short-circuits rule evaluation. Filter errors
// fail open: the advisory layer must never block trading through its own
// failure.
type Generator struct {
	threshold float64
	filter    core.IAdvisoryFilter
	logger    core.ILogger
}

// NewGenerator creates a generator. A nil filter behaves as NullFilter.
func NewGenerator(cfg Config, filter core.IAdvisoryFilter, logger core.ILogger) *Generator {
	if cfg.ZScoreThreshold <= 0 {
		cfg.ZScoreThreshold = DefaultZScoreThreshold
	}
	if filter == nil {
		filter = NullFilter{}
	}
	return &Generator{
		threshold: cfg.ZScoreThreshold,
		filter:    filter,
		logger:    logger.WithField("component", "signal_generator"),
	}
}

// Generate returns a trade signal for the feature vector, or nil when the
// features are absent.
func (g *Generator) Generate(fv *core.FeatureVector) *core.TradeSignal {
	if fv == nil {
		return nil
	}

	verdict, err := g.filter.Predict(fv)
	if err != nil {
		g.logger.Warn("Advisory filter failed, defaulting to approve", "error", err)
		verdict = core.Verdict{Approve: true}
	}

	sig := &core.TradeSignal{
		Decision:    core.DecisionHold,
		ZScore:      fv.ZScore,
		Spread:      fv.Spread,
		Volatility:  fv.Volatility,
		Imbalance:   fv.Imbalance,
		FilterScore: verdict.Score,
	}

	if !verdict.Approve {
		sig.Reason = "advisory veto"
		return sig
	}

	switch {
	case fv.ZScore < -g.threshold:
		sig.Decision = core.DecisionBuy
		sig.Reason = fmt.Sprintf("zscore %.4f below -%.2f", fv.ZScore, g.threshold)
	case fv.ZScore > g.threshold:
		sig.Decision = core.DecisionSell
		sig.Reason = fmt.Sprintf("zscore %.4f above %.2f", fv.ZScore, g.threshold)
	default:
		sig.Reason = "zscore within band"
	}

	return sig
}
