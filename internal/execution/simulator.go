// Package execution fills approved signals against a simulated venue with
// randomized adverse slippage.
package execution

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pair_trader/internal/core"
	"pair_trader/pkg/tradingutils"
)

const pricePrecision = 8

// Config holds simulator parameters
type Config struct {
	MaxSlippageBps int64
}

// DefaultConfig returns the stock simulator settings
func DefaultConfig() Config {
	return Config{MaxSlippageBps: 5}
}

// Simulator fills every non-HOLD signal that reaches it. There is no
// rejection path here; risk checks happen upstream.
type Simulator struct {
	mu      sync.Mutex
	maxFrac float64
	rng     *rand.Rand
	now     func() time.Time
	logger  core.ILogger
}

// NewSimulator creates a simulator. A nil rng seeds from the clock.
func NewSimulator(cfg Config, rng *rand.Rand, logger core.ILogger) *Simulator {
	if cfg.MaxSlippageBps <= 0 {
		cfg.MaxSlippageBps = DefaultConfig().MaxSlippageBps
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{
		maxFrac: float64(cfg.MaxSlippageBps) / 10000.0,
		rng:     rng,
		now:     time.Now,
		logger:  logger.WithField("component", "execution_simulator"),
	}
}

// Fill simulates execution at the reference price plus adverse slippage.
// Returns nil for HOLD signals.
func (s *Simulator) Fill(sig *core.TradeSignal, referencePrice, notional decimal.Decimal) *core.Order {
	if sig == nil || sig.Decision == core.DecisionHold {
		return nil
	}

	s.mu.Lock()
	frac := s.rng.Float64() * s.maxFrac
	ts := s.now().UTC()
	s.mu.Unlock()

	slippage := decimal.NewFromFloat(frac).Round(pricePrecision)
	requested := tradingutils.RoundPrice(referencePrice, pricePrecision)
	filled := tradingutils.RoundPrice(
		tradingutils.AdversePrice(requested, slippage, sig.Decision == core.DecisionBuy),
		pricePrecision)

	order := &core.Order{
		ID:             uuid.NewString(),
		Timestamp:      ts,
		Decision:       sig.Decision,
		RequestedPrice: requested,
		FilledPrice:    filled,
		Slippage:       slippage,
		Notional:       notional,
		Status:         core.OrderStatusFilled,
	}

	s.logger.Debug("Order filled",
		"order_id", order.ID,
		"decision", string(order.Decision),
		"requested", requested.String(),
		"filled", filled.String(),
		"slippage", slippage.String())

	return order
}
