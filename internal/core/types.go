// Package core defines the shared types and interfaces for the trading pipeline
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the taker side of a trade or fill
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Decision is the directional call produced by the signal generator
type Decision string

const (
	DecisionBuy  Decision = "BUY"
	DecisionSell Decision = "SELL"
	DecisionHold Decision = "HOLD"
)

// OrderStatus is the lifecycle state of a simulated order.
// The simulator has no partial-fill or rejection path, so FILLED is the
// only status an emitted order ever carries.
type OrderStatus string

const OrderStatusFilled OrderStatus = "FILLED"

// MarketTick is a normalized trade event from an exchange feed
type MarketTick struct {
	Timestamp time.Time
	Exchange  string
	Pair      string
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Side      Side
}

// PriceLevel is one level of order book depth
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// BookUpdate is a normalized order book depth event
type BookUpdate struct {
	Timestamp time.Time
	Exchange  string
	Pair      string
	Bids      []PriceLevel
	Asks      []PriceLevel
}

// Imbalance returns (bidVolume - askVolume) / (bidVolume + askVolume) over
// the carried levels, in [-1, 1]. Returns 0 for an empty book.
func (b *BookUpdate) Imbalance() float64 {
	var bidVol, askVol decimal.Decimal
	for _, l := range b.Bids {
		bidVol = bidVol.Add(l.Quantity)
	}
	for _, l := range b.Asks {
		askVol = askVol.Add(l.Quantity)
	}
	total := bidVol.Add(askVol)
	if total.IsZero() {
		return 0
	}
	imb, _ := bidVol.Sub(askVol).Div(total).Float64()
	return imb
}

// FeatureVector is the per-tick feature set fed to the signal generator.
// Immutable once emitted by the aggregator.
type FeatureVector struct {
	Timestamp  time.Time
	Spread     float64
	ZScore     float64
	Volatility float64
	Imbalance  float64
}

// TradeSignal is the ephemeral decision record handed to the risk gate.
// FilterScore carries the advisory model output when a filter is configured.
type TradeSignal struct {
	Decision    Decision
	ZScore      float64
	Spread      float64
	Volatility  float64
	Imbalance   float64
	FilterScore float64
	Reason      string
}

// Order is a simulated fill. Immutable after creation.
type Order struct {
	ID             string
	Timestamp      time.Time
	Decision       Decision
	RequestedPrice decimal.Decimal
	FilledPrice    decimal.Decimal
	Slippage       decimal.Decimal
	Notional       decimal.Decimal
	Status         OrderStatus
}

// Position is an open position for one instrument pair. Quantity is always
// positive while the position exists; a fully closed position is deleted.
type Position struct {
	Side       Side
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
}

// PnLSummary is a point-in-time snapshot of the ledger
type PnLSummary struct {
	Timestamp  time.Time               `json:"timestamp"`
	Realized   decimal.Decimal         `json:"realized_pnl"`
	Unrealized decimal.Decimal         `json:"unrealized_pnl"`
	Positions  map[string]Position     `json:"positions"`
}
