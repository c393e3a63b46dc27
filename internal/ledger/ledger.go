// Package ledger tracks open positions and realized/unrealized PnL.
package ledger

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pair_trader/internal/core"
)

// Ledger holds open positions keyed by pair. Opposite-side fills reduce or
// close; a closing quantity beyond the open size is discarded, never opened
// as a new position in the other direction. That asymmetry is a known
// limitation of this model.
type Ledger struct {
	mu         sync.Mutex
	positions  map[string]core.Position
	realized   decimal.Decimal
	unrealized decimal.Decimal
	logger     core.ILogger
}

func New(logger core.ILogger) *Ledger {
	return &Ledger{
		positions: make(map[string]core.Position),
		logger:    logger.WithField("component", "ledger"),
	}
}

// ApplyFill books a fill and returns the realized PnL delta it produced
// (zero for opening or scaling fills).
func (l *Ledger) ApplyFill(pair string, price, quantity decimal.Decimal, side core.Side) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[pair]
	if !ok {
		l.positions[pair] = core.Position{Side: side, Quantity: quantity, EntryPrice: price}
		l.logger.Info("Position opened", "pair", pair, "side", string(side),
			"quantity", quantity.String(), "price", price.String())
		return decimal.Zero
	}

	if pos.Side == side {
		// Same side: volume-weight the entry
		totalQty := pos.Quantity.Add(quantity)
		pos.EntryPrice = pos.EntryPrice.Mul(pos.Quantity).Add(price.Mul(quantity)).Div(totalQty)
		pos.Quantity = totalQty
		l.positions[pair] = pos
		return decimal.Zero
	}

	// Opposite side: reduce or close
	closingQty := decimal.Min(pos.Quantity, quantity)
	delta := price.Sub(pos.EntryPrice).Mul(closingQty)
	if pos.Side == core.SideSell {
		delta = delta.Neg()
	}
	l.realized = l.realized.Add(delta)

	pos.Quantity = pos.Quantity.Sub(closingQty)
	if pos.Quantity.LessThanOrEqual(decimal.Zero) {
		delete(l.positions, pair)
		l.logger.Info("Position closed", "pair", pair, "realized_delta", delta.String())
	} else {
		l.positions[pair] = pos
	}
	return delta
}

// MarkToMarket re-states total unrealized PnL from the supplied reference
// prices. Positions without a price are skipped, contributing zero for
// this cycle.
func (l *Ledger) MarkToMarket(prices map[string]decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := decimal.Zero
	for pair, pos := range l.positions {
		price, ok := prices[pair]
		if !ok {
			continue
		}
		u := price.Sub(pos.EntryPrice).Mul(pos.Quantity)
		if pos.Side == core.SideSell {
			u = u.Neg()
		}
		total = total.Add(u)
	}
	l.unrealized = total
}

// Realized returns cumulative realized PnL.
func (l *Ledger) Realized() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.realized
}

// TotalPnL returns realized plus the last marked unrealized PnL.
func (l *Ledger) TotalPnL() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.realized.Add(l.unrealized)
}

// Position returns the open position for a pair, if any.
func (l *Ledger) Position(pair string) (core.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[pair]
	return pos, ok
}

// Summary returns a point-in-time snapshot for the PnL query endpoint.
func (l *Ledger) Summary() core.PnLSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	positions := make(map[string]core.Position, len(l.positions))
	for pair, pos := range l.positions {
		positions[pair] = pos
	}
	return core.PnLSummary{
		Timestamp:  time.Now().UTC(),
		Realized:   l.realized,
		Unrealized: l.unrealized,
		Positions:  positions,
	}
}
