package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pair_trader/internal/core"
)

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{})                     {}
func (noopLogger) Info(string, ...interface{})                      {}
func (noopLogger) Warn(string, ...interface{})                      {}
func (noopLogger) Error(string, ...interface{})                     {}
func (noopLogger) Fatal(string, ...interface{})                     {}
func (l noopLogger) WithField(string, interface{}) core.ILogger     { return l }
func (l noopLogger) WithFields(map[string]interface{}) core.ILogger { return l }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestOpenPosition(t *testing.T) {
	l := New(noopLogger{})

	delta := l.ApplyFill("ETHBTC", d("0.06"), d("10"), core.SideBuy)
	assert.True(t, delta.IsZero())

	pos, ok := l.Position("ETHBTC")
	require.True(t, ok)
	assert.Equal(t, core.SideBuy, pos.Side)
	assert.True(t, pos.Quantity.Equal(d("10")))
	assert.True(t, pos.EntryPrice.Equal(d("0.06")))
}

func TestSameSideVolumeWeightsEntry(t *testing.T) {
	l := New(noopLogger{})

	l.ApplyFill("ETHBTC", d("0.06"), d("10"), core.SideBuy)
	l.ApplyFill("ETHBTC", d("0.09"), d("20"), core.SideBuy)

	pos, ok := l.Position("ETHBTC")
	require.True(t, ok)
	assert.True(t, pos.Quantity.Equal(d("30")))
	// (0.06*10 + 0.09*20) / 30 = 0.08
	assert.True(t, pos.EntryPrice.Equal(d("0.08")), "got %s", pos.EntryPrice)
}

func TestPartialCloseRealizesPnL(t *testing.T) {
	l := New(noopLogger{})

	l.ApplyFill("ETHBTC", d("0.06"), d("10"), core.SideBuy)
	delta := l.ApplyFill("ETHBTC", d("0.065"), d("4"), core.SideSell)

	// (0.065 - 0.06) * 4 = 0.02
	assert.True(t, delta.Equal(d("0.02")), "got %s", delta)
	assert.True(t, l.Realized().Equal(d("0.02")))

	pos, ok := l.Position("ETHBTC")
	require.True(t, ok)
	assert.True(t, pos.Quantity.Equal(d("6")))
	assert.True(t, pos.EntryPrice.Equal(d("0.06")), "entry unchanged by a reducing fill")
}

func TestFullCloseRemovesPosition(t *testing.T) {
	l := New(noopLogger{})

	l.ApplyFill("ETHBTC", d("0.06"), d("10"), core.SideBuy)
	l.ApplyFill("ETHBTC", d("0.061"), d("10"), core.SideSell)

	_, ok := l.Position("ETHBTC")
	assert.False(t, ok)
}

func TestOverCloseDiscardsExcess(t *testing.T) {
	l := New(noopLogger{})

	l.ApplyFill("ETHBTC", d("0.06"), d("10"), core.SideBuy)
	delta := l.ApplyFill("ETHBTC", d("0.065"), d("25"), core.SideSell)

	// Only the open 10 closes; the excess 15 is discarded
	assert.True(t, delta.Equal(d("0.05")), "got %s", delta)

	_, ok := l.Position("ETHBTC")
	assert.False(t, ok, "over-closing never leaves a negative position")
}

func TestShortPnLSigns(t *testing.T) {
	l := New(noopLogger{})

	l.ApplyFill("ETHBTC", d("0.06"), d("10"), core.SideSell)

	// Covering a short at a higher price loses money
	delta := l.ApplyFill("ETHBTC", d("0.062"), d("10"), core.SideBuy)
	assert.True(t, delta.Equal(d("-0.02")), "got %s", delta)

	l.ApplyFill("ETHBTC", d("0.06"), d("10"), core.SideSell)
	delta = l.ApplyFill("ETHBTC", d("0.058"), d("10"), core.SideBuy)
	assert.True(t, delta.Equal(d("0.02")), "got %s", delta)
}

func TestMarkToMarket(t *testing.T) {
	l := New(noopLogger{})

	l.ApplyFill("ETHBTC", d("0.06"), d("10"), core.SideBuy)
	l.ApplyFill("BTCUSDT", d("50000"), d("0.1"), core.SideSell)

	l.MarkToMarket(map[string]decimal.Decimal{
		"ETHBTC":  d("0.062"),
		"BTCUSDT": d("49000"),
	})
	// long: (0.062-0.06)*10 = 0.02; short: -(49000-50000)*0.1 = 100
	assert.True(t, l.TotalPnL().Equal(d("100.02")), "got %s", l.TotalPnL())
}

func TestMarkToMarketSkipsMissingPrices(t *testing.T) {
	l := New(noopLogger{})

	l.ApplyFill("ETHBTC", d("0.06"), d("10"), core.SideBuy)
	l.MarkToMarket(map[string]decimal.Decimal{"ETHBTC": d("0.07")})
	assert.True(t, l.TotalPnL().Equal(d("0.1")))

	// Re-stated, not carried forward, when the price disappears
	l.MarkToMarket(map[string]decimal.Decimal{})
	assert.True(t, l.TotalPnL().IsZero())
}

func TestSummarySnapshot(t *testing.T) {
	l := New(noopLogger{})

	l.ApplyFill("ETHBTC", d("0.06"), d("10"), core.SideBuy)
	l.ApplyFill("ETHBTC", d("0.065"), d("4"), core.SideSell)
	l.MarkToMarket(map[string]decimal.Decimal{"ETHBTC": d("0.061")})

	s := l.Summary()
	assert.True(t, s.Realized.Equal(d("0.02")))
	assert.True(t, s.Unrealized.Equal(d("0.006")))
	require.Contains(t, s.Positions, "ETHBTC")
	assert.True(t, s.Positions["ETHBTC"].Quantity.Equal(d("6")))
	assert.False(t, s.Timestamp.IsZero())
}
