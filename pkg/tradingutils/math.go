package tradingutils

import (
	"github.com/shopspring/decimal"
)

// RoundPrice rounds a price to the specified decimals
func RoundPrice(price decimal.Decimal, priceDecimals int) decimal.Decimal {
	return price.Round(int32(priceDecimals))
}

// RoundQuantity rounds a quantity to the specified decimals
func RoundQuantity(qty decimal.Decimal, qtyDecimals int) decimal.Decimal {
	return qty.Round(int32(qtyDecimals))
}

// AdversePrice applies a slippage fraction against the requester: buys pay
// more, sells receive less.
func AdversePrice(price, slippage decimal.Decimal, isBuy bool) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if isBuy {
		return price.Mul(one.Add(slippage))
	}
	return price.Mul(one.Sub(slippage))
}

// QuantityForNotional converts a quote-currency trade value into a base
// quantity at the given price. Returns zero for a non-positive price.
func QuantityForNotional(notional, price decimal.Decimal) decimal.Decimal {
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return notional.Div(price)
}
