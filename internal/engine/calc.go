package engine

import (
	"gatebot/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// changePercent изменение цены внутри свечи, (close-open)/open*100.
func changePercent(c models.Candlestick) decimal.Decimal {
	if c.O.IsZero() {
		return decimal.Zero
	}
	return c.C.Sub(c.O.Decimal).Div(c.O.Decimal).Mul(hundred).Round(4)
}

// rangePercent размах свечи относительно минимума.
func rangePercent(c models.Candlestick) decimal.Decimal {
	if c.L.IsZero() {
		return decimal.Zero
	}
	return c.H.Sub(c.L.Decimal).Div(c.L.Decimal).Mul(hundred).Round(4)
}

func roundToTick(price, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return price
	}
	return price.Div(tick).Round(0).Mul(tick)
}
