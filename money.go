package main

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Column scales. Values are rounded to these before they are persisted so that
// what is computed in memory is exactly what the database returns.
const (
	priceScale   = 4 // decimal(14,4)
	amountScale  = 2 // decimal(16,2)
	percentScale = 4 // decimal(7,4)
)

var hundred = decimal.NewFromInt(100)

func roundPrice(d decimal.Decimal) decimal.Decimal   { return d.Round(priceScale) }
func roundAmount(d decimal.Decimal) decimal.Decimal  { return d.Round(amountScale) }
func roundPercent(d decimal.Decimal) decimal.Decimal { return d.Round(percentScale) }

// performancePercent is (value - cost) / cost * 100, and 0 whenever cost is not positive.
func performancePercent(value, cost decimal.Decimal) decimal.Decimal {
	if !cost.IsPositive() {
		return decimal.Zero
	}
	return roundPercent(value.Sub(cost).Div(cost).Mul(hundred))
}

// percentChange is the change from base to current in percent; 0 when base is not positive.
func percentChange(current, base decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() {
		return decimal.Zero
	}
	return current.Sub(base).Div(base).Mul(hundred)
}

// formatMoney renders an amount for humans, e.g. "$1,234.50".
func formatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		cur = money.GetCurrency(money.USD)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}
