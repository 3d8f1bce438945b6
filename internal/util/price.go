// Package util provides common utility functions for price calculations.
package util

import "github.com/shopspring/decimal"

// RoundToTick rounds x to the nearest tick increment, ties away from zero.
// A non-positive tick returns x unchanged.
func RoundToTick(x, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return x
	}
	return x.Div(tick).Round(0).Mul(tick)
}

// RoundPrice rounds a price to the given number of decimal places.
func RoundPrice(x decimal.Decimal, places int32) decimal.Decimal {
	return x.Round(places)
}
