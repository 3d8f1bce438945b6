// Package risk sizes futures positions from account risk and computes protective stop prices.
package risk

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/seasonal_trader/internal/models"
	"github.com/eddiefleurent/seasonal_trader/internal/util"
)

// MinContracts is the smallest quantity Size ever returns.
const MinContracts = 1

// stopPricePlaces is the precision stop prices are rounded to.
const stopPricePlaces = 2

var hundred = decimal.NewFromInt(100)

// Inputs holds everything needed to size one entry.
type Inputs struct {
	Balance     decimal.Decimal // net liquidation value
	EntryPrice  decimal.Decimal
	StopPrice   decimal.Decimal
	Multiplier  decimal.Decimal
	RiskPercent decimal.Decimal // 2 means 2%
}

// Result is the outcome of Calculate.
type Result struct {
	Contracts       int
	RiskAmount      decimal.Decimal
	RiskPerContract decimal.Decimal
}

// Calculate returns the number of contracts whose stop-out loss fits in the risk budget.
// The result is never below MinContracts; a zero risk per contract sizes to MinContracts.
func Calculate(in Inputs) Result {
	riskAmt := in.Balance.Mul(in.RiskPercent).Div(hundred)
	perContract := in.EntryPrice.Sub(in.StopPrice).Abs().Mul(in.Multiplier)

	res := Result{
		Contracts:       MinContracts,
		RiskAmount:      riskAmt,
		RiskPerContract: perContract,
	}
	if perContract.IsZero() {
		return res
	}

	n := riskAmt.Div(perContract).Floor()
	if !n.IsPositive() {
		return res
	}
	res.Contracts = int(n.IntPart())
	return res
}

// Size is Calculate for callers that only need the quantity.
func Size(balance, entryPrice, stopPrice, multiplier, riskPercent decimal.Decimal) int {
	return Calculate(Inputs{
		Balance:     balance,
		EntryPrice:  entryPrice,
		StopPrice:   stopPrice,
		Multiplier:  multiplier,
		RiskPercent: riskPercent,
	}).Contracts
}

// ParseMultiplier reads a contract multiplier as reported by the broker.
// An empty multiplier means 1.
func ParseMultiplier(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NewFromInt(1), nil
	}
	m, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse multiplier %q: %w", s, err)
	}
	if !m.IsPositive() {
		return decimal.Zero, fmt.Errorf("multiplier %q must be positive", s)
	}
	return m, nil
}

// StopPrice places the protective stop away from price, below it for LONG and above it for SHORT.
// POINTS offsets by value, PERCENTAGE by value percent. The result is rounded to 2 decimals.
func StopPrice(dir models.Direction, stopType models.StopLossType, price, value decimal.Decimal) (decimal.Decimal, error) {
	var offset decimal.Decimal
	switch stopType {
	case models.StopLossPoints:
		offset = value
	case models.StopLossPercentage:
		offset = price.Mul(value).Div(hundred)
	default:
		return decimal.Zero, fmt.Errorf("unknown stop loss type %q", stopType)
	}

	var stop decimal.Decimal
	switch dir {
	case models.DirectionLong:
		stop = price.Sub(offset)
	case models.DirectionShort:
		stop = price.Add(offset)
	default:
		return decimal.Zero, fmt.Errorf("unknown direction %q", dir)
	}
	return util.RoundPrice(stop, stopPricePlaces), nil
}
