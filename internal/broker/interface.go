// Package broker defines the gateway contract the trading core talks to,
// plus a circuit-breaker wrapper and an in-process paper venue.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrContractNotFound is returned when no contract matches a symbol/exchange pair
	ErrContractNotFound = errors.New("contract not found")
	// ErrOrderNotFound is returned when an order id is unknown to the venue
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotCancelable is returned when an order has already filled or been canceled
	ErrOrderNotCancelable = errors.New("order not cancelable")
	// ErrNotConnected is returned when the gateway session is down
	ErrNotConnected = errors.New("gateway not connected")
)

// Gateway is the broker session contract. Implementations are not required to be
// safe for concurrent use; callers drive one session from a single goroutine.
type Gateway interface {
	// CurrentTime returns the venue clock.
	CurrentTime(ctx context.Context) (time.Time, error)

	// Contract data
	ResolveContract(ctx context.Context, symbol, exchange string) (*ContractDetails, error)
	HistoricalBars(ctx context.Context, contract Contract, duration, barSize string) ([]Bar, error)

	// Account
	AccountBalance(ctx context.Context) (decimal.Decimal, error)
	Positions(ctx context.Context) ([]Position, error)

	// Orders
	PlaceOrder(ctx context.Context, contract Contract, spec OrderSpec) (*OrderHandle, error)
	CancelOrder(ctx context.Context, orderID string) error
	OpenOrders(ctx context.Context) ([]OpenOrder, error)
}

// SecType values used for contract lookups
const (
	SecTypeContinuousFuture = "CONTFUT"
	SecTypeFuture           = "FUT"
)

// Contract identifies a tradable instrument.
type Contract struct {
	ConID       int64  `json:"con_id"`
	Symbol      string `json:"symbol"`
	LocalSymbol string `json:"local_symbol,omitempty"`
	SecType     string `json:"sec_type"`
	Exchange    string `json:"exchange"`
	Currency    string `json:"currency,omitempty"`
}

// ContractDetails carries the metadata needed to size and time an order.
type ContractDetails struct {
	Contract     Contract        `json:"contract"`
	Multiplier   string          `json:"multiplier"`
	MinTick      decimal.Decimal `json:"min_tick"`
	TradingHours string          `json:"trading_hours"`
	TimeZoneID   string          `json:"time_zone_id"`
}

// Bar is one OHLC bar.
type Bar struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// OrderSide is the direction of an order
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// Opposite returns the side that flattens s
func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType is the execution style of an order
type OrderType string

const (
	OrderTypeLimit  OrderType = "LMT"
	OrderTypeStop   OrderType = "STP"
	OrderTypeMarket OrderType = "MKT"
)

// TimeInForce values
type TimeInForce string

const (
	TIFGoodTillCancel TimeInForce = "GTC"
	TIFDay            TimeInForce = "DAY"
)

// OrderSpec describes an order to place.
type OrderSpec struct {
	ClientRef  string          `json:"client_ref,omitempty"`
	Side       OrderSide       `json:"side"`
	Type       OrderType       `json:"type"`
	Quantity   int             `json:"quantity"`
	LimitPrice decimal.Decimal `json:"limit_price"`
	StopPrice  decimal.Decimal `json:"stop_price"`
	// ParentID links a child order to its bracket parent.
	ParentID string      `json:"parent_id,omitempty"`
	TIF      TimeInForce `json:"tif"`
	// Transmit=false holds the order at the venue until a transmitting child arrives.
	Transmit bool `json:"transmit"`
}

// Order statuses reported by the venue
const (
	OrderStatusPreSubmitted = "PreSubmitted"
	OrderStatusSubmitted    = "Submitted"
	OrderStatusFilled       = "Filled"
	OrderStatusCancelled    = "Cancelled"
)

// OrderHandle is the venue's acknowledgement of a placed order.
type OrderHandle struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// OpenOrder is a working order at the venue.
type OpenOrder struct {
	OrderID   string    `json:"order_id"`
	ClientRef string    `json:"client_ref,omitempty"`
	ParentID  string    `json:"parent_id,omitempty"`
	Contract  Contract  `json:"contract"`
	Side      OrderSide `json:"side"`
	Type      OrderType `json:"type"`
	Quantity  int       `json:"quantity"`
	Status    string    `json:"status"`
}

// Position is a held quantity. Quantity is negative for short positions.
type Position struct {
	Contract Contract        `json:"contract"`
	Quantity decimal.Decimal `json:"quantity"`
	AvgCost  decimal.Decimal `json:"avg_cost"`
}

// IsFlat reports whether nothing is held
func (p Position) IsFlat() bool {
	return p.Quantity.IsZero()
}
