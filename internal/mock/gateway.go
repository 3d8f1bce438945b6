// Package mock provides testify-backed doubles for the broker gateway.
package mock

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	testifymock "github.com/stretchr/testify/mock"

	"github.com/eddiefleurent/seasonal_trader/internal/broker"
)

// Gateway is a scripted broker.Gateway. Set expectations with On.
type Gateway struct {
	testifymock.Mock
}

var _ broker.Gateway = (*Gateway)(nil)

// NewGateway creates an empty mock gateway
func NewGateway() *Gateway {
	return &Gateway{}
}

func (m *Gateway) CurrentTime(ctx context.Context) (time.Time, error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *Gateway) ResolveContract(ctx context.Context, symbol, exchange string) (*broker.ContractDetails, error) {
	args := m.Called(ctx, symbol, exchange)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*broker.ContractDetails), args.Error(1)
}

func (m *Gateway) HistoricalBars(ctx context.Context, contract broker.Contract, duration, barSize string) ([]broker.Bar, error) {
	args := m.Called(ctx, contract, duration, barSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]broker.Bar), args.Error(1)
}

func (m *Gateway) AccountBalance(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *Gateway) Positions(ctx context.Context) ([]broker.Position, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]broker.Position), args.Error(1)
}

func (m *Gateway) PlaceOrder(ctx context.Context, contract broker.Contract, spec broker.OrderSpec) (*broker.OrderHandle, error) {
	args := m.Called(ctx, contract, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*broker.OrderHandle), args.Error(1)
}

func (m *Gateway) CancelOrder(ctx context.Context, orderID string) error {
	return m.Called(ctx, orderID).Error(0)
}

func (m *Gateway) OpenOrders(ctx context.Context) ([]broker.OpenOrder, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]broker.OpenOrder), args.Error(1)
}
