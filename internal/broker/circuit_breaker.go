package broker

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// CircuitBreakerGateway wraps a Gateway with circuit breaker functionality
type CircuitBreakerGateway struct {
	gateway Gateway
	breaker *gobreaker.CircuitBreaker
}

// Ensure CircuitBreakerGateway implements Gateway at compile time.
var _ Gateway = (*CircuitBreakerGateway)(nil)

// execCircuitBreaker is a generic helper for circuit breaker wrapper methods
func execCircuitBreaker[T any](
	breaker *gobreaker.CircuitBreaker,
	gateway Gateway,
	fn func(Gateway) (T, error),
) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn(gateway) })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// CircuitBreakerSettings configures circuit breaker behavior
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// DefaultCircuitBreakerSettings trips after 60% failures over at least 5 calls.
var DefaultCircuitBreakerSettings = CircuitBreakerSettings{
	MaxRequests:  3,
	Interval:     60 * time.Second,
	Timeout:      30 * time.Second,
	MinRequests:  5,
	FailureRatio: 0.6,
}

// NewCircuitBreakerGateway creates a CircuitBreakerGateway with default settings
func NewCircuitBreakerGateway(gateway Gateway, logger logrus.FieldLogger) *CircuitBreakerGateway {
	return NewCircuitBreakerGatewayWithSettings(gateway, DefaultCircuitBreakerSettings, logger)
}

// NewCircuitBreakerGatewayWithSettings creates a CircuitBreakerGateway with custom settings
func NewCircuitBreakerGatewayWithSettings(
	gateway Gateway,
	settings CircuitBreakerSettings,
	logger logrus.FieldLogger,
) *CircuitBreakerGateway {
	if gateway == nil {
		panic("broker: NewCircuitBreakerGateway requires a gateway")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	gbSettings := gobreaker.Settings{
		Name:        "GatewayCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		// Venue answers about unknown orders or contracts mean the session is healthy.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrOrderNotFound) ||
				errors.Is(err, ErrOrderNotCancelable) ||
				errors.Is(err, ErrContractNotFound)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).
				Warn("Circuit breaker state changed")
		},
	}

	return &CircuitBreakerGateway{
		gateway: gateway,
		breaker: gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// State exposes the breaker state for status reporting
func (c *CircuitBreakerGateway) State() gobreaker.State {
	return c.breaker.State()
}

// CurrentTime wraps the underlying gateway call with circuit breaker
func (c *CircuitBreakerGateway) CurrentTime(ctx context.Context) (time.Time, error) {
	return execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) (time.Time, error) { return g.CurrentTime(ctx) })
}

// ResolveContract wraps the underlying gateway call with circuit breaker
func (c *CircuitBreakerGateway) ResolveContract(ctx context.Context, symbol, exchange string) (*ContractDetails, error) {
	return execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) (*ContractDetails, error) {
		return g.ResolveContract(ctx, symbol, exchange)
	})
}

// HistoricalBars wraps the underlying gateway call with circuit breaker
func (c *CircuitBreakerGateway) HistoricalBars(ctx context.Context, contract Contract, duration, barSize string) ([]Bar, error) {
	return execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) ([]Bar, error) {
		return g.HistoricalBars(ctx, contract, duration, barSize)
	})
}

// AccountBalance wraps the underlying gateway call with circuit breaker
func (c *CircuitBreakerGateway) AccountBalance(ctx context.Context) (decimal.Decimal, error) {
	return execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) (decimal.Decimal, error) { return g.AccountBalance(ctx) })
}

// Positions wraps the underlying gateway call with circuit breaker
func (c *CircuitBreakerGateway) Positions(ctx context.Context) ([]Position, error) {
	return execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) ([]Position, error) { return g.Positions(ctx) })
}

// PlaceOrder wraps the underlying gateway call with circuit breaker
func (c *CircuitBreakerGateway) PlaceOrder(ctx context.Context, contract Contract, spec OrderSpec) (*OrderHandle, error) {
	return execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) (*OrderHandle, error) {
		return g.PlaceOrder(ctx, contract, spec)
	})
}

// CancelOrder wraps the underlying gateway call with circuit breaker
func (c *CircuitBreakerGateway) CancelOrder(ctx context.Context, orderID string) error {
	_, err := execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) (struct{}, error) {
		return struct{}{}, g.CancelOrder(ctx, orderID)
	})
	return err
}

// OpenOrders wraps the underlying gateway call with circuit breaker
func (c *CircuitBreakerGateway) OpenOrders(ctx context.Context) ([]OpenOrder, error) {
	return execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) ([]OpenOrder, error) { return g.OpenOrders(ctx) })
}
