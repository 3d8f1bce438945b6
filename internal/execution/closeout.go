package execution

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/seasonal_trader/internal/broker"
	"github.com/eddiefleurent/seasonal_trader/internal/models"
	"github.com/eddiefleurent/seasonal_trader/internal/retry"
)

// closeout flattens any position in the window's instrument with a market
// order and confirms it after the settle delay. No position is success.
func (e *Engine) closeout(ctx context.Context, sym *models.Symbol, details *broker.ContractDetails, log logrus.FieldLogger) error {
	pos, err := e.position(ctx, sym.Ticker, log)
	if err != nil {
		return fmt.Errorf("listing positions: %w", err)
	}
	if pos == nil || pos.IsFlat() {
		log.Info("No position to close")
		return nil
	}

	side := broker.SideSell
	if pos.Quantity.IsNegative() {
		side = broker.SideBuy
	}
	qty := int(pos.Quantity.Abs().IntPart())
	log = log.WithFields(logrus.Fields{"side": side, "quantity": qty})
	if qty < 1 {
		return fmt.Errorf("%w: %s holds %s, less than one contract", ErrCloseoutIncomplete, sym.Ticker, pos.Quantity)
	}

	h, err := e.placeOrder(ctx, log, "place closeout order", details.Contract, broker.OrderSpec{
		ClientRef: uuid.NewString() + "-exit",
		Side:      side,
		Type:      broker.OrderTypeMarket,
		Quantity:  qty,
		TIF:       broker.TIFDay,
		Transmit:  true,
	})
	if err != nil {
		return fmt.Errorf("placing closeout order: %w", err)
	}
	log = log.WithField("order_id", h.OrderID)
	log.Info("Closeout order placed")

	if err := e.sleep(ctx, e.cfg.SettleDelay); err != nil {
		return err
	}

	after, err := e.position(ctx, sym.Ticker, log)
	if err != nil {
		return fmt.Errorf("confirming closeout: %w", err)
	}
	if after != nil && !after.IsFlat() {
		return fmt.Errorf("%w: %s still holds %s", ErrCloseoutIncomplete, sym.Ticker, after.Quantity)
	}
	return nil
}

// position finds the held position for symbol, nil when there is none.
func (e *Engine) position(ctx context.Context, symbol string, log logrus.FieldLogger) (*broker.Position, error) {
	positions, err := retry.Do(ctx, e.cfg.DataRetry, log, "list positions", e.gateway.Positions)
	if err != nil {
		return nil, err
	}
	pos, ok := lo.Find(positions, func(p broker.Position) bool {
		return strings.EqualFold(p.Contract.Symbol, symbol)
	})
	if !ok {
		return nil, nil
	}
	return &pos, nil
}

// cancelResting cancels any of ids still working at the venue. Best effort:
// failures are logged.
func (e *Engine) cancelResting(ctx context.Context, log logrus.FieldLogger, ids ...string) {
	ids = lo.Compact(ids)
	if len(ids) == 0 {
		return
	}
	open, err := e.gateway.OpenOrders(ctx)
	if err != nil {
		log.WithError(err).Warn("Could not list open orders")
		return
	}
	for _, o := range open {
		if !lo.Contains(ids, o.OrderID) {
			continue
		}
		if err := e.gateway.CancelOrder(ctx, o.OrderID); err != nil {
			log.WithError(err).WithField("order_id", o.OrderID).Warn("Failed to cancel resting order")
			continue
		}
		log.WithField("order_id", o.OrderID).Info("Canceled resting order")
	}
}
