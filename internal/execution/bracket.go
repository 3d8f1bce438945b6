package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/seasonal_trader/internal/alert"
	"github.com/eddiefleurent/seasonal_trader/internal/broker"
	"github.com/eddiefleurent/seasonal_trader/internal/models"
	"github.com/eddiefleurent/seasonal_trader/internal/retry"
	"github.com/eddiefleurent/seasonal_trader/internal/risk"
	"github.com/eddiefleurent/seasonal_trader/internal/util"
)

// entryPlan is the priced and sized bracket for one window.
type entryPlan struct {
	side     broker.OrderSide
	price    decimal.Decimal
	stop     decimal.Decimal
	quantity int
	balance  decimal.Decimal
}

func (e *Engine) plan(
	ctx context.Context,
	rule *models.SeasonalRule,
	details *broker.ContractDetails,
	log logrus.FieldLogger,
) (*entryPlan, error) {
	bars, err := retry.Do(ctx, e.cfg.DataRetry, log, "historical bars", func(ctx context.Context) ([]broker.Bar, error) {
		bars, err := e.gateway.HistoricalBars(ctx, details.Contract, e.cfg.BarDuration, e.cfg.BarSize)
		if err == nil && len(bars) == 0 {
			return nil, retry.ErrEmptyResult
		}
		return bars, err
	})
	if err != nil {
		return nil, err
	}
	price := util.RoundToTick(bars[len(bars)-1].Close, details.MinTick)
	if !price.IsPositive() {
		return nil, fmt.Errorf("reference price %s is not positive", price)
	}

	stop, err := risk.StopPrice(rule.Direction, rule.StopLossType, price, rule.StopLoss)
	if err != nil {
		return nil, err
	}
	stop = util.RoundToTick(stop, details.MinTick)

	balance, err := retry.Do(ctx, e.cfg.DataRetry, log, "account balance", e.gateway.AccountBalance)
	if err != nil {
		return nil, err
	}

	qty := risk.MinContracts
	if mult, err := risk.ParseMultiplier(details.Multiplier); err != nil {
		log.WithError(err).Warn("Unusable contract multiplier, sizing to the minimum")
	} else {
		qty = risk.Size(balance, price, stop, mult, rule.RiskPercent)
	}

	side := broker.SideBuy
	if !rule.Direction.IsLong() {
		side = broker.SideSell
	}
	return &entryPlan{side: side, price: price, stop: stop, quantity: qty, balance: balance}, nil
}

// placeBracket sends a held limit entry and a transmitting protective stop.
// On success the window moves to OPEN with both order ids recorded.
func (e *Engine) placeBracket(
	ctx context.Context,
	now time.Time,
	w *models.TradingWindow,
	rule *models.SeasonalRule,
	details *broker.ContractDetails,
	log logrus.FieldLogger,
) error {
	adopted, err := e.adopt(ctx, now, w, log)
	if err != nil {
		return fmt.Errorf("checking for a sent bracket: %w", err)
	}
	if adopted {
		return nil
	}

	plan, err := e.plan(ctx, rule, details, log)
	if err != nil {
		return fmt.Errorf("preparing entry: %w", err)
	}
	log = log.WithFields(logrus.Fields{
		"side":     plan.side,
		"price":    plan.price,
		"stop":     plan.stop,
		"quantity": plan.quantity,
	})

	parent, err := e.placeOrder(ctx, log, "place entry order", details.Contract, broker.OrderSpec{
		ClientRef:  entryRef(w),
		Side:       plan.side,
		Type:       broker.OrderTypeLimit,
		Quantity:   plan.quantity,
		LimitPrice: plan.price,
		TIF:        broker.TIFGoodTillCancel,
		Transmit:   false,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEntryOrderFailed, err)
	}
	log = log.WithField("order_id", parent.OrderID)

	child, err := e.placeOrder(ctx, log, "place stop order", details.Contract, broker.OrderSpec{
		ClientRef: stopRef(w),
		Side:      plan.side.Opposite(),
		Type:      broker.OrderTypeStop,
		Quantity:  plan.quantity,
		StopPrice: plan.stop,
		ParentID:  parent.OrderID,
		TIF:       broker.TIFGoodTillCancel,
		Transmit:  true,
	})
	if err != nil {
		return e.compensate(ctx, now, w, parent.OrderID, err, log)
	}

	w.EntryOrderID = parent.OrderID
	w.StopOrderID = child.OrderID
	if err := w.TransitionTo(models.StatusOpen, models.ConditionBracketPlaced, now); err != nil {
		return err
	}
	if err := e.store.UpdateWindow(ctx, w); err != nil {
		// The bracket is live and protected but the window does not know it;
		// a later pass would enter again.
		e.raise(ctx, w, log, "Bracket placed but not recorded",
			fmt.Sprintf("entry %s / stop %s are live but saving the window failed: %v", parent.OrderID, child.OrderID, err))
		return fmt.Errorf("saving window after entry: %w", err)
	}
	log.WithField("stop_order_id", child.OrderID).Info("Bracket placed")
	return nil
}

// Bracket legs carry refs derived from the window so a bracket whose window
// update was lost can be found again at the venue.
func entryRef(w *models.TradingWindow) string { return w.ID + "-entry" }
func stopRef(w *models.TradingWindow) string  { return w.ID + "-stop" }

// adopt records a bracket this window already sent, found among working
// orders by client ref, instead of sending a second one.
func (e *Engine) adopt(ctx context.Context, now time.Time, w *models.TradingWindow, log logrus.FieldLogger) (bool, error) {
	open, err := retry.Do(ctx, e.cfg.OrderRetry, log, "list open orders", e.gateway.OpenOrders)
	if err != nil {
		return false, err
	}
	entry, hasEntry := lo.Find(open, func(o broker.OpenOrder) bool { return o.ClientRef == entryRef(w) })
	stop, hasStop := lo.Find(open, func(o broker.OpenOrder) bool { return o.ClientRef == stopRef(w) })
	if !hasEntry && !hasStop {
		return false, nil
	}

	switch {
	case hasEntry:
		w.EntryOrderID = entry.OrderID
	default:
		w.EntryOrderID = stop.ParentID
	}
	if !hasStop {
		// A held parent with no stop is the compensation case.
		e.metrics.UnprotectedEntry()
		w.Alert = fmt.Sprintf("entry order %s found working without a protective stop", w.EntryOrderID)
		w.UpdatedAt = now.UTC()
		if err := e.store.UpdateWindow(ctx, w); err != nil {
			log.WithError(err).Error("Failed to save window alert")
		}
		e.raise(ctx, w, log, "Unprotected entry", w.Alert)
		return false, fmt.Errorf("%w: order %s", ErrUnprotectedEntry, w.EntryOrderID)
	}

	w.StopOrderID = stop.OrderID
	if err := w.TransitionTo(models.StatusOpen, models.ConditionBracketPlaced, now); err != nil {
		return false, err
	}
	if err := e.store.UpdateWindow(ctx, w); err != nil {
		return false, fmt.Errorf("saving adopted bracket: %w", err)
	}
	log.WithFields(logrus.Fields{
		"order_id":      w.EntryOrderID,
		"stop_order_id": w.StopOrderID,
	}).Warn("Found a bracket already sent for this window, recorded it")
	return true, nil
}

func (e *Engine) placeOrder(
	ctx context.Context,
	log logrus.FieldLogger,
	op string,
	contract broker.Contract,
	spec broker.OrderSpec,
) (*broker.OrderHandle, error) {
	return retry.Do(ctx, e.cfg.OrderRetry, log, op, func(ctx context.Context) (*broker.OrderHandle, error) {
		h, err := e.gateway.PlaceOrder(ctx, contract, spec)
		if err == nil && (h == nil || h.OrderID == "") {
			return nil, retry.ErrEmptyResult
		}
		return h, err
	})
}

// compensate cancels an entry whose stop could not be attached. If the cancel
// cannot be confirmed the window keeps the entry id and an operator alert, and
// is never entered again.
func (e *Engine) compensate(
	ctx context.Context,
	now time.Time,
	w *models.TradingWindow,
	entryID string,
	stopErr error,
	log logrus.FieldLogger,
) error {
	log.WithError(stopErr).Error("Protective stop could not be placed, canceling entry")

	confirmed, cancelErr := e.cancelAndConfirm(ctx, entryID, log)
	if confirmed {
		log.Warn("Entry canceled, window stays AWAITING")
		return fmt.Errorf("%w: %w", ErrStopOrderFailed, stopErr)
	}

	e.metrics.UnprotectedEntry()
	w.EntryOrderID = entryID
	w.Alert = fmt.Sprintf("entry order %s may be live without a protective stop (stop: %v; cancel: %v)",
		entryID, stopErr, cancelErr)
	w.UpdatedAt = now.UTC()
	if err := e.store.UpdateWindow(ctx, w); err != nil {
		log.WithError(err).Error("Failed to save window alert")
	}
	e.raise(ctx, w, log, "Unprotected entry", w.Alert)
	return fmt.Errorf("%w: order %s", ErrUnprotectedEntry, entryID)
}

// cancelAndConfirm cancels orderID and checks it no longer works at the venue.
func (e *Engine) cancelAndConfirm(ctx context.Context, orderID string, log logrus.FieldLogger) (bool, error) {
	_, err := retry.Do(ctx, e.cfg.OrderRetry, log, "cancel entry order", func(ctx context.Context) (struct{}, error) {
		err := e.gateway.CancelOrder(ctx, orderID)
		if errors.Is(err, broker.ErrOrderNotCancelable) || errors.Is(err, broker.ErrOrderNotFound) {
			return struct{}{}, retry.Permanent(err)
		}
		return struct{}{}, err
	})
	if err != nil && !errors.Is(err, broker.ErrOrderNotFound) {
		return false, err
	}

	open, err := retry.Do(ctx, e.cfg.OrderRetry, log, "list open orders", e.gateway.OpenOrders)
	if err != nil {
		return false, fmt.Errorf("confirming cancel: %w", err)
	}
	if lo.ContainsBy(open, func(o broker.OpenOrder) bool { return o.OrderID == orderID }) {
		return false, fmt.Errorf("order %s still working after cancel", orderID)
	}
	return true, nil
}

// raise logs an operator alert and forwards it to the notifier.
func (e *Engine) raise(ctx context.Context, w *models.TradingWindow, log logrus.FieldLogger, title, msg string) {
	log.WithField("alert", true).Errorf("ALERT: %s: %s", title, msg)
	a := alert.Alert{
		Title:   title,
		Message: msg,
		Fields: map[string]string{
			"window_id": w.ID,
			"rule_id":   w.RuleID,
		},
	}
	if err := e.notifier.Notify(ctx, a); err != nil {
		log.WithError(err).Error("Failed to deliver alert")
	}
}
