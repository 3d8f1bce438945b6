// Package execution drives trading windows through entry and closeout
// against a broker gateway.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/seasonal_trader/internal/alert"
	"github.com/eddiefleurent/seasonal_trader/internal/broker"
	"github.com/eddiefleurent/seasonal_trader/internal/metrics"
	"github.com/eddiefleurent/seasonal_trader/internal/models"
	"github.com/eddiefleurent/seasonal_trader/internal/retry"
	"github.com/eddiefleurent/seasonal_trader/internal/storage"
	"github.com/eddiefleurent/seasonal_trader/internal/tradinghours"
)

var (
	// ErrEntryOrderFailed means the bracket parent could not be placed.
	ErrEntryOrderFailed = errors.New("entry order failed")
	// ErrStopOrderFailed means the protective stop could not be attached and the
	// entry was canceled.
	ErrStopOrderFailed = errors.New("stop order failed")
	// ErrUnprotectedEntry means the stop could not be attached and canceling the
	// entry could not be confirmed. The window carries an operator alert.
	ErrUnprotectedEntry = errors.New("entry order may be live without a protective stop")
	// ErrCloseoutIncomplete means the position was still open after the flattening order.
	ErrCloseoutIncomplete = errors.New("closeout incomplete")
	// ErrUnknownRule is returned for windows whose rule or symbol no longer exists.
	ErrUnknownRule = errors.New("unknown rule or symbol")
)

// Store is the persistence the engine needs.
type Store interface {
	ListSymbols(ctx context.Context) ([]models.Symbol, error)
	ListRules(ctx context.Context) ([]models.SeasonalRule, error)
	ListWindows(ctx context.Context, filter storage.WindowFilter) ([]models.TradingWindow, error)
	UpdateWindow(ctx context.Context, w *models.TradingWindow) error
}

// Config holds retry and timing parameters.
type Config struct {
	ContractRetry retry.Policy
	DataRetry     retry.Policy
	OrderRetry    retry.Policy
	SettleDelay   time.Duration
	BarDuration   string
	BarSize       string
}

// DefaultConfig mirrors the venue tolerances the engine was tuned against.
func DefaultConfig() Config {
	contract, data := retry.DefaultPolicy, retry.DefaultPolicy
	contract.CallTimeout = 15 * time.Second
	data.CallTimeout = 30 * time.Second
	return Config{
		ContractRetry: contract,
		DataRetry:     data,
		OrderRetry:    retry.DefaultPolicy,
		SettleDelay:   5 * time.Second,
		BarDuration:   "1 D",
		BarSize:       "1 min",
	}
}

// PassResult counts what happened to each window in one pass.
type PassResult struct {
	Windows     int `json:"windows"`
	Waiting     int `json:"waiting"`
	Entered     int `json:"entered"`
	Deferred    int `json:"deferred"`
	Skipped     int `json:"skipped"`
	Closed      int `json:"closed"`
	Failed      int `json:"failed"`
	Unprotected int `json:"unprotected"`
}

type outcome int

const (
	outcomeWaiting outcome = iota
	outcomeEntered
	outcomeDeferred
	outcomeSkipped
	outcomeClosed
	outcomeFailed
	outcomeUnprotected
)

func (r *PassResult) add(o outcome) {
	r.Windows++
	switch o {
	case outcomeWaiting:
		r.Waiting++
	case outcomeEntered:
		r.Entered++
	case outcomeDeferred:
		r.Deferred++
	case outcomeSkipped:
		r.Skipped++
	case outcomeClosed:
		r.Closed++
	case outcomeFailed:
		r.Failed++
	case outcomeUnprotected:
		r.Unprotected++
	}
}

// Engine runs execution passes. Passes must not overlap; the gateway session
// is driven from one goroutine.
type Engine struct {
	store    Store
	gateway  broker.Gateway
	notifier alert.Notifier
	cfg      Config
	logger   logrus.FieldLogger
	metrics  *metrics.Recorder

	sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine creates an engine. A nil notifier logs alerts only.
func NewEngine(
	store Store,
	gateway broker.Gateway,
	notifier alert.Notifier,
	cfg Config,
	logger logrus.FieldLogger,
	rec *metrics.Recorder,
) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if notifier == nil {
		notifier = alert.NewLogNotifier(logger)
	}
	return &Engine{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		metrics:  rec,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pass carries state shared by every window in one pass.
type pass struct {
	now       time.Time
	rules     map[string]*models.SeasonalRule
	symbols   map[string]*models.Symbol
	contracts map[string]*broker.ContractDetails
	failed    map[string]error
}

// RunPass evaluates every non-terminal window against the venue clock.
// Failures are contained per window; an error is returned only when the pass
// cannot start.
func (e *Engine) RunPass(ctx context.Context) (res PassResult, err error) {
	started := time.Now()
	defer func() { e.metrics.ObservePass(metrics.PassExecute, started, err) }()

	now, err := e.gateway.CurrentTime(ctx)
	if err != nil {
		return res, fmt.Errorf("reading gateway time: %w", err)
	}
	p, err := e.loadPass(ctx, now)
	if err != nil {
		return res, err
	}

	windows, err := e.store.ListWindows(ctx, storage.WindowFilter{
		ExcludeStatuses: models.TerminalStatuses(),
	})
	if err != nil {
		return res, fmt.Errorf("listing windows: %w", err)
	}

	for i := range windows {
		if ctx.Err() != nil {
			break
		}
		res.add(e.processWindow(ctx, p, &windows[i]))
	}

	e.logger.WithFields(logrus.Fields{
		"now":         now,
		"windows":     res.Windows,
		"entered":     res.Entered,
		"deferred":    res.Deferred,
		"closed":      res.Closed,
		"skipped":     res.Skipped,
		"failed":      res.Failed,
		"unprotected": res.Unprotected,
	}).Info("Execution pass complete")
	return res, nil
}

func (e *Engine) loadPass(ctx context.Context, now time.Time) (*pass, error) {
	rules, err := e.store.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	symbols, err := e.store.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing symbols: %w", err)
	}

	p := &pass{
		now:       now,
		rules:     make(map[string]*models.SeasonalRule, len(rules)),
		symbols:   make(map[string]*models.Symbol, len(symbols)),
		contracts: make(map[string]*broker.ContractDetails),
		failed:    make(map[string]error),
	}
	for i := range rules {
		p.rules[rules[i].ID] = &rules[i]
	}
	for i := range symbols {
		p.symbols[symbols[i].Ticker] = &symbols[i]
	}
	return p, nil
}

func (e *Engine) processWindow(ctx context.Context, p *pass, w *models.TradingWindow) outcome {
	log := e.logger.WithFields(logrus.Fields{
		"window_id": w.ID,
		"rule_id":   w.RuleID,
		"status":    w.Status,
	})

	rule, ok := p.rules[w.RuleID]
	if !ok {
		log.WithError(ErrUnknownRule).Error("Window references a missing rule")
		return outcomeFailed
	}
	sym, ok := p.symbols[rule.Symbol]
	if !ok {
		log.WithError(ErrUnknownRule).WithField("symbol", rule.Symbol).Error("Rule references a missing symbol")
		return outcomeFailed
	}
	log = log.WithFields(logrus.Fields{"symbol": sym.Ticker, "magic": rule.MagicNumber})

	exitDue := !p.now.Before(w.ExitAt)
	entryDue := w.Status == models.StatusAwaiting && !w.HasEntry() && !w.HasAlert() &&
		!p.now.Before(w.EntryAt) && !exitDue
	if !entryDue && !exitDue {
		return outcomeWaiting
	}

	details, err := e.resolve(ctx, p, sym, log)
	if err != nil {
		e.metrics.ResolveFailed()
		log.WithError(err).Warn("Contract unavailable, skipping window this pass")
		return outcomeSkipped
	}

	if entryDue {
		return e.handleEntry(ctx, p.now, w, rule, details, log)
	}
	return e.handleExit(ctx, p.now, w, sym, details, log)
}

// resolve looks up the tradable contract once per symbol per pass. A failed
// lookup is remembered so later windows on the same symbol do not retry it.
func (e *Engine) resolve(ctx context.Context, p *pass, sym *models.Symbol, log logrus.FieldLogger) (*broker.ContractDetails, error) {
	key := sym.Ticker + "@" + sym.Exchange
	if d, ok := p.contracts[key]; ok {
		return d, nil
	}
	if err, ok := p.failed[key]; ok {
		return nil, err
	}

	d, err := retry.Do(ctx, e.cfg.ContractRetry, log, "resolve contract", func(ctx context.Context) (*broker.ContractDetails, error) {
		d, err := e.gateway.ResolveContract(ctx, sym.Ticker, sym.Exchange)
		if err == nil && d == nil {
			return nil, retry.ErrEmptyResult
		}
		return d, err
	})
	if err != nil {
		p.failed[key] = err
		return nil, err
	}
	p.contracts[key] = d
	return d, nil
}

func (e *Engine) handleEntry(
	ctx context.Context,
	now time.Time,
	w *models.TradingWindow,
	rule *models.SeasonalRule,
	details *broker.ContractDetails,
	log logrus.FieldLogger,
) outcome {
	sessions, err := tradinghours.Parse(details.TradingHours, details.TimeZoneID, log)
	if err != nil {
		e.metrics.Entry(metrics.ResultError)
		log.WithError(err).Error("Cannot read trading hours")
		return outcomeFailed
	}
	if !tradinghours.OpenAt(sessions, now) {
		e.metrics.Entry(metrics.ResultDeferred)
		log.Info("Market closed at entry time, deferring")
		return outcomeDeferred
	}

	err = e.placeBracket(ctx, now, w, rule, details, log)
	switch {
	case err == nil:
		e.metrics.Entry(metrics.ResultSuccess)
		return outcomeEntered
	case errors.Is(err, ErrUnprotectedEntry):
		e.metrics.Entry(metrics.ResultError)
		return outcomeUnprotected
	default:
		e.metrics.Entry(metrics.ResultError)
		log.WithError(err).Warn("Entry failed, will retry next pass")
		return outcomeFailed
	}
}

func (e *Engine) handleExit(
	ctx context.Context,
	now time.Time,
	w *models.TradingWindow,
	sym *models.Symbol,
	details *broker.ContractDetails,
	log logrus.FieldLogger,
) outcome {
	// The stop must not be able to fill against the flattening order.
	e.cancelResting(ctx, log, w.StopOrderID)

	if err := e.closeout(ctx, sym, details, log); err != nil {
		e.metrics.Closeout(metrics.ResultError)
		log.WithError(err).Error("Closeout failed, window stays open for the next pass")
		return outcomeFailed
	}

	if err := w.TransitionTo(models.StatusClose, models.ConditionExitReached, now); err != nil {
		log.WithError(err).Error("Cannot close window")
		return outcomeFailed
	}
	if err := e.store.UpdateWindow(ctx, w); err != nil {
		e.metrics.Closeout(metrics.ResultError)
		log.WithError(err).Error("Position closed but window state not saved")
		return outcomeFailed
	}
	e.metrics.Closeout(metrics.ResultSuccess)
	log.Info("Window closed")

	e.cancelResting(ctx, log, w.StopOrderID, w.EntryOrderID)
	return outcomeClosed
}
