// Package schedule turns recurring seasonal rules into dated trading windows.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/seasonal_trader/internal/metrics"
	"github.com/eddiefleurent/seasonal_trader/internal/models"
	"github.com/eddiefleurent/seasonal_trader/internal/storage"
)

// Store is the persistence the materializer needs.
type Store interface {
	ListRules(ctx context.Context) ([]models.SeasonalRule, error)
	ListWindows(ctx context.Context, filter storage.WindowFilter) ([]models.TradingWindow, error)
	CreateWindow(ctx context.Context, w *models.TradingWindow) error
	UpdateWindow(ctx context.Context, w *models.TradingWindow) error
}

// Result aggregates one reconcile pass.
type Result struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// Materializer creates and maintains trading windows.
type Materializer struct {
	store   Store
	loc     *time.Location
	logger  logrus.FieldLogger
	metrics *metrics.Recorder
}

// NewMaterializer creates a materializer computing instants in loc, which
// should be a fixed offset zone so window times do not shift with DST.
func NewMaterializer(store Store, loc *time.Location, logger logrus.FieldLogger, rec *metrics.Recorder) *Materializer {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Materializer{
		store:   store,
		loc:     loc,
		logger:  logger,
		metrics: rec,
	}
}

// Reconcile brings every rule's windows up to date as of now. A failing rule is
// logged and counted; only failing to list rules aborts the pass.
func (m *Materializer) Reconcile(ctx context.Context, now time.Time) (res Result, err error) {
	started := time.Now()
	defer func() { m.metrics.ObservePass(metrics.PassMaterialize, started, err) }()

	rules, err := m.store.ListRules(ctx)
	if err != nil {
		return res, fmt.Errorf("listing rules: %w", err)
	}

	for i := range rules {
		rule := &rules[i]
		log := m.logger.WithFields(logrus.Fields{
			"rule_id": rule.ID,
			"magic":   rule.MagicNumber,
			"symbol":  rule.Symbol,
		})

		created, updated, err := m.reconcileRule(ctx, rule, now, log)
		res.Created += created
		res.Updated += updated
		if err != nil {
			res.Failed++
			m.metrics.RuleFailed()
			log.WithError(err).Error("Failed to materialize rule")
			continue
		}
	}

	m.metrics.WindowsCreated(res.Created)
	m.metrics.WindowsUpdated(res.Updated)
	m.logger.WithFields(logrus.Fields{
		"created": res.Created,
		"updated": res.Updated,
		"failed":  res.Failed,
	}).Info("Materialization pass complete")
	return res, nil
}

func (m *Materializer) reconcileRule(
	ctx context.Context,
	rule *models.SeasonalRule,
	now time.Time,
	log logrus.FieldLogger,
) (created, updated int, err error) {
	future, err := m.store.ListWindows(ctx, storage.WindowFilter{
		RuleID:     rule.ID,
		EntryAfter: now,
		Statuses:   []models.WindowStatus{models.StatusAwaiting, models.StatusOpen},
	})
	if err != nil {
		return 0, 0, fmt.Errorf("listing future windows: %w", err)
	}

	if len(future) > 0 {
		for i := range future {
			changed, err := m.resync(ctx, rule, &future[i], now)
			if err != nil {
				return 0, updated, fmt.Errorf("window %s: %w", future[i].ID, err)
			}
			if changed {
				updated++
				log.WithFields(logrus.Fields{
					"window_id": future[i].ID,
					"entry_at":  future[i].EntryAt,
					"exit_at":   future[i].ExitAt,
				}).Info("Rescheduled window after rule change")
			}
		}
		return 0, updated, nil
	}

	ok, err := m.create(ctx, rule, now, log)
	if err != nil {
		return 0, 0, err
	}
	if ok {
		created = 1
	}
	return created, 0, nil
}

// resync recomputes a window's instants from the rule, keeping the window's
// own entry and exit years.
func (m *Materializer) resync(ctx context.Context, rule *models.SeasonalRule, w *models.TradingWindow, now time.Time) (bool, error) {
	entry, exit, err := Bounds(rule, w.EntryAt.In(m.loc).Year(), w.ExitAt.In(m.loc).Year(), m.loc)
	if err != nil {
		return false, err
	}
	if entry.Equal(w.EntryAt) && exit.Equal(w.ExitAt) {
		return false, nil
	}

	w.EntryAt = entry
	w.ExitAt = exit
	w.UpdatedAt = now.UTC()
	if err := m.store.UpdateWindow(ctx, w); err != nil {
		return false, fmt.Errorf("updating: %w", err)
	}
	return true, nil
}

func (m *Materializer) create(ctx context.Context, rule *models.SeasonalRule, now time.Time, log logrus.FieldLogger) (bool, error) {
	year := now.In(m.loc).Year()
	entry, exit, err := Bounds(rule, year, year, m.loc)
	if err != nil {
		return false, err
	}
	if !entry.After(now) {
		log.WithField("entry_at", entry).Debug("Entry already passed this year, not back-filling")
		return false, nil
	}

	from, before := yearBounds(year, m.loc)
	existing, err := m.store.ListWindows(ctx, storage.WindowFilter{
		RuleID:        rule.ID,
		CreatedFrom:   from,
		CreatedBefore: before,
	})
	if err != nil {
		return false, fmt.Errorf("checking existing windows: %w", err)
	}
	if len(existing) > 0 {
		log.WithField("window_id", existing[0].ID).Debug("Window already created this year")
		return false, nil
	}

	w := models.NewTradingWindow("", rule.ID, entry, exit, now)
	if err := m.store.CreateWindow(ctx, w); err != nil {
		return false, fmt.Errorf("creating window: %w", err)
	}
	log.WithFields(logrus.Fields{
		"window_id": w.ID,
		"entry_at":  w.EntryAt,
		"exit_at":   w.ExitAt,
	}).Info("Created trading window")
	return true, nil
}
