package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/seasonal_trader/internal/metrics"
	"github.com/eddiefleurent/seasonal_trader/internal/models"
	"github.com/eddiefleurent/seasonal_trader/internal/storage"
)

var utcPlusOne = time.FixedZone("UTC+1", 3600)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func winterRule(magic int64) *models.SeasonalRule {
	return &models.SeasonalRule{
		MagicNumber:  magic,
		Symbol:       "MES",
		Direction:    models.DirectionLong,
		EntryMonth:   11,
		EntryDay:     15,
		ExitMonth:    2,
		ExitDay:      10,
		OpenTime:     models.MustClockTime("09:30"),
		CloseTime:    models.MustClockTime("16:00"),
		StopLoss:     decimal.NewFromInt(5),
		StopLossType: models.StopLossPoints,
		RiskPercent:  decimal.NewFromInt(2),
	}
}

func setup(t *testing.T, rules ...*models.SeasonalRule) (*Materializer, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	for _, r := range rules {
		require.NoError(t, store.SaveRule(context.Background(), r))
	}
	return NewMaterializer(store, utcPlusOne, quietLogger(), metrics.New()), store
}

func allWindows(t *testing.T, store storage.Interface) []models.TradingWindow {
	t.Helper()
	ws, err := store.ListWindows(context.Background(), storage.WindowFilter{})
	require.NoError(t, err)
	return ws
}

func TestReconcile_CreatesWindowAcrossYearBoundary(t *testing.T) {
	rule := winterRule(1)
	m, store := setup(t, rule)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	res, err := m.Reconcile(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 1}, res)

	ws := allWindows(t, store)
	require.Len(t, ws, 1)
	w := ws[0]
	assert.Equal(t, rule.ID, w.RuleID)
	assert.Equal(t, models.StatusAwaiting, w.Status)
	assert.True(t, w.EntryAt.Equal(time.Date(2025, 11, 15, 8, 30, 0, 0, time.UTC)), w.EntryAt)
	assert.True(t, w.ExitAt.Equal(time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)), w.ExitAt)
	assert.True(t, w.ExitAt.After(w.EntryAt))
	assert.True(t, w.CreatedAt.Equal(now))
}

func TestReconcile_Idempotent(t *testing.T) {
	m, store := setup(t, winterRule(1), winterRule(2))
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := m.Reconcile(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)

	second, err := m.Reconcile(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, Result{}, second)
	assert.Len(t, allWindows(t, store), 2)
	assert.Equal(t, 0, store.UpdateCallCount())
}

func TestReconcile_RuleEditUpdatesWindowInPlace(t *testing.T) {
	rule := winterRule(1)
	m, store := setup(t, rule)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := m.Reconcile(ctx, now)
	require.NoError(t, err)
	original := allWindows(t, store)[0]

	rule.EntryDay = 20
	rule.CloseTime = models.MustClockTime("15:00")
	require.NoError(t, store.SaveRule(ctx, rule))

	later := now.Add(24 * time.Hour)
	res, err := m.Reconcile(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 1}, res)

	ws := allWindows(t, store)
	require.Len(t, ws, 1, "no duplicate window")
	assert.Equal(t, original.ID, ws[0].ID)
	assert.True(t, ws[0].EntryAt.Equal(time.Date(2025, 11, 20, 8, 30, 0, 0, time.UTC)))
	// Exit keeps its already rolled-over year
	assert.True(t, ws[0].ExitAt.Equal(time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC)))
	assert.True(t, ws[0].UpdatedAt.Equal(later))
}

func TestReconcile_MissedEntryIsNotBackfilled(t *testing.T) {
	m, store := setup(t, winterRule(1))

	res, err := m.Reconcile(context.Background(), time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, allWindows(t, store))
}

func TestReconcile_OneWindowPerRulePerYear(t *testing.T) {
	rule := winterRule(1)
	m, store := setup(t, rule)
	ctx := context.Background()

	_, err := m.Reconcile(ctx, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// After the 2025 entry passed, the rule moves to a later date in the same year.
	rule.EntryMonth = 12
	rule.EntryDay = 1
	require.NoError(t, store.SaveRule(ctx, rule))

	res, err := m.Reconcile(ctx, time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Len(t, allWindows(t, store), 1)

	// The next calendar year gets its own window.
	res, err = m.Reconcile(ctx, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	ws := allWindows(t, store)
	require.Len(t, ws, 2)
	assert.Equal(t, 2026, ws[1].EntryAt.Year())
}

func TestReconcile_IsolatesRuleFailures(t *testing.T) {
	bad := winterRule(1)
	bad.ExitMonth = 2
	bad.ExitDay = 30
	good := winterRule(2)
	m, store := setup(t, bad, good)

	res, err := m.Reconcile(context.Background(), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 1, Failed: 1}, res)

	ws := allWindows(t, store)
	require.Len(t, ws, 1)
	assert.Equal(t, good.ID, ws[0].RuleID)
}

func TestReconcile_UpdateFailureCountsAsRuleFailure(t *testing.T) {
	rule := winterRule(1)
	m, store := setup(t, rule)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := m.Reconcile(ctx, now)
	require.NoError(t, err)
	w := allWindows(t, store)[0]

	rule.EntryDay = 16
	require.NoError(t, store.SaveRule(ctx, rule))
	store.FailUpdateFor(w.ID, errors.New("disk full"))

	res, err := m.Reconcile(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, res)
}

func TestReconcile_ListRulesError(t *testing.T) {
	m, store := setup(t)
	store.SetListError(errors.New("db locked"))

	_, err := m.Reconcile(context.Background(), time.Now())
	assert.Error(t, err)
}

func TestBounds(t *testing.T) {
	rule := winterRule(1)

	entry, exit, err := Bounds(rule, 2025, 2025, utcPlusOne)
	require.NoError(t, err)
	assert.Equal(t, 2025, entry.Year())
	assert.Equal(t, 2026, exit.Year())

	// Same-day exit before entry time also rolls
	rule.ExitMonth, rule.ExitDay = 11, 15
	rule.CloseTime = models.MustClockTime("09:00")
	_, exit, err = Bounds(rule, 2025, 2025, utcPlusOne)
	require.NoError(t, err)
	assert.Equal(t, 2026, exit.Year())

	// Non-wrapping rule stays in the same year
	rule.ExitMonth, rule.ExitDay = 12, 20
	_, exit, err = Bounds(rule, 2025, 2025, utcPlusOne)
	require.NoError(t, err)
	assert.Equal(t, 2025, exit.Year())
}

func TestInstant_RejectsInvalidCalendarDates(t *testing.T) {
	at := models.MustClockTime("10:00")

	_, err := Instant(2025, 2, 29, at, utcPlusOne)
	assert.True(t, errors.Is(err, models.ErrInvalidCalendarDate))

	leap, err := Instant(2024, 2, 29, at, utcPlusOne)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC), leap.UTC())

	_, err = Instant(2025, 4, 31, at, utcPlusOne)
	assert.Error(t, err)
}
