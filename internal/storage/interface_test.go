package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/seasonal_trader/internal/models"
)

// TestInterface runs the shared contract against every backend
func TestInterface(t *testing.T) {
	t.Run("MemoryStorage", func(t *testing.T) {
		testInterface(t, NewMemoryStorage())
	})

	t.Run("JSONStorage", func(t *testing.T) {
		s, err := NewJSONStorage(filepath.Join(t.TempDir(), "data.json"))
		require.NoError(t, err)
		testInterface(t, s)
	})

	t.Run("SQLiteStorage", func(t *testing.T) {
		s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "seasonal.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		testInterface(t, s)
	})
}

func testRule(magic int64) *models.SeasonalRule {
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
		StopLoss:     decimal.RequireFromString("2.5"),
		StopLossType: models.StopLossPercentage,
		RiskPercent:  decimal.NewFromInt(1),
	}
}

func testInterface(t *testing.T, s Interface) {
	ctx := context.Background()
	base := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

	// Symbols
	require.NoError(t, s.SaveSymbol(ctx, &models.Symbol{Ticker: "ZW", Exchange: "CBOT", Currency: "USD"}))
	require.NoError(t, s.SaveSymbol(ctx, &models.Symbol{Ticker: "MES", Exchange: "CME", Currency: "USD"}))
	require.NoError(t, s.SaveSymbol(ctx, &models.Symbol{Ticker: "MES", Name: "Micro E-mini", Exchange: "CME", Currency: "USD"}))
	assert.Error(t, s.SaveSymbol(ctx, &models.Symbol{Ticker: "NOEX"}))

	syms, err := s.ListSymbols(ctx)
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.Equal(t, "MES", syms[0].Ticker)
	assert.Equal(t, "Micro E-mini", syms[0].Name)

	_, err = s.GetSymbol(ctx, "NQ")
	assert.True(t, errors.Is(err, ErrNotFound))

	// Rules upsert by magic number
	r1 := testRule(2002)
	require.NoError(t, s.SaveRule(ctx, r1))
	require.NotEmpty(t, r1.ID)

	r0 := testRule(1001)
	r0.Direction = models.DirectionShort
	require.NoError(t, s.SaveRule(ctx, r0))

	again := testRule(2002)
	again.RiskPercent = decimal.NewFromInt(3)
	require.NoError(t, s.SaveRule(ctx, again))
	assert.Equal(t, r1.ID, again.ID)

	bad := testRule(3003)
	bad.StopLoss = decimal.Zero
	assert.Error(t, s.SaveRule(ctx, bad))

	rules, err := s.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, int64(1001), rules[0].MagicNumber)
	assert.Equal(t, models.DirectionShort, rules[0].Direction)
	assert.True(t, rules[1].RiskPercent.Equal(decimal.NewFromInt(3)))
	assert.True(t, rules[1].StopLoss.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, models.MustClockTime("09:30"), rules[1].OpenTime)

	// Windows
	early := models.NewTradingWindow("", r1.ID, base.Add(48*time.Hour), base.Add(96*time.Hour), base)
	late := models.NewTradingWindow("", r1.ID, base.Add(72*time.Hour), base.Add(120*time.Hour), base.Add(time.Hour))
	other := models.NewTradingWindow("", r0.ID, base.Add(-time.Hour), base.Add(time.Hour), base.AddDate(-1, 0, 0))
	require.NoError(t, s.CreateWindow(ctx, late))
	require.NoError(t, s.CreateWindow(ctx, early))
	require.NoError(t, s.CreateWindow(ctx, other))
	require.NotEmpty(t, early.ID)

	dup := early.Clone()
	assert.True(t, errors.Is(s.CreateWindow(ctx, dup), ErrDuplicate))

	all, err := s.ListWindows(ctx, WindowFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, other.ID, all[0].ID, "ordered by entry")
	assert.Equal(t, early.ID, all[1].ID)

	byRule, err := s.ListWindows(ctx, WindowFilter{RuleID: r1.ID})
	require.NoError(t, err)
	assert.Len(t, byRule, 2)

	// EntryAfter is strict
	future, err := s.ListWindows(ctx, WindowFilter{EntryAfter: early.EntryAt})
	require.NoError(t, err)
	require.Len(t, future, 1)
	assert.Equal(t, late.ID, future[0].ID)

	thisYear, err := s.ListWindows(ctx, WindowFilter{
		CreatedFrom:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		CreatedBefore: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Len(t, thisYear, 2)

	// Status transitions persist
	got, err := s.GetWindow(ctx, early.ID)
	require.NoError(t, err)
	assert.True(t, got.EntryAt.Equal(early.EntryAt))
	assert.Equal(t, models.StatusAwaiting, got.Status)

	got.EntryOrderID = "17"
	got.StopOrderID = "18"
	require.NoError(t, got.TransitionTo(models.StatusOpen, models.ConditionBracketPlaced, base.Add(50*time.Hour)))
	require.NoError(t, s.UpdateWindow(ctx, got))

	reread, err := s.GetWindow(ctx, early.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, reread.Status)
	assert.Equal(t, "17", reread.EntryOrderID)
	assert.Equal(t, "18", reread.StopOrderID)
	assert.True(t, reread.UpdatedAt.Equal(base.Add(50*time.Hour)))

	open, err := s.ListWindows(ctx, WindowFilter{Statuses: []models.WindowStatus{models.StatusOpen}})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, early.ID, open[0].ID)

	notOpen, err := s.ListWindows(ctx, WindowFilter{ExcludeStatuses: []models.WindowStatus{models.StatusOpen}})
	require.NoError(t, err)
	assert.Len(t, notOpen, 2)

	// Returned copies do not alias storage
	reread.Alert = "mutated"
	fresh, err := s.GetWindow(ctx, early.ID)
	require.NoError(t, err)
	assert.Empty(t, fresh.Alert)

	missing := models.NewTradingWindow("nope", r1.ID, base, base.Add(time.Hour), base)
	assert.True(t, errors.Is(s.UpdateWindow(ctx, missing), ErrNotFound))
	_, err = s.GetWindow(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	invalid := fresh.Clone()
	invalid.ExitAt = invalid.EntryAt
	assert.Error(t, s.UpdateWindow(ctx, invalid))

	assert.NoError(t, s.Close())
}

func TestNewStorage(t *testing.T) {
	dir := t.TempDir()

	s, err := NewStorage(DriverMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	s, err = NewStorage(DriverJSON, filepath.Join(dir, "a.json"))
	require.NoError(t, err)
	assert.IsType(t, &JSONStorage{}, s)

	s, err = NewStorage("", filepath.Join(dir, "a.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStorage{}, s)
	require.NoError(t, s.Close())

	_, err = NewStorage("postgres", "")
	assert.Error(t, err)
}

func TestWindowFilter_Matches(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	w := models.NewTradingWindow("w", "r", now, now.Add(time.Hour), now)

	assert.True(t, WindowFilter{}.Matches(w))
	assert.False(t, WindowFilter{RuleID: "x"}.Matches(w))
	assert.False(t, WindowFilter{EntryAfter: now}.Matches(w))
	assert.True(t, WindowFilter{EntryAfter: now.Add(-time.Second)}.Matches(w))
	assert.True(t, WindowFilter{CreatedFrom: now}.Matches(w))
	assert.False(t, WindowFilter{CreatedBefore: now}.Matches(w))
	assert.False(t, WindowFilter{ExcludeStatuses: []models.WindowStatus{models.StatusAwaiting}}.Matches(w))
	assert.True(t, WindowFilter{Statuses: []models.WindowStatus{models.StatusAwaiting, models.StatusOpen}}.Matches(w))
}
