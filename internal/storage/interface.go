// Package storage persists symbols, seasonal rules and trading windows.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/eddiefleurent/seasonal_trader/internal/models"
)

// Interface defines the contract for rule and window persistence.
//
// Implementations must be safe for concurrent use. Each window write is atomic
// on its own; no cross-window transactions are offered.
type Interface interface {
	// Instruments
	ListSymbols(ctx context.Context) ([]models.Symbol, error)
	GetSymbol(ctx context.Context, ticker string) (*models.Symbol, error)
	SaveSymbol(ctx context.Context, sym *models.Symbol) error

	// Rules. SaveRule upserts by magic number and assigns an ID when missing.
	ListRules(ctx context.Context) ([]models.SeasonalRule, error)
	SaveRule(ctx context.Context, rule *models.SeasonalRule) error

	// Windows
	ListWindows(ctx context.Context, filter WindowFilter) ([]models.TradingWindow, error)
	GetWindow(ctx context.Context, id string) (*models.TradingWindow, error)
	CreateWindow(ctx context.Context, w *models.TradingWindow) error
	UpdateWindow(ctx context.Context, w *models.TradingWindow) error

	Close() error
}

// WindowFilter narrows ListWindows. Zero fields do not filter.
type WindowFilter struct {
	RuleID string
	// EntryAfter keeps windows whose entry is strictly after the instant.
	EntryAfter time.Time
	// CreatedFrom (inclusive) and CreatedBefore (exclusive) bound the creation timestamp.
	CreatedFrom   time.Time
	CreatedBefore time.Time
	Statuses      []models.WindowStatus
	// ExcludeStatuses drops windows in any of these statuses.
	ExcludeStatuses []models.WindowStatus
}

// Matches reports whether w passes the filter
func (f WindowFilter) Matches(w *models.TradingWindow) bool {
	if f.RuleID != "" && w.RuleID != f.RuleID {
		return false
	}
	if !f.EntryAfter.IsZero() && !w.EntryAt.After(f.EntryAfter) {
		return false
	}
	if !f.CreatedFrom.IsZero() && w.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	if !f.CreatedBefore.IsZero() && !w.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, w.Status) {
		return false
	}
	return !lo.Contains(f.ExcludeStatuses, w.Status)
}

// Storage drivers
const (
	DriverSQLite = "sqlite"
	DriverJSON   = "json"
	DriverMemory = "memory"
)

// NewStorage creates the storage backend named by driver
func NewStorage(driver, path string) (Interface, error) {
	switch driver {
	case DriverSQLite, "":
		return NewSQLiteStorage(path)
	case DriverJSON:
		return NewJSONStorage(path)
	case DriverMemory:
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// Ensure implementations satisfy Interface
var (
	_ Interface = (*SQLiteStorage)(nil)
	_ Interface = (*JSONStorage)(nil)
	_ Interface = (*MemoryStorage)(nil)
)
