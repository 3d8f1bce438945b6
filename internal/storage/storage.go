package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/eddiefleurent/seasonal_trader/internal/models"
)

// JSONStorage keeps every record in one JSON file, rewritten atomically on each change.
type JSONStorage struct {
	mu       sync.RWMutex
	filepath string
	data     *dataset
}

// NewJSONStorage opens or creates the file at path
func NewJSONStorage(path string) (*JSONStorage, error) {
	s := &JSONStorage{
		filepath: path,
		data:     newDataset(),
	}

	// Load existing data if file exists
	if _, err := os.Stat(path); err == nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("loading storage: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat storage: %w", err)
	}

	return s, nil
}

func (s *JSONStorage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.filepath) // #nosec G304 -- path comes from configuration
	if err != nil {
		return err
	}
	data := newDataset()
	if err := json.Unmarshal(raw, data); err != nil {
		return err
	}
	s.data = data
	return nil
}

// save writes the dataset. Caller holds s.mu.
func (s *JSONStorage) save() error {
	s.data.LastUpdated = time.Now().UTC()

	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.filepath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}

	// Write to temp file first
	tmpFile := s.filepath + ".tmp"
	if err := os.WriteFile(tmpFile, raw, 0o600); err != nil {
		return err
	}

	// Atomic rename
	return os.Rename(tmpFile, s.filepath)
}

// mutate applies fn and persists; the in-memory state is rolled back if either step fails.
func (s *JSONStorage) mutate(fn func(d *dataset) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.data.clone()
	if err := fn(s.data); err != nil {
		s.data = prev
		return err
	}
	if err := s.save(); err != nil {
		s.data = prev
		return fmt.Errorf("saving storage: %w", err)
	}
	return nil
}

// ListSymbols returns all symbols ordered by ticker
func (s *JSONStorage) ListSymbols(ctx context.Context) ([]models.Symbol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.listSymbols(), nil
}

// GetSymbol returns one symbol by ticker
func (s *JSONStorage) GetSymbol(ctx context.Context, ticker string) (*models.Symbol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.getSymbol(ticker)
}

// SaveSymbol upserts a symbol
func (s *JSONStorage) SaveSymbol(ctx context.Context, sym *models.Symbol) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.mutate(func(d *dataset) error { return d.saveSymbol(sym) })
}

// ListRules returns all rules ordered by magic number
func (s *JSONStorage) ListRules(ctx context.Context) ([]models.SeasonalRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.listRules(), nil
}

// SaveRule upserts a rule
func (s *JSONStorage) SaveRule(ctx context.Context, rule *models.SeasonalRule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.mutate(func(d *dataset) error { return d.saveRule(rule) })
}

// ListWindows returns windows matching filter ordered by entry
func (s *JSONStorage) ListWindows(ctx context.Context, filter WindowFilter) ([]models.TradingWindow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.listWindows(filter), nil
}

// GetWindow returns a copy of one window
func (s *JSONStorage) GetWindow(ctx context.Context, id string) (*models.TradingWindow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.getWindow(id)
}

// CreateWindow stores a new window
func (s *JSONStorage) CreateWindow(ctx context.Context, w *models.TradingWindow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.mutate(func(d *dataset) error { return d.createWindow(w) })
}

// UpdateWindow replaces an existing window
func (s *JSONStorage) UpdateWindow(ctx context.Context, w *models.TradingWindow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.mutate(func(d *dataset) error { return d.updateWindow(w) })
}

// Close is a no-op; every change is already on disk
func (s *JSONStorage) Close() error { return nil }
