package storage

import (
	"context"
	"sync"

	"github.com/eddiefleurent/seasonal_trader/internal/models"
)

// MemoryStorage keeps records in process memory. It supports error injection
// so callers can exercise persistence failures.
type MemoryStorage struct {
	mu   sync.Mutex
	data *dataset

	listError        error
	saveError        error
	updateError      error
	createCallCount  int
	updateCallCount  int
	failUpdateForIDs map[string]error
}

// NewMemoryStorage creates an empty store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		data:             newDataset(),
		failUpdateForIDs: make(map[string]error),
	}
}

// ListSymbols returns all symbols ordered by ticker
func (m *MemoryStorage) ListSymbols(ctx context.Context) ([]models.Symbol, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listError != nil {
		return nil, m.listError
	}
	return m.data.listSymbols(), nil
}

// GetSymbol returns one symbol by ticker
func (m *MemoryStorage) GetSymbol(ctx context.Context, ticker string) (*models.Symbol, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.getSymbol(ticker)
}

// SaveSymbol upserts a symbol
func (m *MemoryStorage) SaveSymbol(ctx context.Context, sym *models.Symbol) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	return m.data.saveSymbol(sym)
}

// ListRules returns all rules ordered by magic number
func (m *MemoryStorage) ListRules(ctx context.Context) ([]models.SeasonalRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listError != nil {
		return nil, m.listError
	}
	return m.data.listRules(), nil
}

// SaveRule upserts a rule
func (m *MemoryStorage) SaveRule(ctx context.Context, rule *models.SeasonalRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	return m.data.saveRule(rule)
}

// ListWindows returns windows matching filter ordered by entry
func (m *MemoryStorage) ListWindows(ctx context.Context, filter WindowFilter) ([]models.TradingWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listError != nil {
		return nil, m.listError
	}
	return m.data.listWindows(filter), nil
}

// GetWindow returns a copy of one window
func (m *MemoryStorage) GetWindow(ctx context.Context, id string) (*models.TradingWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.getWindow(id)
}

// CreateWindow stores a new window
func (m *MemoryStorage) CreateWindow(ctx context.Context, w *models.TradingWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCallCount++
	if m.saveError != nil {
		return m.saveError
	}
	return m.data.createWindow(w)
}

// UpdateWindow replaces an existing window
func (m *MemoryStorage) UpdateWindow(ctx context.Context, w *models.TradingWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCallCount++
	if err, ok := m.failUpdateForIDs[w.ID]; ok {
		return err
	}
	if m.updateError != nil {
		return m.updateError
	}
	return m.data.updateWindow(w)
}

// Close is a no-op
func (m *MemoryStorage) Close() error { return nil }

// Error injection and inspection helpers

// SetListError makes every List* call fail with err
func (m *MemoryStorage) SetListError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listError = err
}

// SetSaveError makes every create/save call fail with err
func (m *MemoryStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// SetUpdateError makes every UpdateWindow call fail with err
func (m *MemoryStorage) SetUpdateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateError = err
}

// FailUpdateFor makes UpdateWindow fail for one window id
func (m *MemoryStorage) FailUpdateFor(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failUpdateForIDs[id] = err
}

// CreateCallCount returns how many times CreateWindow was called
func (m *MemoryStorage) CreateCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCallCount
}

// UpdateCallCount returns how many times UpdateWindow was called
func (m *MemoryStorage) UpdateCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateCallCount
}
