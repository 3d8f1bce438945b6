package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/eddiefleurent/seasonal_trader/internal/models"
)

// dataset is the in-memory record set shared by the JSON and memory backends.
// It does no locking; callers hold their own mutex.
type dataset struct {
	Symbols     []models.Symbol        `json:"symbols"`
	Rules       []models.SeasonalRule  `json:"rules"`
	Windows     []models.TradingWindow `json:"windows"`
	LastUpdated time.Time              `json:"last_updated"`
}

func newDataset() *dataset {
	return &dataset{
		Symbols: []models.Symbol{},
		Rules:   []models.SeasonalRule{},
		Windows: []models.TradingWindow{},
	}
}

func (d *dataset) clone() *dataset {
	return &dataset{
		Symbols:     append([]models.Symbol(nil), d.Symbols...),
		Rules:       append([]models.SeasonalRule(nil), d.Rules...),
		Windows:     append([]models.TradingWindow(nil), d.Windows...),
		LastUpdated: d.LastUpdated,
	}
}

func (d *dataset) listSymbols() []models.Symbol {
	out := append([]models.Symbol(nil), d.Symbols...)
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

func (d *dataset) getSymbol(ticker string) (*models.Symbol, error) {
	for i := range d.Symbols {
		if d.Symbols[i].Ticker == ticker {
			s := d.Symbols[i]
			return &s, nil
		}
	}
	return nil, fmt.Errorf("symbol %s: %w", ticker, ErrNotFound)
}

func (d *dataset) saveSymbol(sym *models.Symbol) error {
	if err := models.ValidateSymbol(sym); err != nil {
		return err
	}
	for i := range d.Symbols {
		if d.Symbols[i].Ticker == sym.Ticker {
			d.Symbols[i] = *sym
			return nil
		}
	}
	d.Symbols = append(d.Symbols, *sym)
	return nil
}

func (d *dataset) listRules() []models.SeasonalRule {
	out := append([]models.SeasonalRule(nil), d.Rules...)
	sort.Slice(out, func(i, j int) bool { return out[i].MagicNumber < out[j].MagicNumber })
	return out
}

func (d *dataset) saveRule(rule *models.SeasonalRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	for i := range d.Rules {
		if d.Rules[i].MagicNumber == rule.MagicNumber || (rule.ID != "" && d.Rules[i].ID == rule.ID) {
			if rule.ID == "" {
				rule.ID = d.Rules[i].ID
			}
			d.Rules[i] = *rule
			return nil
		}
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	d.Rules = append(d.Rules, *rule)
	return nil
}

func (d *dataset) listWindows(f WindowFilter) []models.TradingWindow {
	out := make([]models.TradingWindow, 0, len(d.Windows))
	for i := range d.Windows {
		if f.Matches(&d.Windows[i]) {
			out = append(out, d.Windows[i])
		}
	}
	sortWindows(out)
	return out
}

func sortWindows(ws []models.TradingWindow) {
	sort.Slice(ws, func(i, j int) bool {
		if !ws[i].EntryAt.Equal(ws[j].EntryAt) {
			return ws[i].EntryAt.Before(ws[j].EntryAt)
		}
		return ws[i].ID < ws[j].ID
	})
}

func (d *dataset) getWindow(id string) (*models.TradingWindow, error) {
	for i := range d.Windows {
		if d.Windows[i].ID == id {
			return d.Windows[i].Clone(), nil
		}
	}
	return nil, fmt.Errorf("window %s: %w", id, ErrNotFound)
}

// prepareNewWindow assigns an ID and timestamps a window about to be created.
func prepareNewWindow(w *models.TradingWindow) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = w.CreatedAt
	}
	return w.Validate()
}

func (d *dataset) createWindow(w *models.TradingWindow) error {
	if err := prepareNewWindow(w); err != nil {
		return err
	}
	for i := range d.Windows {
		if d.Windows[i].ID == w.ID {
			return fmt.Errorf("window %s: %w", w.ID, ErrDuplicate)
		}
	}
	d.Windows = append(d.Windows, *w)
	return nil
}

func (d *dataset) updateWindow(w *models.TradingWindow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	for i := range d.Windows {
		if d.Windows[i].ID == w.ID {
			d.Windows[i] = *w
			return nil
		}
	}
	return fmt.Errorf("window %s: %w", w.ID, ErrNotFound)
}
