package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/seasonal_trader/internal/models"
)

// Schema is applied on open. Instants are unix nanoseconds, UTC.
const Schema = `
CREATE TABLE IF NOT EXISTS symbols (
	ticker   TEXT PRIMARY KEY,
	name     TEXT NOT NULL DEFAULT '',
	exchange TEXT NOT NULL,
	currency TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS rules (
	id             TEXT PRIMARY KEY,
	magic_number   INTEGER NOT NULL UNIQUE,
	symbol         TEXT NOT NULL,
	direction      TEXT NOT NULL,
	entry_month    INTEGER NOT NULL,
	entry_day      INTEGER NOT NULL,
	exit_month     INTEGER NOT NULL,
	exit_day       INTEGER NOT NULL,
	open_time      TEXT NOT NULL,
	close_time     TEXT NOT NULL,
	stop_loss      TEXT NOT NULL,
	stop_loss_type TEXT NOT NULL,
	risk_percent   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS windows (
	id             TEXT PRIMARY KEY,
	rule_id        TEXT NOT NULL,
	entry_at       INTEGER NOT NULL,
	exit_at        INTEGER NOT NULL,
	status         TEXT NOT NULL,
	entry_order_id TEXT NOT NULL DEFAULT '',
	stop_order_id  TEXT NOT NULL DEFAULT '',
	alert          TEXT NOT NULL DEFAULT '',
	created_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_windows_rule_entry ON windows (rule_id, entry_at);
CREATE INDEX IF NOT EXISTS idx_windows_status ON windows (status);
`

var windowColumns = []string{
	"id", "rule_id", "entry_at", "exit_at", "status",
	"entry_order_id", "stop_order_id", "alert", "created_at", "updated_at",
}

var ruleColumns = []string{
	"id", "magic_number", "symbol", "direction", "entry_month", "entry_day",
	"exit_month", "exit_day", "open_time", "close_time", "stop_loss", "stop_loss_type", "risk_percent",
}

// SQLiteStorage persists records in a SQLite database file.
type SQLiteStorage struct {
	db *sql.DB
	sq squirrel.StatementBuilderType
}

// NewSQLiteStorage opens (and migrates) the database at path
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// One writer keeps single-row updates atomic without SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &SQLiteStorage{
		db: db,
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

func toUnix(t time.Time) int64 { return t.UTC().UnixNano() }

func fromUnix(n int64) time.Time { return time.Unix(0, n).UTC() }

func isConstraintErr(err error) bool {
	var sqErr sqlite3.Error
	return errors.As(err, &sqErr) && sqErr.Code == sqlite3.ErrConstraint
}

// ListSymbols returns all symbols ordered by ticker
func (s *SQLiteStorage) ListSymbols(ctx context.Context) ([]models.Symbol, error) {
	query, args, err := s.sq.Select("ticker", "name", "exchange", "currency").
		From("symbols").OrderBy("ticker").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	out := []models.Symbol{}
	for rows.Next() {
		var sym models.Symbol
		if err := rows.Scan(&sym.Ticker, &sym.Name, &sym.Exchange, &sym.Currency); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// GetSymbol returns one symbol by ticker
func (s *SQLiteStorage) GetSymbol(ctx context.Context, ticker string) (*models.Symbol, error) {
	query, args, err := s.sq.Select("ticker", "name", "exchange", "currency").
		From("symbols").Where(squirrel.Eq{"ticker": ticker}).ToSql()
	if err != nil {
		return nil, err
	}
	var sym models.Symbol
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&sym.Ticker, &sym.Name, &sym.Exchange, &sym.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("symbol %s: %w", ticker, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get symbol %s: %w", ticker, err)
	}
	return &sym, nil
}

// SaveSymbol upserts a symbol
func (s *SQLiteStorage) SaveSymbol(ctx context.Context, sym *models.Symbol) error {
	if err := models.ValidateSymbol(sym); err != nil {
		return err
	}
	query, args, err := s.sq.Insert("symbols").
		Columns("ticker", "name", "exchange", "currency").
		Values(sym.Ticker, sym.Name, sym.Exchange, sym.Currency).
		Suffix("ON CONFLICT(ticker) DO UPDATE SET name = excluded.name, exchange = excluded.exchange, currency = excluded.currency").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save symbol %s: %w", sym.Ticker, err)
	}
	return nil
}

// ListRules returns all rules ordered by magic number
func (s *SQLiteStorage) ListRules(ctx context.Context) ([]models.SeasonalRule, error) {
	query, args, err := s.sq.Select(ruleColumns...).From("rules").OrderBy("magic_number").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	out := []models.SeasonalRule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRule(rows *sql.Rows) (*models.SeasonalRule, error) {
	var (
		r                              models.SeasonalRule
		openTime, closeTime            string
		stopLoss, riskPct, dir, stType string
	)
	if err := rows.Scan(&r.ID, &r.MagicNumber, &r.Symbol, &dir, &r.EntryMonth, &r.EntryDay,
		&r.ExitMonth, &r.ExitDay, &openTime, &closeTime, &stopLoss, &stType, &riskPct); err != nil {
		return nil, err
	}
	r.Direction = models.Direction(dir)
	r.StopLossType = models.StopLossType(stType)

	var err error
	if r.OpenTime, err = models.ParseClockTime(openTime); err != nil {
		return nil, fmt.Errorf("rule %s open_time: %w", r.ID, err)
	}
	if r.CloseTime, err = models.ParseClockTime(closeTime); err != nil {
		return nil, fmt.Errorf("rule %s close_time: %w", r.ID, err)
	}
	if r.StopLoss, err = decimal.NewFromString(stopLoss); err != nil {
		return nil, fmt.Errorf("rule %s stop_loss: %w", r.ID, err)
	}
	if r.RiskPercent, err = decimal.NewFromString(riskPct); err != nil {
		return nil, fmt.Errorf("rule %s risk_percent: %w", r.ID, err)
	}
	return &r, nil
}

// SaveRule upserts a rule by magic number
func (s *SQLiteStorage) SaveRule(ctx context.Context, rule *models.SeasonalRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if rule.ID == "" {
		query, args, err := s.sq.Select("id").From("rules").
			Where(squirrel.Eq{"magic_number": rule.MagicNumber}).ToSql()
		if err != nil {
			return err
		}
		var existing string
		switch err := tx.QueryRowContext(ctx, query, args...).Scan(&existing); {
		case err == nil:
			rule.ID = existing
		case errors.Is(err, sql.ErrNoRows):
			rule.ID = uuid.NewString()
		default:
			return fmt.Errorf("lookup rule %d: %w", rule.MagicNumber, err)
		}
	}

	query, args, err := s.sq.Insert("rules").Columns(ruleColumns...).
		Values(rule.ID, rule.MagicNumber, rule.Symbol, string(rule.Direction),
			rule.EntryMonth, rule.EntryDay, rule.ExitMonth, rule.ExitDay,
			rule.OpenTime.String(), rule.CloseTime.String(),
			rule.StopLoss.String(), string(rule.StopLossType), rule.RiskPercent.String()).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
			magic_number = excluded.magic_number, symbol = excluded.symbol, direction = excluded.direction,
			entry_month = excluded.entry_month, entry_day = excluded.entry_day,
			exit_month = excluded.exit_month, exit_day = excluded.exit_day,
			open_time = excluded.open_time, close_time = excluded.close_time,
			stop_loss = excluded.stop_loss, stop_loss_type = excluded.stop_loss_type,
			risk_percent = excluded.risk_percent`).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if isConstraintErr(err) {
			return fmt.Errorf("rule %d: %w", rule.MagicNumber, ErrDuplicate)
		}
		return fmt.Errorf("save rule %d: %w", rule.MagicNumber, err)
	}
	return tx.Commit()
}

// ListWindows returns windows matching filter ordered by entry
func (s *SQLiteStorage) ListWindows(ctx context.Context, filter WindowFilter) ([]models.TradingWindow, error) {
	q := s.sq.Select(windowColumns...).From("windows")
	if filter.RuleID != "" {
		q = q.Where(squirrel.Eq{"rule_id": filter.RuleID})
	}
	if !filter.EntryAfter.IsZero() {
		q = q.Where(squirrel.Gt{"entry_at": toUnix(filter.EntryAfter)})
	}
	if !filter.CreatedFrom.IsZero() {
		q = q.Where(squirrel.GtOrEq{"created_at": toUnix(filter.CreatedFrom)})
	}
	if !filter.CreatedBefore.IsZero() {
		q = q.Where(squirrel.Lt{"created_at": toUnix(filter.CreatedBefore)})
	}
	if len(filter.Statuses) > 0 {
		q = q.Where(squirrel.Eq{"status": statusStrings(filter.Statuses)})
	}
	if len(filter.ExcludeStatuses) > 0 {
		q = q.Where(squirrel.NotEq{"status": statusStrings(filter.ExcludeStatuses)})
	}

	query, args, err := q.OrderBy("entry_at", "id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	defer rows.Close()

	out := []models.TradingWindow{}
	for rows.Next() {
		w, err := scanWindow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func statusStrings(ss []models.WindowStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

func scanWindow(scan func(dest ...any) error) (*models.TradingWindow, error) {
	var (
		w                                 models.TradingWindow
		status                            string
		entryAt, exitAt, created, updated int64
	)
	if err := scan(&w.ID, &w.RuleID, &entryAt, &exitAt, &status,
		&w.EntryOrderID, &w.StopOrderID, &w.Alert, &created, &updated); err != nil {
		return nil, err
	}
	w.Status = models.WindowStatus(status)
	w.EntryAt = fromUnix(entryAt)
	w.ExitAt = fromUnix(exitAt)
	w.CreatedAt = fromUnix(created)
	w.UpdatedAt = fromUnix(updated)
	return &w, nil
}

// GetWindow returns one window
func (s *SQLiteStorage) GetWindow(ctx context.Context, id string) (*models.TradingWindow, error) {
	query, args, err := s.sq.Select(windowColumns...).From("windows").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	w, err := scanWindow(s.db.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("window %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get window %s: %w", id, err)
	}
	return w, nil
}

// CreateWindow stores a new window
func (s *SQLiteStorage) CreateWindow(ctx context.Context, w *models.TradingWindow) error {
	if err := prepareNewWindow(w); err != nil {
		return err
	}
	query, args, err := s.sq.Insert("windows").Columns(windowColumns...).
		Values(w.ID, w.RuleID, toUnix(w.EntryAt), toUnix(w.ExitAt), string(w.Status),
			w.EntryOrderID, w.StopOrderID, w.Alert, toUnix(w.CreatedAt), toUnix(w.UpdatedAt)).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isConstraintErr(err) {
			return fmt.Errorf("window %s: %w", w.ID, ErrDuplicate)
		}
		return fmt.Errorf("create window %s: %w", w.ID, err)
	}
	return nil
}

// UpdateWindow replaces an existing window's mutable fields
func (s *SQLiteStorage) UpdateWindow(ctx context.Context, w *models.TradingWindow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	query, args, err := s.sq.Update("windows").SetMap(map[string]interface{}{
		"rule_id":        w.RuleID,
		"entry_at":       toUnix(w.EntryAt),
		"exit_at":        toUnix(w.ExitAt),
		"status":         string(w.Status),
		"entry_order_id": w.EntryOrderID,
		"stop_order_id":  w.StopOrderID,
		"alert":          w.Alert,
		"updated_at":     toUnix(w.UpdatedAt),
	}).Where(squirrel.Eq{"id": w.ID}).ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update window %s: %w", w.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("window %s: %w", w.ID, ErrNotFound)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
