package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidTransition is returned when a lifecycle change is not in ValidTransitions
	ErrInvalidTransition = errors.New("invalid window transition")
	// ErrInvalidCalendarDate is returned when a month/day pair does not exist in the target year
	ErrInvalidCalendarDate = errors.New("invalid calendar date")
)

// TradingWindow is one year-bound materialization of a SeasonalRule.
type TradingWindow struct {
	ID           string       `json:"id"`
	RuleID       string       `json:"rule_id"`
	EntryAt      time.Time    `json:"entry_at"`
	ExitAt       time.Time    `json:"exit_at"`
	Status       WindowStatus `json:"status"`
	EntryOrderID string       `json:"entry_order_id,omitempty"`
	StopOrderID  string       `json:"stop_order_id,omitempty"`
	// Alert is set when an entry may be live without a confirmed protective stop.
	Alert     string    `json:"alert,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTradingWindow creates an AWAITING window for rule.
func NewTradingWindow(id, ruleID string, entry, exit, now time.Time) *TradingWindow {
	return &TradingWindow{
		ID:        id,
		RuleID:    ruleID,
		EntryAt:   entry.UTC(),
		ExitAt:    exit.UTC(),
		Status:    StatusAwaiting,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

// HasEntry reports whether an entry order was ever recorded for the window
func (w *TradingWindow) HasEntry() bool {
	return w.EntryOrderID != ""
}

// HasAlert reports whether the window needs operator attention
func (w *TradingWindow) HasAlert() bool {
	return w.Alert != ""
}

// TransitionTo validates and applies a status change
func (w *TradingWindow) TransitionTo(to WindowStatus, condition string, now time.Time) error {
	if err := ValidateTransition(w.Status, to, condition); err != nil {
		return err
	}
	w.Status = to
	w.UpdatedAt = now.UTC()
	return nil
}

// Validate checks structural invariants before persistence
func (w *TradingWindow) Validate() error {
	if w.RuleID == "" {
		return fmt.Errorf("window %s: rule id is required", w.ID)
	}
	if !w.Status.IsValid() {
		return fmt.Errorf("window %s: unknown status %q", w.ID, w.Status)
	}
	if !w.ExitAt.After(w.EntryAt) {
		return fmt.Errorf("window %s: exit %s must be after entry %s", w.ID,
			w.ExitAt.Format(time.RFC3339), w.EntryAt.Format(time.RFC3339))
	}
	return nil
}

// Clone returns a copy that shares no mutable state with w
func (w *TradingWindow) Clone() *TradingWindow {
	if w == nil {
		return nil
	}
	c := *w
	return &c
}
