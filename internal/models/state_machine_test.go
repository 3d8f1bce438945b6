package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name      string
		from      WindowStatus
		to        WindowStatus
		condition string
		wantErr   bool
	}{
		{"awaiting to open", StatusAwaiting, StatusOpen, ConditionBracketPlaced, false},
		{"awaiting to close", StatusAwaiting, StatusClose, ConditionExitReached, false},
		{"open to close", StatusOpen, StatusClose, ConditionExitReached, false},
		{"wrong condition", StatusAwaiting, StatusOpen, ConditionExitReached, true},
		{"close is terminal", StatusClose, StatusOpen, ConditionBracketPlaced, true},
		{"close to awaiting", StatusClose, StatusAwaiting, "", true},
		{"open back to awaiting", StatusOpen, StatusAwaiting, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to, tt.condition)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidTransition))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTradingWindow_TransitionTo(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	w := NewTradingWindow("w1", "r1", created.Add(24*time.Hour), created.Add(48*time.Hour), created)
	require.Equal(t, StatusAwaiting, w.Status)

	later := created.Add(time.Hour)
	require.NoError(t, w.TransitionTo(StatusOpen, ConditionBracketPlaced, later))
	assert.Equal(t, StatusOpen, w.Status)
	assert.Equal(t, later, w.UpdatedAt)

	// Invalid transition leaves the window untouched
	err := w.TransitionTo(StatusAwaiting, "", later.Add(time.Hour))
	assert.Error(t, err)
	assert.Equal(t, StatusOpen, w.Status)
	assert.Equal(t, later, w.UpdatedAt)

	require.NoError(t, w.TransitionTo(StatusClose, ConditionExitReached, later))
	assert.True(t, w.Status.IsTerminal())
}

func TestTradingWindow_Validate(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	w := NewTradingWindow("w1", "r1", now, now.Add(time.Hour), now)
	assert.NoError(t, w.Validate())

	bad := w.Clone()
	bad.ExitAt = bad.EntryAt
	assert.Error(t, bad.Validate())

	bad = w.Clone()
	bad.RuleID = ""
	assert.Error(t, bad.Validate())

	bad = w.Clone()
	bad.Status = "PENDING"
	assert.Error(t, bad.Validate())
}

func TestTradingWindow_Clone(t *testing.T) {
	now := time.Now()
	w := NewTradingWindow("w1", "r1", now, now.Add(time.Hour), now)
	c := w.Clone()
	c.EntryOrderID = "42"
	assert.False(t, w.HasEntry())
	assert.True(t, c.HasEntry())

	var nilWindow *TradingWindow
	assert.Nil(t, nilWindow.Clone())
}

func TestDescribeStatus(t *testing.T) {
	for _, s := range []WindowStatus{StatusAwaiting, StatusOpen, StatusClose} {
		assert.NotEqual(t, "Unknown status", DescribeStatus(s), s)
	}
	assert.Equal(t, "Unknown status", DescribeStatus("BOGUS"))
}

func TestTerminalStatuses(t *testing.T) {
	assert.Equal(t, []WindowStatus{StatusClose}, TerminalStatuses())
	assert.False(t, StatusAwaiting.IsTerminal())
	assert.False(t, StatusOpen.IsTerminal())
	assert.False(t, WindowStatus("BOGUS").IsTerminal())
}
