// Package models provides data structures and lifecycle rules for seasonal trading windows.
package models

import (
	"fmt"
)

// WindowStatus represents the lifecycle status of a trading window
type WindowStatus string

const (
	StatusAwaiting WindowStatus = "AWAITING" // Materialized, waiting for entry instant
	StatusOpen     WindowStatus = "OPEN"     // Bracket order placed
	StatusClose    WindowStatus = "CLOSE"    // Exit instant reached and closeout confirmed
)

// Transition conditions
const (
	ConditionBracketPlaced = "bracket_placed"
	ConditionExitReached   = "exit_reached"
)

// StatusTransition defines a valid lifecycle transition
type StatusTransition struct {
	From        WindowStatus
	To          WindowStatus
	Condition   string
	Description string
}

// ValidTransitions lists every transition a window may take. CLOSE is terminal.
var ValidTransitions = []StatusTransition{
	{StatusAwaiting, StatusOpen, ConditionBracketPlaced, "Entry order and protective stop placed"},
	{StatusAwaiting, StatusClose, ConditionExitReached, "Exit instant reached before any entry"},
	{StatusOpen, StatusClose, ConditionExitReached, "Position flattened at exit instant"},
}

// IsValid reports whether s is a known status
func (s WindowStatus) IsValid() bool {
	switch s {
	case StatusAwaiting, StatusOpen, StatusClose:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible from s
func (s WindowStatus) IsTerminal() bool {
	for _, tr := range ValidTransitions {
		if tr.From == s {
			return false
		}
	}
	return s.IsValid()
}

// AllStatuses lists every lifecycle status in order.
var AllStatuses = []WindowStatus{StatusAwaiting, StatusOpen, StatusClose}

// TerminalStatuses returns the statuses a window never leaves
func TerminalStatuses() []WindowStatus {
	var out []WindowStatus
	for _, s := range AllStatuses {
		if s.IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}

// ValidateTransition checks that moving from -> to under condition is allowed
func ValidateTransition(from, to WindowStatus, condition string) error {
	for _, tr := range ValidTransitions {
		if tr.From == from && tr.To == to && tr.Condition == condition {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s with condition '%s'", ErrInvalidTransition, from, to, condition)
}

// DescribeStatus returns a human-readable description of a status
func DescribeStatus(s WindowStatus) string {
	switch s {
	case StatusAwaiting:
		return "Waiting for the entry instant and an open market"
	case StatusOpen:
		return "Bracket placed, waiting for the exit instant"
	case StatusClose:
		return "Window finished"
	default:
		return "Unknown status"
	}
}
