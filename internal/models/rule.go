package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Direction is the side a seasonal rule trades
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// IsLong reports whether the rule buys on entry
func (d Direction) IsLong() bool { return d == DirectionLong }

// StopLossType selects how a rule's stop value is interpreted
type StopLossType string

const (
	StopLossPoints     StopLossType = "POINTS"
	StopLossPercentage StopLossType = "PERCENTAGE"
)

// Symbol is a tradable futures instrument.
type Symbol struct {
	Ticker   string `json:"ticker" yaml:"ticker" validate:"required"`
	Name     string `json:"name" yaml:"name"`
	Exchange string `json:"exchange" yaml:"exchange" validate:"required"`
	Currency string `json:"currency" yaml:"currency"`
}

// ClockTime is a wall-clock time of day, written as "HH:MM".
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM"
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	ct := ClockTime{Hour: h, Minute: m}
	if !ct.IsValid() {
		return ClockTime{}, fmt.Errorf("time of day %q out of range", s)
	}
	return ct, nil
}

// MustClockTime is ParseClockTime for literals
func MustClockTime(s string) ClockTime {
	ct, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return ct
}

// IsValid reports whether the hour and minute are in range
func (c ClockTime) IsValid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// MarshalText implements encoding.TextMarshaler
func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *ClockTime) UnmarshalText(text []byte) error {
	ct, err := ParseClockTime(string(text))
	if err != nil {
		return err
	}
	*c = ct
	return nil
}

// SeasonalRule is a recurring calendar-based trade definition.
type SeasonalRule struct {
	ID           string          `json:"id" yaml:"id"`
	MagicNumber  int64           `json:"magic_number" yaml:"magic_number" validate:"required"`
	Symbol       string          `json:"symbol" yaml:"symbol" validate:"required"`
	Direction    Direction       `json:"direction" yaml:"direction" validate:"required,oneof=LONG SHORT"`
	EntryMonth   int             `json:"entry_month" yaml:"entry_month" validate:"min=1,max=12"`
	EntryDay     int             `json:"entry_day" yaml:"entry_day" validate:"min=1,max=31"`
	ExitMonth    int             `json:"exit_month" yaml:"exit_month" validate:"min=1,max=12"`
	ExitDay      int             `json:"exit_day" yaml:"exit_day" validate:"min=1,max=31"`
	OpenTime     ClockTime       `json:"open_time" yaml:"open_time"`
	CloseTime    ClockTime       `json:"close_time" yaml:"close_time"`
	StopLoss     decimal.Decimal `json:"stop_loss" yaml:"stop_loss"`
	StopLossType StopLossType    `json:"stop_loss_type" yaml:"stop_loss_type" validate:"required,oneof=POINTS PERCENTAGE"`
	RiskPercent  decimal.Decimal `json:"risk_percent" yaml:"risk_percent"`
}

var validate = validator.New()

// Validate checks field ranges. Calendar validity of month/day is not checked here.
func (r *SeasonalRule) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("rule %d: %w", r.MagicNumber, err)
	}
	var errs []error
	if !r.OpenTime.IsValid() {
		errs = append(errs, fmt.Errorf("open_time %s out of range", r.OpenTime))
	}
	if !r.CloseTime.IsValid() {
		errs = append(errs, fmt.Errorf("close_time %s out of range", r.CloseTime))
	}
	if !r.StopLoss.IsPositive() {
		errs = append(errs, errors.New("stop_loss must be > 0"))
	}
	if !r.RiskPercent.IsPositive() || r.RiskPercent.GreaterThan(decimal.NewFromInt(100)) {
		errs = append(errs, errors.New("risk_percent must be in (0,100]"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("rule %d: %w", r.MagicNumber, errors.Join(errs...))
	}
	return nil
}

// ValidateSymbol checks required symbol fields
func ValidateSymbol(s *Symbol) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("symbol %q: %w", s.Ticker, err)
	}
	return nil
}
