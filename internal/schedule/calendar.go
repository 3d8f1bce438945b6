package schedule

import (
	"fmt"
	"time"

	"github.com/eddiefleurent/seasonal_trader/internal/models"
)

// Instant returns month/day at the given time of day in loc. Dates that do not
// exist in that year (Feb 30, Apr 31, Feb 29 outside leap years) are rejected
// rather than normalized into the following month.
func Instant(year, month, day int, at models.ClockTime, loc *time.Location) (time.Time, error) {
	t := time.Date(year, time.Month(month), day, at.Hour, at.Minute, 0, 0, loc)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("%04d-%02d-%02d: %w", year, month, day, models.ErrInvalidCalendarDate)
	}
	return t, nil
}

// Bounds computes a rule's entry and exit instants. Entry uses entryYear and exit
// uses exitYear; when the exit would not fall after the entry it rolls to
// exitYear+1 so windows crossing New Year stay ordered.
func Bounds(rule *models.SeasonalRule, entryYear, exitYear int, loc *time.Location) (entry, exit time.Time, err error) {
	entry, err = Instant(entryYear, rule.EntryMonth, rule.EntryDay, rule.OpenTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("entry: %w", err)
	}
	exit, err = Instant(exitYear, rule.ExitMonth, rule.ExitDay, rule.CloseTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("exit: %w", err)
	}
	if !exit.After(entry) {
		exit, err = Instant(exitYear+1, rule.ExitMonth, rule.ExitDay, rule.CloseTime, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("exit: %w", err)
		}
	}
	return entry.UTC(), exit.UTC(), nil
}

// yearBounds returns [Jan 1 of year, Jan 1 of year+1) in loc.
func yearBounds(year int, loc *time.Location) (time.Time, time.Time) {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, loc),
		time.Date(year+1, time.January, 1, 0, 0, 0, 0, loc)
}
