// Package tradinghours decodes broker trading-hours strings into UTC sessions.
//
// A schedule is a list of entries separated by ';'. Each entry is either
//
//	YYYYMMDD:CLOSED
//	YYYYMMDD:HHMM-YYYYMMDD:HHMM
//
// with times expressed in the contract's exchange zone.
package tradinghours

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/moznion/go-optional"
	"github.com/sirupsen/logrus"
)

// Status of a trading session
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

const (
	entrySep  = ";"
	closedTag = "CLOSED"

	// minimum length of an open entry: YYYYMMDD:HHMM-YYYYMMDD:HHMM
	openEntryLen = 27
)

// ErrMalformedEntry is returned for entries that do not follow the fixed layout.
var ErrMalformedEntry = errors.New("malformed trading hours entry")

// Session is one decoded schedule entry. Start and End are None for CLOSED sessions.
type Session struct {
	Status Status
	Start  optional.Option[time.Time]
	End    optional.Option[time.Time]
}

// Contains reports whether t falls inside an OPEN session, bounds inclusive.
func (s Session) Contains(t time.Time) bool {
	if s.Status != StatusOpen || s.Start.IsNone() || s.End.IsNone() {
		return false
	}
	start, end := s.Start.Unwrap(), s.End.Unwrap()
	return !t.Before(start) && !t.After(end)
}

func (s Session) String() string {
	if s.Status != StatusOpen {
		return string(s.Status)
	}
	return fmt.Sprintf("OPEN %s - %s", s.Start.Unwrap().Format(time.RFC3339), s.End.Unwrap().Format(time.RFC3339))
}

// Parse decodes schedule using the IANA zone zoneID. Entries that cannot be
// decoded are logged and skipped. An error is returned only when the zone is unknown.
func Parse(schedule, zoneID string, logger logrus.FieldLogger) ([]Session, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	loc, err := time.LoadLocation(zoneID)
	if err != nil {
		return nil, fmt.Errorf("load zone %q: %w", zoneID, err)
	}

	var sessions []Session
	for _, raw := range strings.Split(schedule, entrySep) {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		s, err := parseEntry(entry, loc)
		if err != nil {
			logger.WithError(err).WithField("entry", entry).Warn("Skipping trading hours entry")
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func parseEntry(entry string, loc *time.Location) (Session, error) {
	_, status, found := strings.Cut(entry, ":")
	if !found {
		return Session{}, fmt.Errorf("%w: missing ':'", ErrMalformedEntry)
	}
	if status == closedTag {
		return Session{
			Status: StatusClosed,
			Start:  optional.None[time.Time](),
			End:    optional.None[time.Time](),
		}, nil
	}

	if len(entry) < openEntryLen || entry[8] != ':' || entry[13] != '-' || entry[22] != ':' {
		return Session{}, fmt.Errorf("%w: unexpected layout", ErrMalformedEntry)
	}
	start, err := parseStamp(entry[0:4], entry[4:6], entry[6:8], entry[9:11], entry[11:13], loc)
	if err != nil {
		return Session{}, fmt.Errorf("start: %w", err)
	}
	end, err := parseStamp(entry[14:18], entry[18:20], entry[20:22], entry[23:25], entry[25:27], loc)
	if err != nil {
		return Session{}, fmt.Errorf("end: %w", err)
	}
	if end.Before(start) {
		return Session{}, fmt.Errorf("%w: end before start", ErrMalformedEntry)
	}
	return Session{
		Status: StatusOpen,
		Start:  optional.Some(start),
		End:    optional.Some(end),
	}, nil
}

// parseStamp builds a local instant from fixed-width fields and returns it in UTC.
func parseStamp(y, mo, d, h, mi string, loc *time.Location) (time.Time, error) {
	var fields [5]int
	for i, s := range []string{y, mo, d, h, mi} {
		n, err := strconv.Atoi(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q is not a number", ErrMalformedEntry, s)
		}
		fields[i] = n
	}
	t := time.Date(fields[0], time.Month(fields[1]), fields[2], fields[3], fields[4], 0, 0, loc)
	// time.Date normalizes out-of-range fields; reject anything it had to move.
	if t.Year() != fields[0] || int(t.Month()) != fields[1] || t.Day() != fields[2] ||
		fields[3] > 23 || fields[4] > 59 {
		return time.Time{}, fmt.Errorf("%w: %s%s%s:%s%s is not a valid time", ErrMalformedEntry, y, mo, d, h, mi)
	}
	return t.UTC(), nil
}

// OpenAt reports whether any OPEN session covers t.
func OpenAt(sessions []Session, t time.Time) bool {
	_, ok := Current(sessions, t)
	return ok
}

// Current returns the OPEN session covering t, if any.
func Current(sessions []Session, t time.Time) (Session, bool) {
	for _, s := range sessions {
		if s.Contains(t) {
			return s, true
		}
	}
	return Session{}, false
}
