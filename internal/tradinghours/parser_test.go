package tradinghours

import (
	"bytes"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	return l, &buf
}

func TestParse_ClosedAndOpenEntry(t *testing.T) {
	logger, _ := testLogger()

	sessions, err := Parse("20250106:CLOSED;20250107:1700-20250108:1600", "US/Central", logger)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	closed := sessions[0]
	assert.Equal(t, StatusClosed, closed.Status)
	assert.True(t, closed.Start.IsNone())
	assert.True(t, closed.End.IsNone())

	open := sessions[1]
	assert.Equal(t, StatusOpen, open.Status)
	require.True(t, open.Start.IsSome())
	require.True(t, open.End.IsSome())
	// CST is UTC-6 in January
	assert.Equal(t, time.Date(2025, 1, 7, 23, 0, 0, 0, time.UTC), open.Start.Unwrap())
	assert.Equal(t, time.Date(2025, 1, 8, 22, 0, 0, 0, time.UTC), open.End.Unwrap())
	assert.Equal(t, time.UTC, open.Start.Unwrap().Location())
}

func TestParse_AppliesDaylightSaving(t *testing.T) {
	sessions, err := Parse("20250707:0830-20250707:1500", "America/Chicago", nil)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	// CDT is UTC-5 in July
	assert.Equal(t, time.Date(2025, 7, 7, 13, 30, 0, 0, time.UTC), sessions[0].Start.Unwrap())
	assert.Equal(t, time.Date(2025, 7, 7, 20, 0, 0, 0, time.UTC), sessions[0].End.Unwrap())
}

func TestParse_SkipsMalformedEntries(t *testing.T) {
	logger, buf := testLogger()

	schedule := strings.Join([]string{
		"20250107:1700-20250108:1600",
		"garbage",
		"",
		"2025013X:1700-20250131:1600",
		"20250230:1700-20250231:1600",
		"20250109:2500-20250110:1600",
		"20250109:1700",
		"20250110:CLOSED",
	}, ";")
	sessions, err := Parse(schedule, "UTC", logger)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, StatusOpen, sessions[0].Status)
	assert.Equal(t, StatusClosed, sessions[1].Status)
	assert.Contains(t, buf.String(), "Skipping trading hours entry")
}

func TestParse_EmptySchedule(t *testing.T) {
	sessions, err := Parse("", "UTC", nil)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.False(t, OpenAt(sessions, time.Now()))
}

func TestParse_UnknownZone(t *testing.T) {
	_, err := Parse("20250107:1700-20250108:1600", "Mars/Olympus", nil)
	assert.Error(t, err)
}

func TestOpenAt_InclusiveBounds(t *testing.T) {
	sessions, err := Parse("20250107:0900-20250107:1700;20250108:CLOSED", "UTC", nil)
	require.NoError(t, err)

	start := time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 7, 17, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"at start", start, true},
		{"inside", start.Add(time.Hour), true},
		{"at end", end, true},
		{"before start", start.Add(-time.Second), false},
		{"after end", end.Add(time.Second), false},
		{"closed day", time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC), false},
		{"non-utc location compares as instant", start.In(time.FixedZone("X", 3600)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OpenAt(sessions, tt.at))
		})
	}

	s, ok := Current(sessions, start)
	require.True(t, ok)
	assert.Contains(t, s.String(), "OPEN")
}
