package schedule

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestToInstant_UTC(t *testing.T) {
	got, err := ToInstant("2026-01-20", "18:00", "UTC")
	require.NoError(t, err)
	assert.Equal(t, utc("2026-01-20T18:00:00Z"), got)
}

func TestToInstant_IANAZone(t *testing.T) {
	got, err := ToInstant("2026-07-01", "20:00", "Europe/London")
	require.NoError(t, err)
	assert.Equal(t, utc("2026-07-01T19:00:00Z"), got)
}

func TestToInstant_FixedOffsets(t *testing.T) {
	cases := map[string]string{
		"UTC+2":     "2026-01-20T16:00:00Z",
		"GMT-05:30": "2026-01-20T23:30:00Z",
		"+01:00":    "2026-01-20T17:00:00Z",
	}
	for label, want := range cases {
		got, err := ToInstant("2026-01-20", "18:00", label)
		require.NoError(t, err, label)
		assert.Equal(t, utc(want), got, label)
	}
}

func TestToInstant_RejectsBadInput(t *testing.T) {
	_, err := ToInstant("2026-02-30", "18:00", "UTC")
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)

	_, err = ToInstant("20-01-2026", "18:00", "UTC")
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)

	_, err = ToInstant("2026-01-20", "24:00", "UTC")
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)

	_, err = ToInstant("2026-01-20", "6:30", "UTC")
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)

	_, err = ToInstant("2026-01-20", "18:00", "Mars/Olympus")
	assert.ErrorIs(t, err, ErrUnknownTimezone)
}

func TestBufferedWindow(t *testing.T) {
	w := BufferedWindow(utc("2026-01-20T18:00:00Z"), 120, 30)
	assert.Equal(t, utc("2026-01-20T17:30:00Z"), w.Start)
	assert.Equal(t, utc("2026-01-20T20:30:00Z"), w.End)
}

func TestOverlaps_TouchingIsNotOverlap(t *testing.T) {
	a := BufferedWindow(utc("2026-01-20T18:00:00Z"), 120, 30)
	b := BufferedWindow(utc("2026-01-20T21:00:00Z"), 120, 30)
	require.Equal(t, a.End, b.Start)

	assert.False(t, a.Overlaps(b))
	assert.False(t, b.Overlaps(a))
}

func TestOverlaps_Partial(t *testing.T) {
	a := BufferedWindow(utc("2026-01-20T18:00:00Z"), 120, 30)
	b := BufferedWindow(utc("2026-01-20T19:30:00Z"), 120, 30)
	assert.True(t, a.Overlaps(b))
	assert.True(t, b.Overlaps(a))
}

func TestMonthKey(t *testing.T) {
	assert.Equal(t, "2026-01", MonthKey("2026-01-20"))
}
