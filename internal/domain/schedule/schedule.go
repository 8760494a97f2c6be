// Package schedule converts wall-clock booking fields into absolute instants
// and computes the buffered windows used for conflict checks.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var (
	ErrInvalidTimeFormat = errors.New("invalid time format")
	ErrUnknownTimezone   = errors.New("unknown timezone")
)

type Window struct {
	Start time.Time
	End   time.Time
}

// Overlaps is strict: windows that only touch do not overlap.
func (w Window) Overlaps(o Window) bool {
	return Overlaps(w.Start, w.End, o.Start, o.End)
}

func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// BufferedWindow returns [meetup-buffer, meetup+duration+buffer).
func BufferedWindow(meetup time.Time, durationMinutes, bufferMinutes int) Window {
	buffer := time.Duration(bufferMinutes) * time.Minute
	end := meetup.Add(time.Duration(durationMinutes) * time.Minute)
	return Window{
		Start: meetup.Add(-buffer),
		End:   end.Add(buffer),
	}
}

func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(DateLayout) {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidTimeFormat, s)
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %v", ErrInvalidTimeFormat, s, err)
	}
	return d, nil
}

// ParseClock parses a 24-hour HH:mm value.
func ParseClock(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	if len(s) != len(ClockLayout) {
		return 0, 0, fmt.Errorf("%w: time %q must be HH:mm", ErrInvalidTimeFormat, s)
	}
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: time %q: %v", ErrInvalidTimeFormat, s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// LoadZone resolves a timezone label. Besides IANA names it accepts the
// UTC/GMT aliases and fixed offsets such as "UTC+2", "GMT-05:30" or "+01:00".
func LoadZone(label string) (*time.Location, error) {
	l := strings.TrimSpace(label)
	switch strings.ToUpper(l) {
	case "", "UTC", "GMT", "Z":
		return time.UTC, nil
	}

	upper := strings.ToUpper(l)
	offset := ""
	switch {
	case strings.HasPrefix(upper, "UTC"):
		offset = l[3:]
	case strings.HasPrefix(upper, "GMT"):
		offset = l[3:]
	case strings.HasPrefix(l, "+"), strings.HasPrefix(l, "-"):
		offset = l
	}
	if offset != "" {
		secs, err := parseOffset(offset)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, label)
		}
		return time.FixedZone(strings.ToUpper(l), secs), nil
	}

	loc, err := time.LoadLocation(l)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, label)
	}
	return loc, nil
}

func parseOffset(s string) (int, error) {
	if len(s) < 2 || (s[0] != '+' && s[0] != '-') {
		return 0, errors.New("offset needs a sign")
	}
	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	hh, mm, found := strings.Cut(s[1:], ":")
	h, err := strconv.Atoi(hh)
	if err != nil || h > 14 {
		return 0, errors.New("bad offset hours")
	}
	m := 0
	if found {
		m, err = strconv.Atoi(mm)
		if err != nil || m >= 60 {
			return 0, errors.New("bad offset minutes")
		}
	}
	return sign * (h*3600 + m*60), nil
}

// ToInstant interprets date + time-of-day in the labelled timezone and
// returns the absolute instant in UTC.
func ToInstant(date, clock, timezone string) (time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	h, m, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := LoadZone(timezone)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, loc).UTC(), nil
}

// MonthKey returns YYYY-MM for a YYYY-MM-DD date.
func MonthKey(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}
