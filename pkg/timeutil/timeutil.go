package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// WireLayout is the canonical date format sent to the clinic API (UTC, millisecond precision).
const WireLayout = "2006-01-02T15:04:05.000Z07:00"

// DateLayout is used for date-only query parameters.
const DateLayout = "2006-01-02"

// ClockLayout is used for HH:MM form inputs.
const ClockLayout = "15:04"

var parseLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	DateLayout,
}

// ParseWire parses an ISO-8601 string as returned by the clinic API.
// Values without an offset are interpreted in loc (UTC when loc is nil).
func ParseWire(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date value")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date value %q", value)
}

// FormatWire formats t in the canonical wire format.
func FormatWire(t time.Time) string {
	return t.UTC().Format(WireLayout)
}

// FormatDate formats the calendar date of t in its own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last nanosecond of t's day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// CombineDateTime builds an instant from a YYYY-MM-DD date and an HH:MM clock in loc.
func CombineDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", date)
	}
	c, err := time.Parse(ClockLayout, strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", clock)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, loc), nil
}

// MinutesOfDay returns the number of minutes since midnight of t in its location.
func MinutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// FormatRange renders a start/end pair for display, e.g. "Mon, Jan 2 09:00-09:30".
func FormatRange(start, end time.Time) string {
	if start.IsZero() {
		return ""
	}
	if end.IsZero() {
		return start.Format("Mon, Jan 2 15:04")
	}
	if FormatDate(start) == FormatDate(end) {
		return fmt.Sprintf("%s-%s", start.Format("Mon, Jan 2 15:04"), end.Format(ClockLayout))
	}
	return fmt.Sprintf("%s - %s", start.Format("Mon, Jan 2 15:04"), end.Format("Mon, Jan 2 15:04"))
}
