// Package timewindow holds the time arithmetic shared by validation, duplicate
// detection and reconciliation.
//
// All calendar-day logic goes through a Calendar so the whole system agrees on
// which local day a timestamp belongs to.
package timewindow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DayLayout is the format of day bucket keys.
	DayLayout = "2006-01-02"
	// HourMinuteLayout is the format of time-of-day keys.
	HourMinuteLayout = "15:04"
	// LocalMinuteLayout is accepted by ParseTimestamp for zone-less input.
	LocalMinuteLayout = "2006-01-02T15:04"
)

// ErrMalformedTimestamp is returned when a raw timestamp cannot be interpreted.
var ErrMalformedTimestamp = errors.New("timewindow: malformed timestamp")

// DurationHours returns the length of [start, end] in hours. It returns 0 when
// either bound is missing.
func DurationHours(start, end time.Time) float64 {
	if start.IsZero() || end.IsZero() {
		return 0
	}
	return float64(end.Sub(start).Milliseconds()) / 3_600_000
}

// Overlaps reports whether [startA, endA) and [startB, endB) intersect.
// Intervals that only touch at an endpoint do not overlap.
func Overlaps(startA, endA, startB, endB time.Time) bool {
	return startA.Before(endB) && startB.Before(endA)
}

// Calendar fixes the location used for every day-level computation.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a calendar bound to loc. A nil location means time.Local.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	return Calendar{loc: loc}
}

// LoadCalendar resolves an IANA zone name. "Local" and "" select time.Local.
func LoadCalendar(name string) (Calendar, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return NewCalendar(time.Local), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, fmt.Errorf("timewindow: load location %q: %w", name, err)
	}
	return NewCalendar(loc), nil
}

// Location returns the calendar's location.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// DayBucket returns the local calendar day of t as YYYY-MM-DD.
func (c Calendar) DayBucket(t time.Time) string {
	return t.In(c.Location()).Format(DayLayout)
}

// HourMinute returns the local time of day of t as HH:MM.
func (c Calendar) HourMinute(t time.Time) string {
	return t.In(c.Location()).Format(HourMinuteLayout)
}

// StartOfDay returns local midnight of the day containing t.
func (c Calendar) StartOfDay(t time.Time) time.Time {
	local := t.In(c.Location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.Location())
}

// EndOfDay returns the last representable instant of the day containing t.
func (c Calendar) EndOfDay(t time.Time) time.Time {
	return c.StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Window is a closed interval of instants.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether [start, end] lies fully inside the window.
func (w Window) Contains(start, end time.Time) bool {
	return !start.Before(w.Start) && !end.After(w.End)
}

// CourseWindow spans from the start of startDate's day to the end of endDate's day.
func (c Calendar) CourseWindow(startDate, endDate time.Time) Window {
	return Window{Start: c.StartOfDay(startDate), End: c.EndOfDay(endDate)}
}

// ParseDate parses a YYYY-MM-DD value as a local calendar date.
func (c Calendar) ParseDate(raw string) (time.Time, error) {
	ts, err := time.ParseInLocation(DayLayout, strings.TrimSpace(raw), c.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, raw)
	}
	return ts, nil
}

// ParseTimestamp accepts RFC 3339, a zone-less YYYY-MM-DDTHH:MM in the calendar's
// location, or integer epoch milliseconds.
func (c Calendar) ParseTimestamp(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrMalformedTimestamp)
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.ParseInLocation(LocalMinuteLayout, value, c.Location()); err == nil {
		return ts, nil
	}
	if millis, err := strconv.ParseInt(value, 10, 64); err == nil && millis > 0 {
		return time.UnixMilli(millis).In(c.Location()), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, raw)
}

// Period names a calendar range used by listing views.
type Period string

const (
	PeriodNone  Period = ""
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod validates a period name.
func ParsePeriod(raw string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(raw))); p {
	case PeriodNone, PeriodDay, PeriodWeek, PeriodMonth:
		return p, nil
	default:
		return PeriodNone, fmt.Errorf("timewindow: unknown period %q", raw)
	}
}

// PeriodRange returns the half-open range [start, end) of the period containing
// reference. Weeks start on Monday.
func (c Calendar) PeriodRange(period Period, reference time.Time) (time.Time, time.Time) {
	start := c.StartOfDay(reference)
	switch period {
	case PeriodDay:
		return start, start.AddDate(0, 0, 1)
	case PeriodWeek:
		offset := (int(start.Weekday()) + 6) % 7
		start = start.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	case PeriodMonth:
		start = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, c.Location())
		return start, start.AddDate(0, 1, 0)
	default:
		return time.Time{}, time.Time{}
	}
}
