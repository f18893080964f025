package timewindow

import (
	"errors"
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, time.July, 28, hour, minute, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		startA, endA time.Time
		startB, endB time.Time
		want         bool
	}{
		{name: "touching endpoints", startA: at(10, 0), endA: at(11, 0), startB: at(11, 0), endB: at(12, 0), want: false},
		{name: "partial overlap", startA: at(10, 0), endA: at(11, 0), startB: at(10, 30), endB: at(11, 30), want: true},
		{name: "containment", startA: at(8, 0), endA: at(12, 0), startB: at(9, 0), endB: at(10, 0), want: true},
		{name: "identical", startA: at(8, 0), endA: at(10, 0), startB: at(8, 0), endB: at(10, 0), want: true},
		{name: "disjoint", startA: at(8, 0), endA: at(9, 0), startB: at(13, 0), endB: at(14, 0), want: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Overlaps(tc.startA, tc.endA, tc.startB, tc.endB); got != tc.want {
				t.Fatalf("Overlaps(A,B) = %v, want %v", got, tc.want)
			}
			if got := Overlaps(tc.startB, tc.endB, tc.startA, tc.endA); got != tc.want {
				t.Fatalf("Overlaps(B,A) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDurationHours(t *testing.T) {
	t.Parallel()

	if got := DurationHours(at(8, 0), at(10, 30)); got != 2.5 {
		t.Fatalf("expected 2.5 hours, got %v", got)
	}
	if got := DurationHours(time.Time{}, at(10, 0)); got != 0 {
		t.Fatalf("expected 0 for missing start, got %v", got)
	}
	if got := DurationHours(at(10, 0), time.Time{}); got != 0 {
		t.Fatalf("expected 0 for missing end, got %v", got)
	}
}

func TestCalendarDayBucketUsesCalendarLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("ICT", 7*60*60)
	cal := NewCalendar(loc)

	// 2024-07-27T20:30Z is already the 28th in UTC+7.
	instant := time.Date(2024, time.July, 27, 20, 30, 0, 0, time.UTC)
	if got := cal.DayBucket(instant); got != "2024-07-28" {
		t.Fatalf("expected local day 2024-07-28, got %s", got)
	}
	if got := cal.HourMinute(instant); got != "03:30" {
		t.Fatalf("expected local time 03:30, got %s", got)
	}
}

func TestCalendarCourseWindow(t *testing.T) {
	t.Parallel()

	cal := NewCalendar(time.UTC)
	window := cal.CourseWindow(at(15, 0), time.Date(2024, time.July, 30, 1, 0, 0, 0, time.UTC))

	if !window.Start.Equal(time.Date(2024, time.July, 28, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window start %v", window.Start)
	}
	if !window.Contains(window.Start, time.Date(2024, time.July, 30, 23, 59, 0, 0, time.UTC)) {
		t.Fatalf("expected late evening of the last day to be inside the window")
	}
	if window.Contains(window.Start, time.Date(2024, time.July, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected midnight after the last day to be outside the window")
	}
	if window.Contains(window.Start.Add(-time.Minute), window.Start.Add(time.Hour)) {
		t.Fatalf("expected start before the first day to be outside the window")
	}
}

func TestCalendarParseTimestamp(t *testing.T) {
	t.Parallel()

	cal := NewCalendar(time.UTC)
	want := at(8, 0)

	for _, raw := range []string{"2024-07-28T08:00:00Z", "2024-07-28T08:00", "1722153600000"} {
		got, err := cal.ParseTimestamp(raw)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q) returned error: %v", raw, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseTimestamp(%q) = %v, want %v", raw, got, want)
		}
	}

	for _, raw := range []string{"", "tomorrow", "-5", "0", "2024-13-01T08:00"} {
		if _, err := cal.ParseTimestamp(raw); !errors.Is(err, ErrMalformedTimestamp) {
			t.Fatalf("ParseTimestamp(%q) expected ErrMalformedTimestamp, got %v", raw, err)
		}
	}
}

func TestCalendarPeriodRange(t *testing.T) {
	t.Parallel()

	cal := NewCalendar(time.UTC)
	// 2024-07-28 is a Sunday.
	reference := at(15, 0)

	tests := []struct {
		period     Period
		start, end time.Time
	}{
		{PeriodDay, time.Date(2024, time.July, 28, 0, 0, 0, 0, time.UTC), time.Date(2024, time.July, 29, 0, 0, 0, 0, time.UTC)},
		{PeriodWeek, time.Date(2024, time.July, 22, 0, 0, 0, 0, time.UTC), time.Date(2024, time.July, 29, 0, 0, 0, 0, time.UTC)},
		{PeriodMonth, time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, time.August, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		start, end := cal.PeriodRange(tc.period, reference)
		if !start.Equal(tc.start) || !end.Equal(tc.end) {
			t.Fatalf("%s: got [%v, %v), want [%v, %v)", tc.period, start, end, tc.start, tc.end)
		}
	}

	if _, err := ParsePeriod("fortnight"); err == nil {
		t.Fatalf("expected unknown period to be rejected")
	}
}
