package domain

import (
	"slices"
	"testing"
	"time"
)

func TestSortSessionsOrdersByStartThenCreation(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, time.July, 28, 8, 0, 0, 0, time.UTC)
	sessions := []Session{
		{ID: "late", Start: base.Add(time.Hour), CreatedAt: base},
		{ID: "b", Start: base, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "a", Start: base, CreatedAt: base.Add(time.Minute)},
	}

	SortSessions(sessions)

	var got []string
	for _, s := range sessions {
		got = append(got, s.ID)
	}
	if want := []string{"a", "b", "late"}; !slices.Equal(got, want) {
		t.Fatalf("unexpected order %v, want %v", got, want)
	}
}

func TestNormalizeIDs(t *testing.T) {
	t.Parallel()

	got := NormalizeIDs([]string{"s2", "", "s1", "s2"})
	if want := []string{"s1", "s2"}; !slices.Equal(got, want) {
		t.Fatalf("NormalizeIDs = %v, want %v", got, want)
	}
}

func TestSessionCloneDetachesAttendees(t *testing.T) {
	t.Parallel()

	original := Session{ID: "s", AttendeeIDs: []string{"a"}}
	clone := original.Clone()
	clone.AttendeeIDs[0] = "b"
	if original.AttendeeIDs[0] != "a" {
		t.Fatalf("expected clone to own its attendee slice")
	}
}
