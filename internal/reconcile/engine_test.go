package reconcile

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/timewindow"
)

var (
	slot = time.Date(2024, time.July, 28, 8, 0, 0, 0, time.UTC)
	day  = time.Date(2024, time.July, 28, 0, 0, 0, 0, time.UTC)
)

func record(id string, role domain.Role, attendees ...string) domain.Session {
	return domain.Session{
		ID:          id,
		CourseID:    "c1",
		TeacherID:   "t1",
		Start:       slot,
		End:         slot.Add(2 * time.Hour),
		CreatedBy:   role,
		AttendeeIDs: attendees,
	}
}

func reconcileDay(t *testing.T, sessions ...domain.Session) Report {
	t.Helper()
	report, err := NewEngine(timewindow.NewCalendar(time.UTC)).Reconcile(context.Background(), Request{
		CourseID: "c1",
		From:     day,
		To:       day,
		Roster:   map[string]string{"s1": "Aiko", "s2": "Ben"},
	}, sessions)
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	return report
}

func TestEngine_MatchedPair(t *testing.T) {
	t.Parallel()

	report := reconcileDay(t,
		record("teacher", domain.RoleTeacher, "s1", "s2"),
		record("leader", domain.RoleTeamLeader, "s2", "s1"),
	)

	if len(report.Pairs) != 1 {
		t.Fatalf("expected one pair, got %d", len(report.Pairs))
	}
	pair := report.Pairs[0]
	if pair.Status != StatusMatched {
		t.Fatalf("expected MATCHED, got %s", pair.Status)
	}
	if pair.TeacherSession.ID != "teacher" || pair.LeaderSession.ID != "leader" {
		t.Fatalf("unexpected pairing %+v", pair)
	}
	if report.Summary != (Summary{Matched: 1}) {
		t.Fatalf("unexpected summary %+v", report.Summary)
	}
}

func TestEngine_DiscrepancyReportsSymmetricDifference(t *testing.T) {
	t.Parallel()

	report := reconcileDay(t,
		record("teacher", domain.RoleTeacher, "s1", "s2"),
		record("leader", domain.RoleTeamLeader, "s1"),
	)

	pair := report.Pairs[0]
	if pair.Status != StatusDiscrepancy {
		t.Fatalf("expected DISCREPANCY, got %s", pair.Status)
	}
	want := []Difference{{StudentID: "s2", StudentName: "Ben", Side: SideTeacherOnly}}
	if !slices.Equal(pair.Differences, want) {
		t.Fatalf("expected %v, got %v", want, pair.Differences)
	}
}

func TestEngine_MissingCounterpart(t *testing.T) {
	t.Parallel()

	report := reconcileDay(t, record("teacher", domain.RoleTeacher, "s1"))

	if len(report.Pairs) != 1 || report.Pairs[0].Status != StatusMissingData {
		t.Fatalf("expected a single MISSING_DATA pair, got %+v", report.Pairs)
	}
	if report.Pairs[0].LeaderSession != nil {
		t.Fatalf("expected no leader session")
	}
}

func TestEngine_SurplusAndUnassignedRecords(t *testing.T) {
	t.Parallel()

	legacy := record("legacy", "", "s1")
	report := reconcileDay(t,
		record("teacher-a", domain.RoleTeacher, "s1"),
		record("teacher-b", domain.RoleTeacher, "s1"),
		record("leader", domain.RoleTeamLeader, "s1"),
		legacy,
	)

	pair := report.Pairs[0]
	if pair.Status != StatusMatched {
		t.Fatalf("expected MATCHED, got %s", pair.Status)
	}
	if !slices.Equal(pair.Ignored, []string{"teacher-b"}) {
		t.Fatalf("expected teacher-b to be ignored, got %v", pair.Ignored)
	}
	if !slices.Equal(report.Unassigned, []string{"legacy"}) {
		t.Fatalf("expected legacy to be unassigned, got %v", report.Unassigned)
	}
}

func TestEngine_FiltersByCourseAndRange(t *testing.T) {
	t.Parallel()

	otherCourse := record("other-course", domain.RoleTeacher)
	otherCourse.CourseID = "c2"
	nextDay := record("next-day", domain.RoleTeacher)
	nextDay.Start = slot.Add(24 * time.Hour)
	nextDay.End = nextDay.Start.Add(time.Hour)
	lastMinute := record("late", domain.RoleTeacher)
	lastMinute.Start = time.Date(2024, time.July, 28, 23, 59, 0, 0, time.UTC)
	lastMinute.End = lastMinute.Start.Add(time.Hour)

	report := reconcileDay(t, nextDay, otherCourse, lastMinute, record("teacher", domain.RoleTeacher))

	if len(report.Pairs) != 2 {
		t.Fatalf("expected two pairs, got %+v", report.Pairs)
	}
	if report.Pairs[0].TeacherSession.ID != "teacher" || report.Pairs[1].TeacherSession.ID != "late" {
		t.Fatalf("expected pairs ordered by slot, got %s then %s", report.Pairs[0].TeacherSession.ID, report.Pairs[1].TeacherSession.ID)
	}
}

func TestEngine_RejectsInvertedRange(t *testing.T) {
	t.Parallel()

	_, err := NewEngine(timewindow.NewCalendar(time.UTC)).Reconcile(context.Background(), Request{
		CourseID: "c1", From: day.Add(24 * time.Hour), To: day,
	}, nil)
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestEngine_CancelledReturnsNoReport(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewEngine(timewindow.NewCalendar(time.UTC)).Reconcile(ctx, Request{CourseID: "c1", From: day, To: day},
		[]domain.Session{record("teacher", domain.RoleTeacher)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(report.Pairs) != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	got := Diff([]string{"s3", "s1", "s1"}, []string{"s2", "s1"}, nil)
	want := []Difference{
		{StudentID: "s2", Side: SideLeaderOnly},
		{StudentID: "s3", Side: SideTeacherOnly},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if !Matches([]string{"a", "b", "a"}, []string{"b", "a"}) {
		t.Fatalf("expected sets to match regardless of order and repeats")
	}
}
