package storage

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/example/session-integrity/internal/application"
	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/persistence"
	"github.com/example/session-integrity/internal/persistence/memory"
	"github.com/example/session-integrity/internal/timewindow"
)

func tokyo(t *testing.T) timewindow.Calendar {
	t.Helper()
	cal, err := timewindow.LoadCalendar("Asia/Tokyo")
	if err != nil {
		t.Fatalf("LoadCalendar returned error: %v", err)
	}
	return cal
}

func TestRepositoriesKeepCivilCourseDates(t *testing.T) {
	cal := tokyo(t)
	store := memory.New()
	repos := NewRepositories(store, cal)
	ctx := context.Background()

	start, _ := cal.ParseDate("2024-07-01")
	end, _ := cal.ParseDate("2024-07-31")
	if _, err := repos.Courses.CreateCourse(ctx, domain.Course{ID: "c1", Name: "Forklift", StartDate: start, EndDate: end}); err != nil {
		t.Fatalf("CreateCourse returned error: %v", err)
	}

	row, err := store.GetCourse(ctx, "c1")
	if err != nil {
		t.Fatalf("GetCourse returned error: %v", err)
	}
	// Midnight in Tokyo is the previous day in UTC; the stored date must not shift.
	if row.StartDate != "2024-07-01" || row.EndDate != "2024-07-31" {
		t.Fatalf("expected civil dates, got %s..%s", row.StartDate, row.EndDate)
	}

	course, err := repos.Courses.GetCourse(ctx, "c1")
	if err != nil {
		t.Fatalf("GetCourse returned error: %v", err)
	}
	if !course.StartDate.Equal(start) || course.StartDate.Location() != cal.Location() {
		t.Fatalf("expected Tokyo midnight, got %v", course.StartDate)
	}
}

func TestRepositoriesSessionRoundTrip(t *testing.T) {
	cal := tokyo(t)
	store := memory.New()
	repos := NewRepositories(store, cal)
	ctx := context.Background()
	_ = store.CreateCourse(ctx, persistence.Course{ID: "c1", StartDate: "2024-07-01", EndDate: "2024-07-31"})

	start := time.Date(2024, time.July, 28, 9, 0, 0, 0, cal.Location())
	session := domain.Session{
		ID:          "s1",
		CourseID:    "c1",
		TeacherID:   "t1",
		Start:       start,
		End:         start.Add(2 * time.Hour),
		Type:        domain.SessionPractice,
		AttendeeIDs: []string{"b", "a", "b"},
		CreatedBy:   domain.RoleTeamLeader,
	}
	if _, err := repos.Sessions.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	row, _ := store.GetSession(ctx, "s1")
	if row.CreatorID != nil || row.VehicleID != nil || row.CreatedBy == nil || *row.CreatedBy != "team_leader" {
		t.Fatalf("expected empty optionals stored as NULL, got %+v", row)
	}

	got, err := repos.Sessions.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession returned error: %v", err)
	}
	if !got.Start.Equal(start) || got.CreatedBy != domain.RoleTeamLeader || got.Type != domain.SessionPractice {
		t.Fatalf("unexpected session %+v", got)
	}
	if !slices.Equal(got.AttendeeIDs, []string{"a", "b"}) {
		t.Fatalf("expected normalized attendees, got %v", got.AttendeeIDs)
	}

	listed, err := repos.Sessions.ListSessions(ctx, application.SessionFilter{TeacherID: "t1"})
	if err != nil || len(listed) != 1 {
		t.Fatalf("expected one listed session, got %v, %v", listed, err)
	}
	if _, err := repos.Sessions.GetSession(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected persistence.ErrNotFound to pass through, got %v", err)
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, Options{Driver: "MEMORY"}, nil)
	if err != nil {
		t.Fatalf("Open(memory) returned error: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected a memory store, got %T", store)
	}

	if _, err := Open(ctx, Options{Driver: "oracle"}, nil); err == nil {
		t.Fatalf("expected unknown driver to fail")
	}

	sqliteStore, err := Open(ctx, Options{Driver: DriverSQLite, SQLiteDSN: t.TempDir() + "/integrity.db"}, nil)
	if err != nil {
		t.Fatalf("Open(sqlite) returned error: %v", err)
	}
	t.Cleanup(func() { _ = sqliteStore.Close() })
	if _, err := sqliteStore.ListCourses(ctx); err != nil {
		t.Fatalf("expected migrated schema, got %v", err)
	}
}
