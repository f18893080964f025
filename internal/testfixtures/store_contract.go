package testfixtures

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/example/session-integrity/internal/persistence"
)

// RunStoreContract checks the behavior every persistence.Store backend
// shares. open must return an empty, migrated store.
func RunStoreContract(t *testing.T, open func(t *testing.T) persistence.Store) {
	t.Helper()

	t.Run("courses", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		later := NewCourseFixture(WithCourseDates("2024-09-01", "2024-09-30")).Persistence()
		earlier := NewCourseFixture().Persistence()
		for _, c := range []persistence.Course{later, earlier} {
			if err := store.CreateCourse(ctx, c); err != nil {
				t.Fatalf("CreateCourse(%s) returned error: %v", c.ID, err)
			}
		}
		if err := store.CreateCourse(ctx, earlier); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}

		got, err := store.GetCourse(ctx, earlier.ID)
		if err != nil {
			t.Fatalf("GetCourse returned error: %v", err)
		}
		if got.StartDate != "2024-07-01" || got.EndDate != "2024-07-31" || !got.CreatedAt.Equal(earlier.CreatedAt) {
			t.Fatalf("unexpected course %+v", got)
		}
		if _, err := store.GetCourse(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		courses, err := store.ListCourses(ctx)
		if err != nil {
			t.Fatalf("ListCourses returned error: %v", err)
		}
		if len(courses) != 2 || courses[0].ID != earlier.ID {
			t.Fatalf("expected courses ordered by start date, got %+v", courses)
		}

		earlier.Name = "Renamed"
		earlier.UpdatedAt = earlier.CreatedAt.Add(time.Hour)
		if err := store.UpdateCourse(ctx, earlier); err != nil {
			t.Fatalf("UpdateCourse returned error: %v", err)
		}
		if got, _ := store.GetCourse(ctx, earlier.ID); got.Name != "Renamed" {
			t.Fatalf("expected rename to persist, got %q", got.Name)
		}
		missing := NewCourseFixture().Persistence()
		if err := store.UpdateCourse(ctx, missing); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on update, got %v", err)
		}
	})

	t.Run("sessions", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		course := NewCourseFixture().Persistence()
		if err := store.CreateCourse(ctx, course); err != nil {
			t.Fatalf("CreateCourse returned error: %v", err)
		}

		base := time.Date(2024, time.July, 28, 9, 0, 0, 0, time.UTC)
		first := NewSessionFixture(course.ID,
			WithSessionAttendees("s2", "s1"),
			WithSessionCreator("user-7"),
			WithSessionVehicle("truck-3"),
		).Persistence()
		second := NewSessionFixture(course.ID,
			WithSessionTimes(base.Add(3*time.Hour), base.Add(4*time.Hour)),
			WithSessionTeacher("teacher-2"),
			WithSessionCreatedBy(""),
		).Persistence()
		for _, s := range []persistence.Session{second, first} {
			if err := store.CreateSession(ctx, s); err != nil {
				t.Fatalf("CreateSession(%s) returned error: %v", s.ID, err)
			}
		}

		got, err := store.GetSession(ctx, first.ID)
		if err != nil {
			t.Fatalf("GetSession returned error: %v", err)
		}
		if !got.Start.Equal(first.Start) || !got.End.Equal(first.End) || !got.CreatedAt.Equal(first.CreatedAt) {
			t.Fatalf("timestamps did not round-trip: %+v", got)
		}
		if !slices.Equal(got.AttendeeIDs, []string{"s1", "s2"}) {
			t.Fatalf("expected sorted attendees, got %v", got.AttendeeIDs)
		}
		if got.CreatorID == nil || *got.CreatorID != "user-7" || got.VehicleID == nil || *got.VehicleID != "truck-3" {
			t.Fatalf("optional fields did not round-trip: %+v", got)
		}
		if other, _ := store.GetSession(ctx, second.ID); other.CreatedBy != nil || other.CreatorID != nil {
			t.Fatalf("expected NULL creator fields, got %+v", other)
		}

		orphan := NewSessionFixture("no-such-course").Persistence()
		if err := store.CreateSession(ctx, orphan); !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
		}
		if err := store.CreateSession(ctx, first); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}

		all, err := store.ListSessions(ctx, persistence.SessionFilter{})
		if err != nil {
			t.Fatalf("ListSessions returned error: %v", err)
		}
		if len(all) != 2 || all[0].ID != first.ID {
			t.Fatalf("expected sessions ordered by start, got %+v", all)
		}

		// Bounds are inclusive.
		from, to := second.Start, second.Start
		window, err := store.ListSessions(ctx, persistence.SessionFilter{CourseID: course.ID, StartsAfter: &from, StartsBefore: &to})
		if err != nil {
			t.Fatalf("ListSessions returned error: %v", err)
		}
		if len(window) != 1 || window[0].ID != second.ID {
			t.Fatalf("expected only the second session, got %+v", window)
		}
		byTeacher, err := store.ListSessions(ctx, persistence.SessionFilter{TeacherID: "teacher-1"})
		if err != nil || len(byTeacher) != 1 || byTeacher[0].ID != first.ID {
			t.Fatalf("expected teacher filter to match first, got %+v, %v", byTeacher, err)
		}

		first.AttendeeIDs = []string{"s3"}
		first.End = first.End.Add(30 * time.Minute)
		if err := store.UpdateSession(ctx, first); err != nil {
			t.Fatalf("UpdateSession returned error: %v", err)
		}
		got, _ = store.GetSession(ctx, first.ID)
		if !slices.Equal(got.AttendeeIDs, []string{"s3"}) || !got.End.Equal(first.End) {
			t.Fatalf("update did not replace attendees and end: %+v", got)
		}
		if err := store.UpdateSession(ctx, orphan); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on update, got %v", err)
		}

		if err := store.DeleteSession(ctx, first.ID); err != nil {
			t.Fatalf("DeleteSession returned error: %v", err)
		}
		if err := store.DeleteSession(ctx, first.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
		if _, err := store.GetSession(ctx, first.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected deleted session to be gone, got %v", err)
		}
	})

	t.Run("students", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		course := NewCourseFixture().Persistence()
		if err := store.CreateCourse(ctx, course); err != nil {
			t.Fatalf("CreateCourse returned error: %v", err)
		}

		ben := NewStudent(course.ID, "Ben")
		aiko := NewStudent(course.ID, "Aiko")
		for _, s := range []persistence.Student{ben, aiko} {
			if err := store.CreateStudent(ctx, s); err != nil {
				t.Fatalf("CreateStudent returned error: %v", err)
			}
		}
		if err := store.CreateStudent(ctx, NewStudent("no-such-course", "Cho")); !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
		}

		roster, err := store.ListStudents(ctx, course.ID)
		if err != nil {
			t.Fatalf("ListStudents returned error: %v", err)
		}
		if len(roster) != 2 || roster[0].Name != "Aiko" || roster[1].ID != ben.ID {
			t.Fatalf("expected roster ordered by name, got %+v", roster)
		}
		if empty, err := store.ListStudents(ctx, "other"); err != nil || len(empty) != 0 {
			t.Fatalf("expected empty roster, got %+v, %v", empty, err)
		}
	})
}
