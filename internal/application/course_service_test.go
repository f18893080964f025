package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/session-integrity/internal/timewindow"
)

func newCourseService(store *storeStub) *CourseService {
	return NewCourseService(store.repos(), timewindow.NewCalendar(time.UTC), sequentialIDs("course"), fixedNow)
}

func TestCourseService_CreateCourse(t *testing.T) {
	t.Parallel()

	store := newStoreStub()
	svc := newCourseService(store)

	course, err := svc.CreateCourse(context.Background(), CourseInput{
		Name:         "  Forklift basics ",
		CourseNumber: "F-101",
		StartDate:    "2024-07-01",
		EndDate:      "2024-07-31",
	})
	if err != nil {
		t.Fatalf("CreateCourse returned error: %v", err)
	}
	if course.ID != "course-01" || course.Name != "Forklift basics" {
		t.Fatalf("unexpected course %+v", course)
	}
	if !course.StartDate.Equal(july(1, 0, 0)) || !course.EndDate.Equal(july(31, 0, 0)) {
		t.Fatalf("expected calendar midnights, got %v and %v", course.StartDate, course.EndDate)
	}
}

func TestCourseService_CreateCourseValidation(t *testing.T) {
	t.Parallel()

	svc := newCourseService(newStoreStub())

	_, err := svc.CreateCourse(context.Background(), CourseInput{StartDate: "July 1", EndDate: "2024-07-31"})
	vErr := expectKind(t, err, KindInvalidField)
	for _, field := range []string{"name", "start_date"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Fatalf("expected field error for %s, got %v", field, vErr.FieldErrors)
		}
	}

	_, err = svc.CreateCourse(context.Background(), CourseInput{Name: "x", StartDate: "2024-07-31", EndDate: "2024-07-01"})
	expectKind(t, err, KindInvertedRange)

	// A one-day course is valid.
	if _, err := svc.CreateCourse(context.Background(), CourseInput{Name: "x", StartDate: "2024-07-01", EndDate: "2024-07-01"}); err != nil {
		t.Fatalf("expected single-day course to be accepted, got %v", err)
	}
}

func TestCourseService_Roster(t *testing.T) {
	t.Parallel()

	store := seededStore()
	svc := newCourseService(store)

	for _, name := range []string{"Ben", "Aiko"} {
		if _, err := svc.AddStudent(context.Background(), StudentInput{CourseID: "c1", Name: name}); err != nil {
			t.Fatalf("AddStudent returned error: %v", err)
		}
	}
	students, err := svc.ListStudents(context.Background(), "c1")
	if err != nil {
		t.Fatalf("ListStudents returned error: %v", err)
	}
	if len(students) != 2 || students[0].Name != "Aiko" {
		t.Fatalf("expected roster ordered by name, got %+v", students)
	}

	if _, err := svc.AddStudent(context.Background(), StudentInput{CourseID: "c9", Name: "Cho"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown course, got %v", err)
	}
	if _, err := svc.ListStudents(context.Background(), "c9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown course, got %v", err)
	}
}
