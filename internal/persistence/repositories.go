package persistence

import (
	"context"
	"time"
)

// CourseRepository stores courses.
type CourseRepository interface {
	CreateCourse(ctx context.Context, course Course) error
	UpdateCourse(ctx context.Context, course Course) error
	GetCourse(ctx context.Context, id string) (Course, error)
	ListCourses(ctx context.Context) ([]Course, error)
}

// SessionFilter narrows session queries by start time. Bounds are inclusive
// and zero values do not filter.
type SessionFilter struct {
	CourseID     string
	TeacherID    string
	StartsAfter  *time.Time
	StartsBefore *time.Time
}

// SessionRepository stores sessions and their attendee lists.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	UpdateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// StudentRepository stores course enrollment.
type StudentRepository interface {
	CreateStudent(ctx context.Context, student Student) error
	ListStudents(ctx context.Context, courseID string) ([]Student, error)
}

// Store bundles the repositories a backend provides.
type Store interface {
	CourseRepository
	SessionRepository
	StudentRepository
	Migrate(ctx context.Context) error
	Close() error
}
