package application

import (
	"context"
	"errors"
	"time"

	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/persistence"
)

// SessionFilter narrows repository queries. Bounds are inclusive; nil and
// empty fields do not filter.
type SessionFilter struct {
	CourseID     string
	TeacherID    string
	StartsAfter  *time.Time
	StartsBefore *time.Time
}

// SessionRepository captures the session persistence used by the services.
type SessionRepository interface {
	CreateSession(ctx context.Context, session domain.Session) (domain.Session, error)
	UpdateSession(ctx context.Context, session domain.Session) (domain.Session, error)
	GetSession(ctx context.Context, id string) (domain.Session, error)
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context, filter SessionFilter) ([]domain.Session, error)
}

// CourseRepository captures the course persistence used by the services.
type CourseRepository interface {
	CreateCourse(ctx context.Context, course domain.Course) (domain.Course, error)
	GetCourse(ctx context.Context, id string) (domain.Course, error)
	ListCourses(ctx context.Context) ([]domain.Course, error)
}

// StudentRepository captures course enrollment.
type StudentRepository interface {
	CreateStudent(ctx context.Context, student domain.Student) (domain.Student, error)
	ListStudents(ctx context.Context, courseID string) ([]domain.Student, error)
}

// Repositories bundles the stores a service reads and writes.
type Repositories struct {
	Sessions SessionRepository
	Courses  CourseRepository
	Students StudentRepository
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}

// mapRepoError converts repository failures into the application taxonomy.
// Anything that is not a recognized outcome is an access failure.
func mapRepoError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isNotFoundError(err):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{Message: "referenced record does not exist"}
		vErr.add("course_id", "related records are missing")
		return vErr
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{Message: "record violates a storage constraint"}
		vErr.add("record", err.Error())
		return vErr
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return dataAccess(op, err)
}
