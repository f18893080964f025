package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/example/session-integrity/internal/application"
	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/persistence"
	"github.com/example/session-integrity/internal/timewindow"
)

// NewRepositories adapts store to the application repositories. Course
// dates are civil dates interpreted in cal.
func NewRepositories(store persistence.Store, cal timewindow.Calendar) application.Repositories {
	return application.Repositories{
		Sessions: sessionRepository{store: store},
		Courses:  courseRepository{store: store, cal: cal},
		Students: studentRepository{store: store},
	}
}

type sessionRepository struct {
	store persistence.SessionRepository
}

func (r sessionRepository) CreateSession(ctx context.Context, session domain.Session) (domain.Session, error) {
	if err := r.store.CreateSession(ctx, toPersistenceSession(session)); err != nil {
		return domain.Session{}, err
	}
	return session.Clone(), nil
}

func (r sessionRepository) UpdateSession(ctx context.Context, session domain.Session) (domain.Session, error) {
	if err := r.store.UpdateSession(ctx, toPersistenceSession(session)); err != nil {
		return domain.Session{}, err
	}
	return session.Clone(), nil
}

func (r sessionRepository) GetSession(ctx context.Context, id string) (domain.Session, error) {
	row, err := r.store.GetSession(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	return toDomainSession(row), nil
}

func (r sessionRepository) DeleteSession(ctx context.Context, id string) error {
	return r.store.DeleteSession(ctx, id)
}

func (r sessionRepository) ListSessions(ctx context.Context, filter application.SessionFilter) ([]domain.Session, error) {
	rows, err := r.store.ListSessions(ctx, persistence.SessionFilter{
		CourseID:     filter.CourseID,
		TeacherID:    filter.TeacherID,
		StartsAfter:  filter.StartsAfter,
		StartsBefore: filter.StartsBefore,
	})
	if err != nil {
		return nil, err
	}
	sessions := make([]domain.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, toDomainSession(row))
	}
	return sessions, nil
}

type courseRepository struct {
	store persistence.CourseRepository
	cal   timewindow.Calendar
}

func (r courseRepository) CreateCourse(ctx context.Context, course domain.Course) (domain.Course, error) {
	if err := r.store.CreateCourse(ctx, persistence.Course{
		ID:           course.ID,
		Name:         course.Name,
		CourseNumber: course.CourseNumber,
		StartDate:    r.cal.DayBucket(course.StartDate),
		EndDate:      r.cal.DayBucket(course.EndDate),
		CreatedAt:    course.CreatedAt,
		UpdatedAt:    course.UpdatedAt,
	}); err != nil {
		return domain.Course{}, err
	}
	return course, nil
}

func (r courseRepository) GetCourse(ctx context.Context, id string) (domain.Course, error) {
	row, err := r.store.GetCourse(ctx, id)
	if err != nil {
		return domain.Course{}, err
	}
	return r.toDomain(row)
}

func (r courseRepository) ListCourses(ctx context.Context) ([]domain.Course, error) {
	rows, err := r.store.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	courses := make([]domain.Course, 0, len(rows))
	for _, row := range rows {
		course, err := r.toDomain(row)
		if err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	return courses, nil
}

func (r courseRepository) toDomain(row persistence.Course) (domain.Course, error) {
	start, err := r.cal.ParseDate(row.StartDate)
	if err != nil {
		return domain.Course{}, fmt.Errorf("course %s: start_date %q: %w", row.ID, row.StartDate, err)
	}
	end, err := r.cal.ParseDate(row.EndDate)
	if err != nil {
		return domain.Course{}, fmt.Errorf("course %s: end_date %q: %w", row.ID, row.EndDate, err)
	}
	return domain.Course{
		ID:           row.ID,
		Name:         row.Name,
		CourseNumber: row.CourseNumber,
		StartDate:    start,
		EndDate:      end,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

type studentRepository struct {
	store persistence.StudentRepository
}

func (r studentRepository) CreateStudent(ctx context.Context, student domain.Student) (domain.Student, error) {
	if err := r.store.CreateStudent(ctx, persistence.Student(student)); err != nil {
		return domain.Student{}, err
	}
	return student, nil
}

func (r studentRepository) ListStudents(ctx context.Context, courseID string) ([]domain.Student, error) {
	rows, err := r.store.ListStudents(ctx, courseID)
	if err != nil {
		return nil, err
	}
	students := make([]domain.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, domain.Student(row))
	}
	return students, nil
}

func toPersistenceSession(s domain.Session) persistence.Session {
	return persistence.Session{
		ID:          s.ID,
		CourseID:    s.CourseID,
		TeacherID:   s.TeacherID,
		Start:       s.Start.UTC(),
		End:         s.End.UTC(),
		Type:        string(s.Type),
		Content:     s.Content,
		AttendeeIDs: domain.NormalizeIDs(s.AttendeeIDs),
		CreatorID:   optional(s.CreatorID),
		CreatedBy:   optional(string(s.CreatedBy)),
		VehicleID:   optional(s.VehicleID),
		CreatedAt:   utc(s.CreatedAt),
		UpdatedAt:   utc(s.UpdatedAt),
	}
}

func toDomainSession(row persistence.Session) domain.Session {
	return domain.Session{
		ID:          row.ID,
		CourseID:    row.CourseID,
		TeacherID:   row.TeacherID,
		Start:       row.Start,
		End:         row.End,
		Type:        domain.SessionType(row.Type),
		Content:     row.Content,
		AttendeeIDs: row.AttendeeIDs,
		CreatorID:   deref(row.CreatorID),
		CreatedBy:   domain.Role(deref(row.CreatedBy)),
		VehicleID:   deref(row.VehicleID),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
