// Package memory provides a map-backed persistence.Store for tests and
// ephemeral runs. It enforces the same keys and references as the SQL stores.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/example/session-integrity/internal/persistence"
)

// Store keeps courses, sessions and students in process memory.
type Store struct {
	mu       sync.RWMutex
	courses  map[string]persistence.Course
	sessions map[string]persistence.Session
	students map[string]persistence.Student
}

var _ persistence.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		courses:  make(map[string]persistence.Course),
		sessions: make(map[string]persistence.Session),
		students: make(map[string]persistence.Student),
	}
}

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// --- CourseRepository implementation ---

func (s *Store) CreateCourse(ctx context.Context, course persistence.Course) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[course.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.courses[course.ID] = course
	return nil
}

func (s *Store) UpdateCourse(ctx context.Context, course persistence.Course) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.courses[course.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	course.CreatedAt = current.CreatedAt
	s.courses[course.ID] = course
	return nil
}

func (s *Store) GetCourse(ctx context.Context, id string) (persistence.Course, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Course{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	course, ok := s.courses[id]
	if !ok {
		return persistence.Course{}, persistence.ErrNotFound
	}
	return course, nil
}

// ListCourses returns courses ordered by start date then ID.
func (s *Store) ListCourses(ctx context.Context) ([]persistence.Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	courses := make([]persistence.Course, 0, len(s.courses))
	for _, course := range s.courses {
		courses = append(courses, course)
	}
	sort.Slice(courses, func(i, j int) bool {
		if courses[i].StartDate == courses[j].StartDate {
			return courses[i].ID < courses[j].ID
		}
		return courses[i].StartDate < courses[j].StartDate
	})
	return courses, nil
}

// --- SessionRepository implementation ---

func (s *Store) CreateSession(ctx context.Context, session persistence.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return persistence.ErrDuplicate
	}
	if _, ok := s.courses[session.CourseID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	s.sessions[session.ID] = storedSession(session)
	return nil
}

func (s *Store) UpdateSession(ctx context.Context, session persistence.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[session.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if _, ok := s.courses[session.CourseID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	session.CreatedAt = current.CreatedAt
	s.sessions[session.ID] = storedSession(session)
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Session{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

// ListSessions returns matching sessions ordered by start then ID.
func (s *Store) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []persistence.Session
	for _, session := range s.sessions {
		if filter.CourseID != "" && session.CourseID != filter.CourseID {
			continue
		}
		if filter.TeacherID != "" && session.TeacherID != filter.TeacherID {
			continue
		}
		if filter.StartsAfter != nil && session.Start.Before(*filter.StartsAfter) {
			continue
		}
		if filter.StartsBefore != nil && session.Start.After(*filter.StartsBefore) {
			continue
		}
		sessions = append(sessions, cloneSession(session))
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].Start.Equal(sessions[j].Start) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].Start.Before(sessions[j].Start)
	})
	return sessions, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// --- StudentRepository implementation ---

func (s *Store) CreateStudent(ctx context.Context, student persistence.Student) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[student.ID]; ok {
		return persistence.ErrDuplicate
	}
	if _, ok := s.courses[student.CourseID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	s.students[student.ID] = student
	return nil
}

// ListStudents returns the course roster ordered by name then ID.
func (s *Store) ListStudents(ctx context.Context, courseID string) ([]persistence.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var students []persistence.Student
	for _, student := range s.students {
		if student.CourseID == courseID {
			students = append(students, student)
		}
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].Name == students[j].Name {
			return students[i].ID < students[j].ID
		}
		return students[i].Name < students[j].Name
	})
	return students, nil
}

// storedSession mirrors the attendee table of the SQL stores: one row per
// student, read back in ID order.
func storedSession(session persistence.Session) persistence.Session {
	session = cloneSession(session)
	slices.Sort(session.AttendeeIDs)
	session.AttendeeIDs = slices.Compact(session.AttendeeIDs)
	if len(session.AttendeeIDs) == 0 {
		session.AttendeeIDs = nil
	}
	return session
}

func cloneSession(session persistence.Session) persistence.Session {
	session.AttendeeIDs = append([]string(nil), session.AttendeeIDs...)
	session.CreatorID = cloneString(session.CreatorID)
	session.CreatedBy = cloneString(session.CreatedBy)
	session.VehicleID = cloneString(session.VehicleID)
	return session
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
