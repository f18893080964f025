package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/persistence"
)

// storeStub is a goroutine-safe in-memory backing for the repository
// interfaces. Setting an error field makes the matching call fail.
type storeStub struct {
	mu       sync.Mutex
	courses  map[string]domain.Course
	sessions map[string]domain.Session
	students map[string]domain.Student

	listErr   error
	rosterErr error
	createErr error
	deleteErr map[string]error
	deleted   []string
}

func newStoreStub() *storeStub {
	return &storeStub{
		courses:   make(map[string]domain.Course),
		sessions:  make(map[string]domain.Session),
		students:  make(map[string]domain.Student),
		deleteErr: make(map[string]error),
	}
}

func (s *storeStub) repos() Repositories {
	return Repositories{Sessions: s, Courses: s, Students: s}
}

func (s *storeStub) CreateSession(ctx context.Context, session domain.Session) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return domain.Session{}, s.createErr
	}
	if _, ok := s.sessions[session.ID]; ok {
		return domain.Session{}, persistence.ErrDuplicate
	}
	s.sessions[session.ID] = session.Clone()
	return session.Clone(), nil
}

func (s *storeStub) UpdateSession(ctx context.Context, session domain.Session) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return domain.Session{}, persistence.ErrNotFound
	}
	s.sessions[session.ID] = session.Clone()
	return session.Clone(), nil
}

func (s *storeStub) GetSession(ctx context.Context, id string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, persistence.ErrNotFound
	}
	return session.Clone(), nil
}

func (s *storeStub) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deleteErr[id]; err != nil {
		return err
	}
	if _, ok := s.sessions[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.sessions, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *storeStub) ListSessions(ctx context.Context, filter SessionFilter) ([]domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.Session
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
		out = append(out, session.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *storeStub) CreateCourse(ctx context.Context, course domain.Course) (domain.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[course.ID]; ok {
		return domain.Course{}, persistence.ErrDuplicate
	}
	s.courses[course.ID] = course
	return course, nil
}

func (s *storeStub) GetCourse(ctx context.Context, id string) (domain.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	course, ok := s.courses[id]
	if !ok {
		return domain.Course{}, persistence.ErrNotFound
	}
	return course, nil
}

func (s *storeStub) ListCourses(ctx context.Context) ([]domain.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Course, 0, len(s.courses))
	for _, c := range s.courses {
		out = append(out, c)
	}
	return out, nil
}

func (s *storeStub) CreateStudent(ctx context.Context, student domain.Student) (domain.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[student.ID] = student
	return student, nil
}

func (s *storeStub) ListStudents(ctx context.Context, courseID string) ([]domain.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rosterErr != nil {
		return nil, s.rosterErr
	}
	var out []domain.Student
	for _, st := range s.students {
		if st.CourseID == courseID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *storeStub) putSession(session domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
}

func (s *storeStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func july(day, hour, minute int) time.Time {
	return time.Date(2024, time.July, day, hour, minute, 0, 0, time.UTC)
}

func seededStore() *storeStub {
	store := newStoreStub()
	store.courses["c1"] = domain.Course{
		ID:        "c1",
		Name:      "Forklift basics",
		StartDate: july(1, 0, 0),
		EndDate:   july(31, 0, 0),
	}
	return store
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%02d", prefix, n)
	}
}

func fixedNow() time.Time {
	return july(27, 12, 0)
}
