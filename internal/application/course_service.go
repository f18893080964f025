package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/timewindow"
)

// CourseService manages courses and their rosters.
type CourseService struct {
	repos       Repositories
	calendar    timewindow.Calendar
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewCourseService constructs a course service with the provided dependencies.
func NewCourseService(repos Repositories, calendar timewindow.Calendar, idGenerator func() string, now func() time.Time) *CourseService {
	return NewCourseServiceWithLogger(repos, calendar, idGenerator, now, nil)
}

// NewCourseServiceWithLogger constructs a course service with a specified logger.
func NewCourseServiceWithLogger(repos Repositories, calendar timewindow.Calendar, idGenerator func() string, now func() time.Time, logger *slog.Logger) *CourseService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &CourseService{repos: repos, calendar: calendar, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *CourseService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CourseService", operation, attrs...)
}

// CreateCourse validates input and persists a new course.
func (s *CourseService) CreateCourse(ctx context.Context, input CourseInput) (course domain.Course, err error) {
	if s == nil {
		err = fmt.Errorf("CourseService is nil")
		return
	}
	logger := s.loggerWith(ctx, "CreateCourse", "course_number", input.CourseNumber)
	defer func() {
		logOutcome(ctx, logger, err, "course created", "course_id", course.ID)
	}()

	startDate, endDate, vErr := s.validateCourseInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	course = domain.Course{
		ID:           s.idGenerator(),
		Name:         strings.TrimSpace(input.Name),
		CourseNumber: strings.TrimSpace(input.CourseNumber),
		StartDate:    startDate,
		EndDate:      endDate,
		CreatedAt:    s.now(),
	}
	course.UpdatedAt = course.CreatedAt

	var persisted domain.Course
	persisted, err = s.repos.Courses.CreateCourse(ctx, course)
	if err != nil {
		err = mapRepoError("create course", err)
		course = domain.Course{}
		return
	}
	course = persisted
	return
}

// GetCourse returns a stored course.
func (s *CourseService) GetCourse(ctx context.Context, id string) (domain.Course, error) {
	if s == nil {
		return domain.Course{}, fmt.Errorf("CourseService is nil")
	}
	course, err := s.repos.Courses.GetCourse(ctx, id)
	if err != nil {
		return domain.Course{}, mapRepoError("get course", err)
	}
	return course, nil
}

// ListCourses returns every course ordered by start date, then ID.
func (s *CourseService) ListCourses(ctx context.Context) ([]domain.Course, error) {
	if s == nil {
		return nil, fmt.Errorf("CourseService is nil")
	}
	courses, err := s.repos.Courses.ListCourses(ctx)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, mapRepoError("list courses", err)
	}
	sort.SliceStable(courses, func(i, j int) bool {
		if courses[i].StartDate.Equal(courses[j].StartDate) {
			return courses[i].ID < courses[j].ID
		}
		return courses[i].StartDate.Before(courses[j].StartDate)
	})
	return courses, nil
}

// AddStudent enrolls a student in an existing course.
func (s *CourseService) AddStudent(ctx context.Context, input StudentInput) (student domain.Student, err error) {
	if s == nil {
		err = fmt.Errorf("CourseService is nil")
		return
	}
	logger := s.loggerWith(ctx, "AddStudent", "course_id", input.CourseID)
	defer func() {
		logOutcome(ctx, logger, err, "student enrolled", "student_id", student.ID)
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if vErr.HasErrors() {
		vErr.Message = "student fields are invalid"
		err = vErr
		return
	}

	if _, err = s.GetCourse(ctx, input.CourseID); err != nil {
		return
	}

	student = domain.Student{
		ID:        s.idGenerator(),
		CourseID:  input.CourseID,
		Name:      strings.TrimSpace(input.Name),
		CreatedAt: s.now(),
	}
	var persisted domain.Student
	persisted, err = s.repos.Students.CreateStudent(ctx, student)
	if err != nil {
		err = mapRepoError("create student", err)
		student = domain.Student{}
		return
	}
	student = persisted
	return
}

// ListStudents returns the roster of an existing course ordered by name.
func (s *CourseService) ListStudents(ctx context.Context, courseID string) ([]domain.Student, error) {
	if s == nil {
		return nil, fmt.Errorf("CourseService is nil")
	}
	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	students, err := s.repos.Students.ListStudents(ctx, courseID)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, mapRepoError("list students", err)
	}
	sort.SliceStable(students, func(i, j int) bool {
		if students[i].Name == students[j].Name {
			return students[i].ID < students[j].ID
		}
		return students[i].Name < students[j].Name
	})
	return students, nil
}

func (s *CourseService) validateCourseInput(input CourseInput) (time.Time, time.Time, *ValidationError) {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}

	startDate, err := s.calendar.ParseDate(input.StartDate)
	if err != nil {
		vErr.add("start_date", "start_date must be a date in YYYY-MM-DD form")
	}
	endDate, err := s.calendar.ParseDate(input.EndDate)
	if err != nil {
		vErr.add("end_date", "end_date must be a date in YYYY-MM-DD form")
	}
	if vErr.HasErrors() {
		vErr.Message = "course fields are invalid"
		return time.Time{}, time.Time{}, vErr
	}

	if endDate.Before(startDate) {
		return time.Time{}, time.Time{}, &ValidationError{
			Kind:        KindInvertedRange,
			Message:     "course end date precedes its start date",
			FieldErrors: map[string]string{"end_date": "end_date must not precede start_date"},
		}
	}
	return startDate, endDate, vErr
}
