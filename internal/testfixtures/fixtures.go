package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/persistence"
)

var (
	courseCounter  uint64
	sessionCounter uint64
	studentCounter uint64
)

// referenceTime is whole-second UTC so every backend round-trips it exactly.
var referenceTime = time.Date(2024, time.July, 27, 3, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Course fixtures -----------------------------

// CourseFixture is a deterministic course row running through July 2024.
type CourseFixture struct {
	ID           string
	Name         string
	CourseNumber string
	StartDate    string
	EndDate      string
	CreatedAt    time.Time
}

// CourseOption configures a CourseFixture.
type CourseOption func(*CourseFixture)

// NewCourseFixture returns a course fixture with optional overrides.
func NewCourseFixture(opts ...CourseOption) CourseFixture {
	idx := atomic.AddUint64(&courseCounter, 1)
	fixture := CourseFixture{
		ID:           fmt.Sprintf("course-%03d", idx),
		Name:         fmt.Sprintf("Course %03d", idx),
		CourseNumber: fmt.Sprintf("C-%03d", idx),
		StartDate:    "2024-07-01",
		EndDate:      "2024-07-31",
		CreatedAt:    referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithCourseID overrides the generated course ID.
func WithCourseID(id string) CourseOption {
	return func(f *CourseFixture) { f.ID = id }
}

// WithCourseDates overrides the civil start and end dates.
func WithCourseDates(start, end string) CourseOption {
	return func(f *CourseFixture) {
		f.StartDate = start
		f.EndDate = end
	}
}

// Persistence returns the fixture as a storage row.
func (f CourseFixture) Persistence() persistence.Course {
	return persistence.Course{
		ID:           f.ID,
		Name:         f.Name,
		CourseNumber: f.CourseNumber,
		StartDate:    f.StartDate,
		EndDate:      f.EndDate,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.CreatedAt,
	}
}

// ----------------------------- Session fixtures -----------------------------

// SessionFixture is a deterministic two-hour teacher session.
type SessionFixture struct {
	ID          string
	CourseID    string
	TeacherID   string
	Start       time.Time
	End         time.Time
	Type        domain.SessionType
	Content     string
	AttendeeIDs []string
	CreatorID   string
	CreatedBy   domain.Role
	VehicleID   string
	CreatedAt   time.Time
}

// SessionOption configures a SessionFixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a session on 2024-07-28 09:00 UTC for course.
func NewSessionFixture(courseID string, opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	start := time.Date(2024, time.July, 28, 9, 0, 0, 0, time.UTC)
	fixture := SessionFixture{
		ID:        fmt.Sprintf("session-%03d", idx),
		CourseID:  courseID,
		TeacherID: "teacher-1",
		Start:     start,
		End:       start.Add(2 * time.Hour),
		Type:      domain.SessionTheory,
		CreatedBy: domain.RoleTeacher,
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Second),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) { f.ID = id }
}

// WithSessionTeacher overrides the teacher.
func WithSessionTeacher(id string) SessionOption {
	return func(f *SessionFixture) { f.TeacherID = id }
}

// WithSessionTimes overrides the start and end instants.
func WithSessionTimes(start, end time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.Start = start
		f.End = end
	}
}

// WithSessionAttendees sets the attendee IDs.
func WithSessionAttendees(ids ...string) SessionOption {
	return func(f *SessionFixture) { f.AttendeeIDs = ids }
}

// WithSessionCreatedBy sets the recording role. An empty role leaves the
// record unattributed unless a creator ID is set.
func WithSessionCreatedBy(role domain.Role) SessionOption {
	return func(f *SessionFixture) { f.CreatedBy = role }
}

// WithSessionCreator sets the creator user ID.
func WithSessionCreator(id string) SessionOption {
	return func(f *SessionFixture) { f.CreatorID = id }
}

// WithSessionVehicle sets the practice vehicle.
func WithSessionVehicle(id string) SessionOption {
	return func(f *SessionFixture) { f.VehicleID = id }
}

// Domain returns the fixture as a domain.Session.
func (f SessionFixture) Domain() domain.Session {
	return domain.Session{
		ID:          f.ID,
		CourseID:    f.CourseID,
		TeacherID:   f.TeacherID,
		Start:       f.Start,
		End:         f.End,
		Type:        f.Type,
		Content:     f.Content,
		AttendeeIDs: append([]string(nil), f.AttendeeIDs...),
		CreatorID:   f.CreatorID,
		CreatedBy:   f.CreatedBy,
		VehicleID:   f.VehicleID,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.CreatedAt,
	}
}

// Persistence returns the fixture as a storage row. Empty optional fields
// become NULL.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:          f.ID,
		CourseID:    f.CourseID,
		TeacherID:   f.TeacherID,
		Start:       f.Start,
		End:         f.End,
		Type:        string(f.Type),
		Content:     f.Content,
		AttendeeIDs: append([]string(nil), f.AttendeeIDs...),
		CreatorID:   optional(f.CreatorID),
		CreatedBy:   optional(string(f.CreatedBy)),
		VehicleID:   optional(f.VehicleID),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.CreatedAt,
	}
}

// ----------------------------- Student fixtures -----------------------------

// NewStudent returns a student row for course.
func NewStudent(courseID, name string) persistence.Student {
	idx := atomic.AddUint64(&studentCounter, 1)
	return persistence.Student{
		ID:        fmt.Sprintf("student-%03d", idx),
		CourseID:  courseID,
		Name:      name,
		CreatedAt: referenceTime,
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
