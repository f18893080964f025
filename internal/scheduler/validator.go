package scheduler

import (
	"fmt"
	"slices"
	"time"

	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/timewindow"
)

// DefaultLongSessionThreshold is the duration above which a session draws a warning.
const DefaultLongSessionThreshold = 5 * time.Hour

// Rule identifies the admission check a candidate failed.
type Rule string

const (
	RuleMalformedTime       Rule = "malformed_time"
	RuleInvertedRange       Rule = "inverted_range"
	RuleUnknownCourse       Rule = "unknown_course"
	RuleOutsideCourseWindow Rule = "outside_course_window"
	RuleTeacherConflict     Rule = "teacher_conflict"
	RuleCourseConflict      Rule = "course_conflict"
	RuleUnenrolledAttendee  Rule = "unenrolled_attendee"
)

// Violation is returned when a candidate fails an admission check.
type Violation struct {
	Rule    Rule
	Message string
	// Conflicting is set for teacher and course conflicts.
	Conflicting *domain.Session
	// StudentID is set for enrollment failures.
	StudentID string
}

func (v *Violation) Error() string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", v.Rule, v.Message)
}

// WarningKind labels a non-blocking finding.
type WarningKind string

// WarningLongSession flags a session whose duration exceeds the threshold.
const WarningLongSession WarningKind = "long_session"

// Warning accompanies an accepted candidate and asks the caller to confirm.
type Warning struct {
	Kind          WarningKind
	Message       string
	DurationHours float64
}

// Candidate is a session proposed for creation, or for replacing the stored
// session with the same ID. A zero Start or End means the raw value did not parse.
type Candidate struct {
	ID          string
	CourseID    string
	TeacherID   string
	Start       time.Time
	End         time.Time
	CreatedBy   domain.Role
	AttendeeIDs []string
}

// Snapshot is the committed state a candidate is checked against.
type Snapshot struct {
	Courses  []domain.Course
	Sessions []domain.Session
	// Enrolled holds the student IDs of the candidate's course. A nil map
	// skips the enrollment check.
	Enrolled map[string]struct{}
}

// Validator performs write-time admission checks. It has no side effects.
type Validator struct {
	calendar    timewindow.Calendar
	longSession time.Duration
}

// NewValidator builds a validator using cal for course windows and messages.
// A non-positive threshold selects DefaultLongSessionThreshold.
func NewValidator(cal timewindow.Calendar, longSessionThreshold time.Duration) *Validator {
	if longSessionThreshold <= 0 {
		longSessionThreshold = DefaultLongSessionThreshold
	}
	return &Validator{calendar: cal, longSession: longSessionThreshold}
}

// Validate runs the admission checks in order and stops at the first failure,
// returning a *Violation. Accepted candidates may still carry warnings.
func (v *Validator) Validate(candidate Candidate, snapshot Snapshot) ([]Warning, error) {
	if candidate.Start.IsZero() || candidate.End.IsZero() {
		return nil, &Violation{Rule: RuleMalformedTime, Message: "start and end must be valid timestamps"}
	}
	if !candidate.Start.Before(candidate.End) {
		return nil, &Violation{Rule: RuleInvertedRange, Message: "start must be before end"}
	}

	idx := slices.IndexFunc(snapshot.Courses, func(c domain.Course) bool { return c.ID == candidate.CourseID })
	if idx < 0 {
		return nil, &Violation{Rule: RuleUnknownCourse, Message: fmt.Sprintf("course %q does not exist", candidate.CourseID)}
	}
	course := snapshot.Courses[idx]

	window := v.calendar.CourseWindow(course.StartDate, course.EndDate)
	if !window.Contains(candidate.Start, candidate.End) {
		return nil, &Violation{
			Rule: RuleOutsideCourseWindow,
			Message: fmt.Sprintf("session must fall between %s and %s",
				v.calendar.DayBucket(course.StartDate), v.calendar.DayBucket(course.EndDate)),
		}
	}

	ordered := orderedByStart(snapshot.Sessions)

	if other, ok := v.firstOverlap(candidate, ordered, func(s domain.Session) bool { return s.TeacherID == candidate.TeacherID }); ok {
		return nil, &Violation{
			Rule:        RuleTeacherConflict,
			Message:     fmt.Sprintf("teacher already has a session starting %s", v.stamp(other.Start)),
			Conflicting: &other,
		}
	}
	if other, ok := v.firstOverlap(candidate, ordered, func(s domain.Session) bool { return s.CourseID == candidate.CourseID }); ok {
		return nil, &Violation{
			Rule:        RuleCourseConflict,
			Message:     fmt.Sprintf("course already has a session starting %s", v.stamp(other.Start)),
			Conflicting: &other,
		}
	}

	if snapshot.Enrolled != nil {
		for _, id := range candidate.AttendeeIDs {
			if _, ok := snapshot.Enrolled[id]; !ok {
				return nil, &Violation{
					Rule:      RuleUnenrolledAttendee,
					Message:   fmt.Sprintf("student %q is not enrolled in course %q", id, candidate.CourseID),
					StudentID: id,
				}
			}
		}
	}

	var warnings []Warning
	if d := candidate.End.Sub(candidate.Start); d > v.longSession {
		hours := timewindow.DurationHours(candidate.Start, candidate.End)
		warnings = append(warnings, Warning{
			Kind:          WarningLongSession,
			Message:       fmt.Sprintf("session lasts %.1f hours; confirm before saving", hours),
			DurationHours: hours,
		})
	}
	return warnings, nil
}

func (v *Validator) firstOverlap(candidate Candidate, ordered []domain.Session, sameScope func(domain.Session) bool) (domain.Session, bool) {
	for _, existing := range ordered {
		if candidate.ID != "" && existing.ID == candidate.ID {
			continue
		}
		if !sameScope(existing) || isCounterpart(candidate, existing) {
			continue
		}
		if timewindow.Overlaps(candidate.Start, candidate.End, existing.Start, existing.End) {
			return existing.Clone(), true
		}
	}
	return domain.Session{}, false
}

func (v *Validator) stamp(t time.Time) string {
	return v.calendar.DayBucket(t) + " " + v.calendar.HourMinute(t)
}

// isCounterpart reports whether existing is the other role's record of the
// same class: same course, teacher and start, entered by the opposite role.
// Such pairs are what reconciliation compares, so they never conflict.
func isCounterpart(candidate Candidate, existing domain.Session) bool {
	return candidate.CreatedBy.Valid() && existing.CreatedBy.Valid() &&
		candidate.CreatedBy != existing.CreatedBy &&
		candidate.CourseID == existing.CourseID &&
		candidate.TeacherID == existing.TeacherID &&
		candidate.Start.Equal(existing.Start)
}

func orderedByStart(sessions []domain.Session) []domain.Session {
	ordered := slices.Clone(sessions)
	domain.SortSessions(ordered)
	return ordered
}
