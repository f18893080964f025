package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/timewindow"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.July, day, hour, minute, 0, 0, time.UTC)
}

func course() domain.Course {
	return domain.Course{
		ID:        "c1",
		Name:      "Forklift basics",
		StartDate: time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.July, 31, 0, 0, 0, 0, time.UTC),
	}
}

func teacherSession(id string, start, end time.Time) domain.Session {
	return domain.Session{
		ID:        id,
		CourseID:  "c1",
		TeacherID: "t1",
		Start:     start,
		End:       end,
		CreatedBy: domain.RoleTeacher,
	}
}

func newTestValidator() *Validator {
	return NewValidator(timewindow.NewCalendar(time.UTC), 0)
}

func expectRule(t *testing.T, err error, rule Rule) *Violation {
	t.Helper()
	var v *Violation
	if !errors.As(err, &v) {
		t.Fatalf("expected *Violation with rule %s, got %v", rule, err)
	}
	if v.Rule != rule {
		t.Fatalf("expected rule %s, got %s (%s)", rule, v.Rule, v.Message)
	}
	return v
}

func TestValidator_RejectsInOrder(t *testing.T) {
	t.Parallel()

	existing := teacherSession("existing", at(28, 8, 0), at(28, 10, 0))
	snapshot := Snapshot{Courses: []domain.Course{course()}, Sessions: []domain.Session{existing}}

	tests := []struct {
		name      string
		candidate Candidate
		rule      Rule
	}{
		{
			name:      "missing start",
			candidate: Candidate{CourseID: "c1", TeacherID: "t1", End: at(28, 9, 0)},
			rule:      RuleMalformedTime,
		},
		{
			name:      "malformed time wins over unknown course",
			candidate: Candidate{CourseID: "nope", TeacherID: "t1", Start: at(28, 9, 0)},
			rule:      RuleMalformedTime,
		},
		{
			name:      "equal bounds",
			candidate: Candidate{CourseID: "c1", TeacherID: "t1", Start: at(28, 12, 0), End: at(28, 12, 0)},
			rule:      RuleInvertedRange,
		},
		{
			name:      "inverted bounds",
			candidate: Candidate{CourseID: "c1", TeacherID: "t1", Start: at(28, 13, 0), End: at(28, 12, 0)},
			rule:      RuleInvertedRange,
		},
		{
			name:      "unknown course",
			candidate: Candidate{CourseID: "c9", TeacherID: "t1", Start: at(28, 12, 0), End: at(28, 13, 0)},
			rule:      RuleUnknownCourse,
		},
		{
			name: "ends after course window",
			candidate: Candidate{CourseID: "c1", TeacherID: "t1",
				Start: time.Date(2024, time.July, 31, 23, 0, 0, 0, time.UTC),
				End:   time.Date(2024, time.August, 1, 1, 0, 0, 0, time.UTC)},
			rule: RuleOutsideCourseWindow,
		},
		{
			name: "starts before course window",
			candidate: Candidate{CourseID: "c1", TeacherID: "t1",
				Start: time.Date(2024, time.June, 30, 23, 0, 0, 0, time.UTC),
				End:   time.Date(2024, time.July, 1, 1, 0, 0, 0, time.UTC)},
			rule: RuleOutsideCourseWindow,
		},
		{
			name:      "course lookup precedes conflict scan",
			candidate: Candidate{CourseID: "c2", TeacherID: "t1", Start: at(28, 9, 0), End: at(28, 11, 0)},
			rule:      RuleUnknownCourse,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := newTestValidator().Validate(tc.candidate, snapshot)
			expectRule(t, err, tc.rule)
		})
	}
}

func TestValidator_TeacherConflictReportsExistingSession(t *testing.T) {
	t.Parallel()

	existing := teacherSession("existing", at(28, 8, 0), at(28, 10, 0))
	snapshot := Snapshot{Courses: []domain.Course{course()}, Sessions: []domain.Session{existing}}

	_, err := newTestValidator().Validate(Candidate{
		CourseID:  "c1",
		TeacherID: "t1",
		Start:     at(28, 9, 0),
		End:       at(28, 11, 0),
		CreatedBy: domain.RoleTeacher,
	}, snapshot)

	v := expectRule(t, err, RuleTeacherConflict)
	if v.Conflicting == nil || v.Conflicting.ID != "existing" {
		t.Fatalf("expected conflicting session to be reported, got %#v", v.Conflicting)
	}
	if !v.Conflicting.Start.Equal(at(28, 8, 0)) {
		t.Fatalf("expected conflicting start 08:00, got %v", v.Conflicting.Start)
	}
}

func TestValidator_CourseConflictWithOtherTeacher(t *testing.T) {
	t.Parallel()

	other := teacherSession("other", at(28, 8, 0), at(28, 10, 0))
	other.TeacherID = "t2"
	snapshot := Snapshot{Courses: []domain.Course{course()}, Sessions: []domain.Session{other}}

	_, err := newTestValidator().Validate(Candidate{
		CourseID: "c1", TeacherID: "t1", Start: at(28, 9, 30), End: at(28, 10, 30),
	}, snapshot)
	expectRule(t, err, RuleCourseConflict)
}

func TestValidator_AllowsBackToBackSessions(t *testing.T) {
	t.Parallel()

	existing := teacherSession("existing", at(28, 8, 0), at(28, 10, 0))
	snapshot := Snapshot{Courses: []domain.Course{course()}, Sessions: []domain.Session{existing}}

	warnings, err := newTestValidator().Validate(Candidate{
		CourseID: "c1", TeacherID: "t1", Start: at(28, 10, 0), End: at(28, 12, 0),
	}, snapshot)
	if err != nil {
		t.Fatalf("expected back-to-back session to be accepted, got %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}

func TestValidator_EditExcludesItself(t *testing.T) {
	t.Parallel()

	existing := teacherSession("s1", at(28, 8, 0), at(28, 10, 0))
	snapshot := Snapshot{Courses: []domain.Course{course()}, Sessions: []domain.Session{existing}}

	_, err := newTestValidator().Validate(Candidate{
		ID: "s1", CourseID: "c1", TeacherID: "t1", Start: at(28, 8, 30), End: at(28, 10, 30),
	}, snapshot)
	if err != nil {
		t.Fatalf("expected edit of the same session to pass, got %v", err)
	}
}

func TestValidator_CounterpartRecordIsNotAConflict(t *testing.T) {
	t.Parallel()

	existing := teacherSession("teacher-entry", at(28, 8, 0), at(28, 10, 0))
	snapshot := Snapshot{Courses: []domain.Course{course()}, Sessions: []domain.Session{existing}}
	v := newTestValidator()

	leader := Candidate{
		CourseID: "c1", TeacherID: "t1", Start: at(28, 8, 0), End: at(28, 10, 0),
		CreatedBy: domain.RoleTeamLeader,
	}
	if _, err := v.Validate(leader, snapshot); err != nil {
		t.Fatalf("expected leader record of the same class to pass, got %v", err)
	}

	resubmit := leader
	resubmit.CreatedBy = domain.RoleTeacher
	_, err := v.Validate(resubmit, snapshot)
	expectRule(t, err, RuleTeacherConflict)

	shifted := leader
	shifted.Start = at(28, 8, 30)
	_, err = v.Validate(shifted, snapshot)
	expectRule(t, err, RuleTeacherConflict)
}

func TestValidator_Enrollment(t *testing.T) {
	t.Parallel()

	snapshot := Snapshot{
		Courses:  []domain.Course{course()},
		Enrolled: map[string]struct{}{"s1": {}, "s2": {}},
	}
	candidate := Candidate{
		CourseID: "c1", TeacherID: "t1", Start: at(28, 8, 0), End: at(28, 10, 0),
		AttendeeIDs: []string{"s1", "s3"},
	}

	_, err := newTestValidator().Validate(candidate, snapshot)
	v := expectRule(t, err, RuleUnenrolledAttendee)
	if v.StudentID != "s3" {
		t.Fatalf("expected s3 to be reported, got %q", v.StudentID)
	}

	snapshot.Enrolled = nil
	if _, err := newTestValidator().Validate(candidate, snapshot); err != nil {
		t.Fatalf("expected enrollment check to be skipped without roster, got %v", err)
	}
}

func TestValidator_LongSessionWarning(t *testing.T) {
	t.Parallel()

	snapshot := Snapshot{Courses: []domain.Course{course()}}
	v := newTestValidator()

	warnings, err := v.Validate(Candidate{CourseID: "c1", TeacherID: "t1", Start: at(28, 8, 0), End: at(28, 13, 0)}, snapshot)
	if err != nil || len(warnings) != 0 {
		t.Fatalf("expected exactly five hours to pass silently, got %v %v", warnings, err)
	}

	warnings, err = v.Validate(Candidate{CourseID: "c1", TeacherID: "t1", Start: at(28, 8, 0), End: at(28, 14, 0)}, snapshot)
	if err != nil {
		t.Fatalf("expected long session to be accepted, got %v", err)
	}
	if len(warnings) != 1 || warnings[0].Kind != WarningLongSession || warnings[0].DurationHours != 6 {
		t.Fatalf("unexpected warnings %#v", warnings)
	}
}
