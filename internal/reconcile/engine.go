// Package reconcile pairs the teacher's and the team leader's records of the
// same class and compares their attendance.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/timewindow"
)

// Status classifies a pair.
type Status string

const (
	StatusMatched     Status = "MATCHED"
	StatusDiscrepancy Status = "DISCREPANCY"
	StatusMissingData Status = "MISSING_DATA"
)

// Side tells which submission recorded a student the other did not.
type Side string

const (
	SideTeacherOnly Side = "teacher_only"
	SideLeaderOnly  Side = "leader_only"
)

// Difference is one student on whom the two submissions disagree.
type Difference struct {
	StudentID   string
	StudentName string
	Side        Side
}

// Pair holds the two submissions for one slot. At least one side is set.
type Pair struct {
	CourseID       string
	Slot           time.Time
	Status         Status
	TeacherSession *domain.Session
	LeaderSession  *domain.Session
	// Differences is the symmetric difference of attendees, set for discrepancies.
	Differences []Difference
	// Ignored lists surplus same-role records found in the slot.
	Ignored []string
}

// Summary counts pairs per status.
type Summary struct {
	Matched     int
	Discrepancy int
	MissingData int
}

// Report is a complete reconciliation for one course and date range.
type Report struct {
	CourseID string
	From     time.Time
	To       time.Time
	Pairs    []Pair
	// Unassigned lists in-range records whose role is neither teacher nor team leader.
	Unassigned []string
	Summary    Summary
}

// Request selects the course and the inclusive range of calendar days.
type Request struct {
	CourseID string
	From     time.Time
	To       time.Time
	// Roster maps student IDs to names for annotating differences. Optional.
	Roster map[string]string
}

// ErrInvalidRange is returned when From is after To.
var ErrInvalidRange = errors.New("reconcile: start date is after end date")

// Engine builds reconciliation reports.
type Engine struct {
	calendar timewindow.Calendar
}

// NewEngine returns an engine that interprets dates in cal.
func NewEngine(cal timewindow.Calendar) *Engine {
	return &Engine{calendar: cal}
}

const cancelCheckInterval = 512

// Reconcile filters sessions to the request, pairs them by exact start time
// and classifies each pair. Pairs are ordered by slot. A cancelled context
// returns an error and no report.
func (e *Engine) Reconcile(ctx context.Context, req Request, sessions []domain.Session) (Report, error) {
	from := e.calendar.StartOfDay(req.From)
	to := e.calendar.EndOfDay(req.To)
	if from.After(to) {
		return Report{}, ErrInvalidRange
	}

	inRange := make([]domain.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.CourseID != req.CourseID || s.Start.Before(from) || s.Start.After(to) {
			continue
		}
		inRange = append(inRange, s)
	}
	domain.SortSessions(inRange)

	report := Report{CourseID: req.CourseID, From: from, To: to}
	slots := make(map[int64]*Pair)
	order := make([]int64, 0)

	for i, s := range inRange {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Report{}, fmt.Errorf("reconcile: %w", err)
			}
		}
		if !s.CreatedBy.Valid() {
			report.Unassigned = append(report.Unassigned, s.ID)
			continue
		}
		key := s.Start.UnixNano()
		pair, ok := slots[key]
		if !ok {
			pair = &Pair{CourseID: req.CourseID, Slot: s.Start}
			slots[key] = pair
			order = append(order, key)
		}
		record := s.Clone()
		switch {
		case s.CreatedBy == domain.RoleTeacher && pair.TeacherSession == nil:
			pair.TeacherSession = &record
		case s.CreatedBy == domain.RoleTeamLeader && pair.LeaderSession == nil:
			pair.LeaderSession = &record
		default:
			pair.Ignored = append(pair.Ignored, s.ID)
		}
	}
	if err := ctx.Err(); err != nil {
		return Report{}, fmt.Errorf("reconcile: %w", err)
	}

	// Keys were appended in start order, so the pairs are already sorted.
	report.Pairs = make([]Pair, 0, len(order))
	for _, key := range order {
		pair := slots[key]
		classify(pair, req.Roster)
		switch pair.Status {
		case StatusMatched:
			report.Summary.Matched++
		case StatusDiscrepancy:
			report.Summary.Discrepancy++
		case StatusMissingData:
			report.Summary.MissingData++
		}
		report.Pairs = append(report.Pairs, *pair)
	}
	return report, nil
}

func classify(pair *Pair, roster map[string]string) {
	if pair.TeacherSession == nil || pair.LeaderSession == nil {
		pair.Status = StatusMissingData
		return
	}
	pair.Differences = Diff(pair.TeacherSession.AttendeeIDs, pair.LeaderSession.AttendeeIDs, roster)
	if len(pair.Differences) == 0 {
		pair.Status = StatusMatched
		return
	}
	pair.Status = StatusDiscrepancy
}

// Diff returns the symmetric difference of two attendee lists as sets,
// ordered by student ID. Repeated IDs and ordering do not matter.
func Diff(teacher, leader []string, roster map[string]string) []Difference {
	t := domain.NormalizeIDs(teacher)
	l := domain.NormalizeIDs(leader)

	var diffs []Difference
	add := func(id string, side Side) {
		diffs = append(diffs, Difference{StudentID: id, StudentName: roster[id], Side: side})
	}
	i, j := 0, 0
	for i < len(t) || j < len(l) {
		switch {
		case j == len(l) || (i < len(t) && t[i] < l[j]):
			add(t[i], SideTeacherOnly)
			i++
		case i == len(t) || l[j] < t[i]:
			add(l[j], SideLeaderOnly)
			j++
		default:
			i++
			j++
		}
	}
	return diffs
}

// Matches reports whether two attendee lists hold the same set of students.
func Matches(teacher, leader []string) bool {
	return slices.Equal(domain.NormalizeIDs(teacher), domain.NormalizeIDs(leader))
}
