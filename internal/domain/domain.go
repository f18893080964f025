// Package domain holds the record types shared by the integrity analyses.
package domain

import (
	"slices"
	"time"
)

// Role identifies who recorded a session.
type Role string

const (
	// RoleTeacher marks a record entered by the instructor.
	RoleTeacher Role = "teacher"
	// RoleTeamLeader marks a record entered by the team leader.
	RoleTeamLeader Role = "team_leader"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleTeamLeader
}

// SessionType classifies the content of a session.
type SessionType string

const (
	SessionTheory   SessionType = "THEORY"
	SessionPractice SessionType = "PRACTICE"
)

// Valid reports whether t is one of the known session types.
func (t SessionType) Valid() bool {
	return t == SessionTheory || t == SessionPractice
}

// Course is a training program with a bounded range of calendar dates.
// StartDate and EndDate are midnight of the first and last day in the
// system calendar.
type Course struct {
	ID           string
	Name         string
	CourseNumber string
	StartDate    time.Time
	EndDate      time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is one recorded or planned class meeting.
type Session struct {
	ID          string
	CourseID    string
	TeacherID   string
	Start       time.Time
	End         time.Time
	Type        SessionType
	Content     string
	AttendeeIDs []string
	CreatorID   string
	CreatedBy   Role
	VehicleID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a copy that does not share the attendee slice.
func (s Session) Clone() Session {
	s.AttendeeIDs = slices.Clone(s.AttendeeIDs)
	return s
}

// Student is enrolled in exactly one course.
type Student struct {
	ID        string
	CourseID  string
	Name      string
	CreatedAt time.Time
}

// SortSessions orders sessions by start time, then creation time, then ID.
// The sort is stable so records that tie on every field keep input order.
func SortSessions(sessions []Session) {
	slices.SortStableFunc(sessions, func(a, b Session) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

// NormalizeIDs drops empty and repeated identifiers and sorts the rest.
func NormalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
