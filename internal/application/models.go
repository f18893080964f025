package application

import (
	"time"

	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/reconcile"
	"github.com/example/session-integrity/internal/scheduler"
	"github.com/example/session-integrity/internal/timewindow"
)

// SessionInput captures caller provided session fields. Start and End are raw
// timestamps, parsed with the service calendar.
type SessionInput struct {
	CourseID    string
	TeacherID   string
	Start       string
	End         string
	Type        string
	Content     string
	AttendeeIDs []string
	CreatorID   string
	CreatedBy   string
	VehicleID   string
}

// ValidateSessionParams wraps a dry-run admission check. SessionID is set when
// the candidate replaces an existing session.
type ValidateSessionParams struct {
	SessionID string
	Input     SessionInput
}

// UpdateSessionParams wraps the data required to replace a session.
type UpdateSessionParams struct {
	SessionID string
	Input     SessionInput
}

// ListSessionsParams narrows a session listing. Explicit bounds win over the
// period preset.
type ListSessionsParams struct {
	CourseID        string
	TeacherID       string
	StartsAfter     *time.Time
	StartsBefore    *time.Time
	Period          timewindow.Period
	PeriodReference time.Time
}

// CourseInput captures caller provided course fields. Dates are calendar days
// in "2006-01-02" form.
type CourseInput struct {
	Name         string
	CourseNumber string
	StartDate    string
	EndDate      string
}

// StudentInput captures caller provided enrollment fields.
type StudentInput struct {
	CourseID string
	Name     string
}

// DuplicateScan is the result of a completed duplicate scan.
type DuplicateScan struct {
	Duplicates   []domain.Session
	Unattributed []string
}

// DeleteDuplicatesReport summarizes a bulk delete. Deletion stops at the
// first failure; IDs after it are skipped.
type DeleteDuplicatesReport struct {
	DeletedCount int
	DeletedIDs   []string
	FailedIDs    []string
	SkippedIDs   []string
	// StaleIDs were requested but are no longer redundant and were kept.
	StaleIDs []string
}

// ConflictReport is the result of a conflict sweep.
type ConflictReport struct {
	Conflicts []scheduler.Conflict
}

// ReconcileParams selects the course and the inclusive calendar-day range.
type ReconcileParams struct {
	CourseID  string
	StartDate string
	EndDate   string
}

// ReconciliationReport is the engine's report for the requested range.
type ReconciliationReport = reconcile.Report
