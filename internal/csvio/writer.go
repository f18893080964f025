// Package csvio renders integrity reports as CSV.
package csvio

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/example/session-integrity/internal/dedupe"
	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/reconcile"
	"github.com/example/session-integrity/internal/scheduler"
	"github.com/example/session-integrity/internal/timewindow"
)

// Row kinds in a reconciliation export.
const (
	RecordPair       = "pair"
	RecordDifference = "difference"
)

// ReconciliationRow is one line of a reconciliation export. Each pair is
// followed by one difference row per disagreeing student.
type ReconciliationRow struct {
	Record           string `csv:"record"`
	CourseID         string `csv:"course_id"`
	Slot             string `csv:"slot"`
	Status           string `csv:"status"`
	TeacherSessionID string `csv:"teacher_session_id"`
	LeaderSessionID  string `csv:"leader_session_id"`
	StudentID        string `csv:"student_id"`
	StudentName      string `csv:"student_name"`
	Side             string `csv:"side"`
	Ignored          string `csv:"ignored_session_ids"`
}

// SessionRow is the flat form of a session used by duplicate exports and
// offline imports.
type SessionRow struct {
	ID          string `csv:"id"`
	CourseID    string `csv:"course_id"`
	TeacherID   string `csv:"teacher_id"`
	Start       string `csv:"start"`
	End         string `csv:"end"`
	Type        string `csv:"type"`
	CreatedBy   string `csv:"created_by"`
	CreatorID   string `csv:"creator_id"`
	AttendeeIDs string `csv:"attendee_ids"`
	CreatedAt   string `csv:"created_at"`
}

// ConflictRow is one overlapping pair from a conflict sweep.
type ConflictRow struct {
	Kinds       string `csv:"kinds"`
	FirstID     string `csv:"first_id"`
	FirstStart  string `csv:"first_start"`
	FirstEnd    string `csv:"first_end"`
	SecondID    string `csv:"second_id"`
	SecondStart string `csv:"second_start"`
	SecondEnd   string `csv:"second_end"`
	TeacherID   string `csv:"teacher_id"`
	CourseID    string `csv:"course_id"`
}

const listSeparator = ";"

// Writer renders reports with timestamps in a calendar's location.
type Writer struct {
	calendar timewindow.Calendar
}

// NewWriter returns a writer that prints times in cal's location.
func NewWriter(cal timewindow.Calendar) *Writer {
	return &Writer{calendar: cal}
}

func (w *Writer) stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(w.calendar.Location()).Format(time.RFC3339)
}

// WriteReconciliation writes a reconciliation report.
func (w *Writer) WriteReconciliation(out io.Writer, report reconcile.Report) error {
	rows := make([]*ReconciliationRow, 0, len(report.Pairs))
	for _, pair := range report.Pairs {
		row := &ReconciliationRow{
			Record:   RecordPair,
			CourseID: pair.CourseID,
			Slot:     w.stamp(pair.Slot),
			Status:   string(pair.Status),
			Ignored:  strings.Join(pair.Ignored, listSeparator),
		}
		if pair.TeacherSession != nil {
			row.TeacherSessionID = pair.TeacherSession.ID
		}
		if pair.LeaderSession != nil {
			row.LeaderSessionID = pair.LeaderSession.ID
		}
		rows = append(rows, row)
		for _, diff := range pair.Differences {
			rows = append(rows, &ReconciliationRow{
				Record:           RecordDifference,
				CourseID:         pair.CourseID,
				Slot:             row.Slot,
				Status:           row.Status,
				TeacherSessionID: row.TeacherSessionID,
				LeaderSessionID:  row.LeaderSessionID,
				StudentID:        diff.StudentID,
				StudentName:      diff.StudentName,
				Side:             string(diff.Side),
			})
		}
	}
	if err := gocsv.Marshal(&rows, out); err != nil {
		return fmt.Errorf("csvio: write reconciliation: %w", err)
	}
	return nil
}

// WriteSessions writes sessions, for example the result of a duplicate scan.
func (w *Writer) WriteSessions(out io.Writer, sessions []domain.Session) error {
	rows := make([]*SessionRow, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, &SessionRow{
			ID:          s.ID,
			CourseID:    s.CourseID,
			TeacherID:   s.TeacherID,
			Start:       w.stamp(s.Start),
			End:         w.stamp(s.End),
			Type:        string(s.Type),
			CreatedBy:   string(s.CreatedBy),
			CreatorID:   s.CreatorID,
			AttendeeIDs: strings.Join(s.AttendeeIDs, listSeparator),
			CreatedAt:   w.stamp(s.CreatedAt),
		})
	}
	if err := gocsv.Marshal(&rows, out); err != nil {
		return fmt.Errorf("csvio: write sessions: %w", err)
	}
	return nil
}

// WriteDuplicates writes the redundant records of a scan.
func (w *Writer) WriteDuplicates(out io.Writer, result dedupe.Result) error {
	return w.WriteSessions(out, result.Duplicates)
}

// WriteConflicts writes the pairs found by a conflict sweep.
func (w *Writer) WriteConflicts(out io.Writer, conflicts []scheduler.Conflict) error {
	rows := make([]*ConflictRow, 0, len(conflicts))
	for _, c := range conflicts {
		kinds := make([]string, 0, len(c.Kinds))
		for _, k := range c.Kinds {
			kinds = append(kinds, string(k))
		}
		rows = append(rows, &ConflictRow{
			Kinds:       strings.Join(kinds, listSeparator),
			FirstID:     c.First.ID,
			FirstStart:  w.stamp(c.First.Start),
			FirstEnd:    w.stamp(c.First.End),
			SecondID:    c.Second.ID,
			SecondStart: w.stamp(c.Second.Start),
			SecondEnd:   w.stamp(c.Second.End),
			TeacherID:   c.First.TeacherID,
			CourseID:    c.First.CourseID,
		})
	}
	if err := gocsv.Marshal(&rows, out); err != nil {
		return fmt.Errorf("csvio: write conflicts: %w", err)
	}
	return nil
}
