package csvio

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/timewindow"
)

// LoadSessions reads sessions in the SessionRow layout. Timestamps are parsed
// with cal, so local "2006-01-02T15:04" values are accepted alongside RFC 3339.
// Every malformed row is reported in the returned error.
func LoadSessions(in io.Reader, cal timewindow.Calendar) ([]domain.Session, error) {
	var rows []*SessionRow
	if err := gocsv.Unmarshal(in, &rows); err != nil {
		return nil, fmt.Errorf("csvio: read sessions: %w", err)
	}

	sessions := make([]domain.Session, 0, len(rows))
	var errs []error
	for i, row := range rows {
		s, err := row.toSession(cal)
		if err != nil {
			// Header is line 1.
			errs = append(errs, fmt.Errorf("line %d: %w", i+2, err))
			continue
		}
		sessions = append(sessions, s)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("csvio: read sessions: %w", errors.Join(errs...))
	}
	return sessions, nil
}

func (r *SessionRow) toSession(cal timewindow.Calendar) (domain.Session, error) {
	start, err := cal.ParseTimestamp(r.Start)
	if err != nil {
		return domain.Session{}, fmt.Errorf("start: %w", err)
	}
	end, err := cal.ParseTimestamp(r.End)
	if err != nil {
		return domain.Session{}, fmt.Errorf("end: %w", err)
	}
	s := domain.Session{
		ID:        r.ID,
		CourseID:  r.CourseID,
		TeacherID: r.TeacherID,
		Start:     start,
		End:       end,
		Type:      domain.SessionType(r.Type),
		CreatedBy: domain.Role(r.CreatedBy),
		CreatorID: r.CreatorID,
	}
	if r.AttendeeIDs != "" {
		s.AttendeeIDs = domain.NormalizeIDs(strings.Split(r.AttendeeIDs, listSeparator))
	}
	if r.CreatedAt != "" {
		createdAt, err := cal.ParseTimestamp(r.CreatedAt)
		if err != nil {
			return domain.Session{}, fmt.Errorf("created_at: %w", err)
		}
		s.CreatedAt = createdAt
	}
	return s, nil
}
