package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/example/session-integrity/internal/persistence"
)

var sessionColumns = []string{
	"id", "course_id", "teacher_id", "start_at", "end_at", "session_type", "content",
	"creator_id", "created_by", "vehicle_id", "created_at", "updated_at",
}

// CreateSession inserts the session and its attendee rows in one transaction.
func (s *Store) CreateSession(ctx context.Context, session persistence.Session) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		query, args, err := sq.Insert("sessions").Columns(sessionColumns...).Values(
			session.ID,
			session.CourseID,
			session.TeacherID,
			toNanos(session.Start),
			toNanos(session.End),
			session.Type,
			session.Content,
			nullString(session.CreatorID),
			nullString(session.CreatedBy),
			nullString(session.VehicleID),
			toNanos(session.CreatedAt),
			toNanos(session.UpdatedAt),
		).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return mapError(err)
		}
		return insertAttendees(ctx, tx, session.ID, session.AttendeeIDs)
	})
}

// UpdateSession replaces the mutable columns and the attendee list. The
// original created_at is kept.
func (s *Store) UpdateSession(ctx context.Context, session persistence.Session) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE sessions
			SET course_id = ?, teacher_id = ?, start_at = ?, end_at = ?, session_type = ?, content = ?,
				creator_id = ?, created_by = ?, vehicle_id = ?, updated_at = ?
			WHERE id = ?`,
			session.CourseID,
			session.TeacherID,
			toNanos(session.Start),
			toNanos(session.End),
			session.Type,
			session.Content,
			nullString(session.CreatorID),
			nullString(session.CreatedBy),
			nullString(session.VehicleID),
			toNanos(session.UpdatedAt),
			session.ID,
		)
		if err != nil {
			return mapError(err)
		}
		if err := requireRow(result); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM session_attendees WHERE session_id = ?`, session.ID); err != nil {
			return mapError(err)
		}
		return insertAttendees(ctx, tx, session.ID, session.AttendeeIDs)
	})
}

func (s *Store) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	sessions, err := s.querySessions(ctx, sq.Eq{"id": id})
	if err != nil {
		return persistence.Session{}, err
	}
	if len(sessions) == 0 {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return sessions[0], nil
}

// ListSessions returns matching sessions ordered by start then ID.
func (s *Store) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	return s.querySessions(ctx, sessionConditions(filter))
}

func sessionConditions(filter persistence.SessionFilter) sq.And {
	cond := sq.And{}
	if filter.CourseID != "" {
		cond = append(cond, sq.Eq{"course_id": filter.CourseID})
	}
	if filter.TeacherID != "" {
		cond = append(cond, sq.Eq{"teacher_id": filter.TeacherID})
	}
	if filter.StartsAfter != nil {
		cond = append(cond, sq.GtOrEq{"start_at": toNanos(*filter.StartsAfter)})
	}
	if filter.StartsBefore != nil {
		cond = append(cond, sq.LtOrEq{"start_at": toNanos(*filter.StartsBefore)})
	}
	return cond
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
		if err != nil {
			return mapError(err)
		}
		return requireRow(result)
	})
}

// querySessions loads sessions and their attendees with two queries over the
// same condition.
func (s *Store) querySessions(ctx context.Context, cond sq.Sqlizer) ([]persistence.Session, error) {
	query, args, err := sq.Select(sessionColumns...).
		From("sessions").
		Where(cond).
		OrderBy("start_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build session query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var (
		sessions []persistence.Session
		index    = make(map[string]int)
	)
	for rows.Next() {
		var (
			session                       persistence.Session
			start, end, created, updated  int64
			creatorID, createdBy, vehicle sql.NullString
		)
		if err := rows.Scan(
			&session.ID,
			&session.CourseID,
			&session.TeacherID,
			&start,
			&end,
			&session.Type,
			&session.Content,
			&creatorID,
			&createdBy,
			&vehicle,
			&created,
			&updated,
		); err != nil {
			return nil, err
		}
		session.Start = fromNanos(start)
		session.End = fromNanos(end)
		session.CreatorID = stringPtr(creatorID)
		session.CreatedBy = stringPtr(createdBy)
		session.VehicleID = stringPtr(vehicle)
		session.CreatedAt = fromNanos(created)
		session.UpdatedAt = fromNanos(updated)
		index[session.ID] = len(sessions)
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}

	query, args, err = sq.Select("a.session_id", "a.student_id").
		From("session_attendees a").
		Join("sessions ON sessions.id = a.session_id").
		Where(cond).
		OrderBy("a.session_id", "a.student_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build attendee query: %w", err)
	}
	attendees, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer attendees.Close()
	for attendees.Next() {
		var sessionID, studentID string
		if err := attendees.Scan(&sessionID, &studentID); err != nil {
			return nil, err
		}
		// Rows inserted after the first query have no entry in index.
		if i, ok := index[sessionID]; ok {
			sessions[i].AttendeeIDs = append(sessions[i].AttendeeIDs, studentID)
		}
	}
	return sessions, attendees.Err()
}

func insertAttendees(ctx context.Context, tx *sql.Tx, sessionID string, attendeeIDs []string) error {
	if len(attendeeIDs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO session_attendees (session_id, student_id) VALUES (?, ?)`)
	if err != nil {
		return mapError(err)
	}
	defer stmt.Close()
	for _, studentID := range attendeeIDs {
		if _, err := stmt.ExecContext(ctx, sessionID, studentID); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}
