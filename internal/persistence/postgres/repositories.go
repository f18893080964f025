package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/example/session-integrity/internal/persistence"
)

// --- CourseRepository implementation ---

func (s *Store) CreateCourse(ctx context.Context, course persistence.Course) error {
	start, end, err := courseDates(course)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO courses (id, name, course_number, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		course.ID, course.Name, course.CourseNumber, start, end, course.CreatedAt, course.UpdatedAt,
	)
	return mapError(err)
}

func (s *Store) UpdateCourse(ctx context.Context, course persistence.Course) error {
	start, end, err := courseDates(course)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE courses SET name = $1, course_number = $2, start_date = $3, end_date = $4, updated_at = $5 WHERE id = $6`,
		course.Name, course.CourseNumber, start, end, course.UpdatedAt, course.ID,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (s *Store) GetCourse(ctx context.Context, id string) (persistence.Course, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, course_number, start_date, end_date, created_at, updated_at FROM courses WHERE id = $1`, id)
	course, err := scanCourse(row)
	if err != nil {
		return persistence.Course{}, mapError(err)
	}
	return course, nil
}

// ListCourses returns courses ordered by start date then ID.
func (s *Store) ListCourses(ctx context.Context) ([]persistence.Course, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, course_number, start_date, end_date, created_at, updated_at FROM courses ORDER BY start_date, id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var courses []persistence.Course
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	return courses, rows.Err()
}

func courseDates(course persistence.Course) (time.Time, time.Time, error) {
	start, err := time.Parse(persistence.DateLayout, course.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start_date: %v", persistence.ErrConstraintViolation, err)
	}
	end, err := time.Parse(persistence.DateLayout, course.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end_date: %v", persistence.ErrConstraintViolation, err)
	}
	return start, end, nil
}

func scanCourse(row pgx.Row) (persistence.Course, error) {
	var (
		course     persistence.Course
		start, end time.Time
	)
	if err := row.Scan(&course.ID, &course.Name, &course.CourseNumber, &start, &end, &course.CreatedAt, &course.UpdatedAt); err != nil {
		return persistence.Course{}, err
	}
	course.StartDate = start.Format(persistence.DateLayout)
	course.EndDate = end.Format(persistence.DateLayout)
	course.CreatedAt = course.CreatedAt.UTC()
	course.UpdatedAt = course.UpdatedAt.UTC()
	return course, nil
}

// --- StudentRepository implementation ---

func (s *Store) CreateStudent(ctx context.Context, student persistence.Student) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO students (id, course_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		student.ID, student.CourseID, student.Name, student.CreatedAt,
	)
	return mapError(err)
}

// ListStudents returns the course roster ordered by name then ID.
func (s *Store) ListStudents(ctx context.Context, courseID string) ([]persistence.Student, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, course_id, name, created_at FROM students WHERE course_id = $1 ORDER BY name, id`, courseID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var students []persistence.Student
	for rows.Next() {
		var student persistence.Student
		if err := rows.Scan(&student.ID, &student.CourseID, &student.Name, &student.CreatedAt); err != nil {
			return nil, err
		}
		student.CreatedAt = student.CreatedAt.UTC()
		students = append(students, student)
	}
	return students, rows.Err()
}

// --- SessionRepository implementation ---

var sessionColumns = []string{
	"id", "course_id", "teacher_id", "start_at", "end_at", "session_type", "content",
	"creator_id", "created_by", "vehicle_id", "created_at", "updated_at",
}

// CreateSession inserts the session and its attendee rows in one transaction.
func (s *Store) CreateSession(ctx context.Context, session persistence.Session) error {
	query, args, err := s.sb.Insert("sessions").Columns(sessionColumns...).Values(
		session.ID,
		session.CourseID,
		session.TeacherID,
		session.Start,
		session.End,
		session.Type,
		session.Content,
		session.CreatorID,
		session.CreatedBy,
		session.VehicleID,
		session.CreatedAt,
		session.UpdatedAt,
	).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	return mapError(pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return err
		}
		return insertAttendees(ctx, tx, session.ID, session.AttendeeIDs)
	}))
}

// UpdateSession replaces the mutable columns and the attendee list.
func (s *Store) UpdateSession(ctx context.Context, session persistence.Session) error {
	query, args, err := s.sb.Update("sessions").SetMap(map[string]any{
		"course_id":    session.CourseID,
		"teacher_id":   session.TeacherID,
		"start_at":     session.Start,
		"end_at":       session.End,
		"session_type": session.Type,
		"content":      session.Content,
		"creator_id":   session.CreatorID,
		"created_by":   session.CreatedBy,
		"vehicle_id":   session.VehicleID,
		"updated_at":   session.UpdatedAt,
	}).Where(sq.Eq{"id": session.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	return mapError(pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return persistence.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM session_attendees WHERE session_id = $1`, session.ID); err != nil {
			return err
		}
		return insertAttendees(ctx, tx, session.ID, session.AttendeeIDs)
	}))
}

func (s *Store) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	sessions, err := s.querySessions(ctx, sq.Eq{"sessions.id": id})
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
	cond := sq.And{}
	if filter.CourseID != "" {
		cond = append(cond, sq.Eq{"course_id": filter.CourseID})
	}
	if filter.TeacherID != "" {
		cond = append(cond, sq.Eq{"teacher_id": filter.TeacherID})
	}
	if filter.StartsAfter != nil {
		cond = append(cond, sq.GtOrEq{"start_at": *filter.StartsAfter})
	}
	if filter.StartsBefore != nil {
		cond = append(cond, sq.LtOrEq{"start_at": *filter.StartsBefore})
	}
	return s.querySessions(ctx, cond)
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// querySessions aggregates attendees with array_agg so one round trip
// returns complete records.
func (s *Store) querySessions(ctx context.Context, cond sq.Sqlizer) ([]persistence.Session, error) {
	columns := make([]string, 0, len(sessionColumns)+1)
	for _, c := range sessionColumns {
		columns = append(columns, "sessions."+c)
	}
	columns = append(columns,
		"COALESCE(array_agg(a.student_id ORDER BY a.student_id) FILTER (WHERE a.student_id IS NOT NULL), '{}')")

	query, args, err := s.sb.Select(columns...).
		From("sessions").
		LeftJoin("session_attendees a ON a.session_id = sessions.id").
		Where(cond).
		GroupBy("sessions.id").
		OrderBy("sessions.start_at", "sessions.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build session query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var sessions []persistence.Session
	for rows.Next() {
		var session persistence.Session
		if err := rows.Scan(
			&session.ID,
			&session.CourseID,
			&session.TeacherID,
			&session.Start,
			&session.End,
			&session.Type,
			&session.Content,
			&session.CreatorID,
			&session.CreatedBy,
			&session.VehicleID,
			&session.CreatedAt,
			&session.UpdatedAt,
			&session.AttendeeIDs,
		); err != nil {
			return nil, err
		}
		session.Start = session.Start.UTC()
		session.End = session.End.UTC()
		session.CreatedAt = session.CreatedAt.UTC()
		session.UpdatedAt = session.UpdatedAt.UTC()
		if len(session.AttendeeIDs) == 0 {
			session.AttendeeIDs = nil
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func insertAttendees(ctx context.Context, tx pgx.Tx, sessionID string, attendeeIDs []string) error {
	if len(attendeeIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO session_attendees (session_id, student_id)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING`,
		sessionID, attendeeIDs,
	)
	return err
}
