package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/session-integrity/internal/persistence"
)

const courseColumns = `id, name, course_number, start_date, end_date, created_at, updated_at`

func (s *Store) CreateCourse(ctx context.Context, course persistence.Course) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO courses (`+courseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			course.ID,
			course.Name,
			course.CourseNumber,
			course.StartDate,
			course.EndDate,
			toNanos(course.CreatedAt),
			toNanos(course.UpdatedAt),
		)
		return mapError(err)
	})
}

func (s *Store) UpdateCourse(ctx context.Context, course persistence.Course) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE courses SET name = ?, course_number = ?, start_date = ?, end_date = ?, updated_at = ? WHERE id = ?`,
			course.Name,
			course.CourseNumber,
			course.StartDate,
			course.EndDate,
			toNanos(course.UpdatedAt),
			course.ID,
		)
		if err != nil {
			return mapError(err)
		}
		return requireRow(result)
	})
}

func (s *Store) GetCourse(ctx context.Context, id string) (persistence.Course, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = ?`, id)
	course, err := scanCourse(row)
	if err != nil {
		return persistence.Course{}, mapError(err)
	}
	return course, nil
}

// ListCourses returns courses ordered by start date then ID.
func (s *Store) ListCourses(ctx context.Context) ([]persistence.Course, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+courseColumns+` FROM courses ORDER BY start_date, id`)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(row rowScanner) (persistence.Course, error) {
	var (
		course           persistence.Course
		created, updated int64
	)
	if err := row.Scan(
		&course.ID,
		&course.Name,
		&course.CourseNumber,
		&course.StartDate,
		&course.EndDate,
		&created,
		&updated,
	); err != nil {
		return persistence.Course{}, err
	}
	course.CreatedAt = fromNanos(created)
	course.UpdatedAt = fromNanos(updated)
	return course, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
