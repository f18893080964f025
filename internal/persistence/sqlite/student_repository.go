package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/session-integrity/internal/persistence"
)

func (s *Store) CreateStudent(ctx context.Context, student persistence.Student) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO students (id, course_id, name, created_at) VALUES (?, ?, ?, ?)`,
			student.ID, student.CourseID, student.Name, toNanos(student.CreatedAt),
		)
		return mapError(err)
	})
}

// ListStudents returns the course roster ordered by name then ID.
func (s *Store) ListStudents(ctx context.Context, courseID string) ([]persistence.Student, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course_id, name, created_at FROM students WHERE course_id = ? ORDER BY name, id`, courseID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var students []persistence.Student
	for rows.Next() {
		var (
			student persistence.Student
			created int64
		)
		if err := rows.Scan(&student.ID, &student.CourseID, &student.Name, &created); err != nil {
			return nil, err
		}
		student.CreatedAt = fromNanos(created)
		students = append(students, student)
	}
	return students, rows.Err()
}
