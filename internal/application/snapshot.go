package application

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/scheduler"
)

// snapshotLoader reads the committed state a candidate is validated against.
type snapshotLoader struct {
	repos Repositories
}

// load fetches the candidate's course, the sessions that share its teacher or
// course, and the course roster concurrently. A missing course yields a
// snapshot without it so the validator reports unknown_course. An empty
// roster disables the enrollment check.
func (l snapshotLoader) load(ctx context.Context, courseID, teacherID string) (scheduler.Snapshot, error) {
	var (
		course      domain.Course
		courseFound bool
		byTeacher   []domain.Session
		byCourse    []domain.Session
		students    []domain.Student
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := l.repos.Courses.GetCourse(gctx, courseID)
		if err != nil {
			if isNotFoundError(err) {
				return nil
			}
			return dataAccess("load course", err)
		}
		course, courseFound = c, true
		return nil
	})
	g.Go(func() error {
		var err error
		byTeacher, err = l.repos.Sessions.ListSessions(gctx, SessionFilter{TeacherID: teacherID})
		if err != nil && !isNotFoundError(err) {
			return dataAccess("load teacher sessions", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		byCourse, err = l.repos.Sessions.ListSessions(gctx, SessionFilter{CourseID: courseID})
		if err != nil && !isNotFoundError(err) {
			return dataAccess("load course sessions", err)
		}
		return nil
	})
	if l.repos.Students != nil {
		g.Go(func() error {
			var err error
			students, err = l.repos.Students.ListStudents(gctx, courseID)
			if err != nil && !isNotFoundError(err) {
				return dataAccess("load roster", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return scheduler.Snapshot{}, err
	}

	snapshot := scheduler.Snapshot{Sessions: mergeSessions(byTeacher, byCourse)}
	if courseFound {
		snapshot.Courses = []domain.Course{course}
	}
	if len(students) > 0 {
		snapshot.Enrolled = make(map[string]struct{}, len(students))
		for _, st := range students {
			snapshot.Enrolled[st.ID] = struct{}{}
		}
	}
	return snapshot, nil
}

// all reads every stored session for the batch analyses.
func (l snapshotLoader) all(ctx context.Context) ([]domain.Session, error) {
	sessions, err := l.repos.Sessions.ListSessions(ctx, SessionFilter{})
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, dataAccess("load sessions", err)
	}
	return sessions, nil
}

func mergeSessions(groups ...[]domain.Session) []domain.Session {
	seen := make(map[string]struct{})
	var merged []domain.Session
	for _, group := range groups {
		for _, s := range group {
			if _, ok := seen[s.ID]; ok {
				continue
			}
			seen[s.ID] = struct{}{}
			merged = append(merged, s)
		}
	}
	return merged
}

func rosterNames(students []domain.Student) map[string]string {
	if len(students) == 0 {
		return nil
	}
	names := make(map[string]string, len(students))
	for _, st := range students {
		names[st.ID] = st.Name
	}
	return names
}
