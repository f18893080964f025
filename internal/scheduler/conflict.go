package scheduler

import (
	"context"
	"fmt"
	"slices"

	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/timewindow"
)

// ConflictKind describes which resource is double-booked.
type ConflictKind string

const (
	// ConflictTeacher indicates a teacher is booked twice.
	ConflictTeacher ConflictKind = "teacher"
	// ConflictCourse indicates a course runs two sessions at once.
	ConflictCourse ConflictKind = "course"
)

// Conflict is an overlapping pair of committed sessions. First starts no later
// than Second.
type Conflict struct {
	Kinds  []ConflictKind
	First  domain.Session
	Second domain.Session
}

const cancelCheckInterval = 256

// FindConflicts sweeps committed sessions for overlapping pairs that share a
// teacher or a course. Each pair appears once, ordered by the earlier session's
// start. Counterpart records of the same class are not conflicts. A cancelled
// context yields an error and no partial result.
func FindConflicts(ctx context.Context, sessions []domain.Session) ([]Conflict, error) {
	ordered := orderedByStart(sessions)

	type pairKey struct{ first, second int }
	found := make(map[pairKey]*Conflict)
	steps := 0

	sweep := func(kind ConflictKind, scope func(domain.Session) string) error {
		groups := make(map[string][]int)
		for i, s := range ordered {
			key := scope(s)
			groups[key] = append(groups[key], i)
		}
		for _, members := range groups {
			for a := 0; a < len(members); a++ {
				first := ordered[members[a]]
				for b := a + 1; b < len(members); b++ {
					steps++
					if steps%cancelCheckInterval == 0 {
						if err := ctx.Err(); err != nil {
							return err
						}
					}
					second := ordered[members[b]]
					// Members are sorted by start, so nothing later can overlap first.
					if !second.Start.Before(first.End) {
						break
					}
					if !timewindow.Overlaps(first.Start, first.End, second.Start, second.End) {
						continue
					}
					if isCounterpart(candidateOf(first), second) {
						continue
					}
					key := pairKey{members[a], members[b]}
					if c, ok := found[key]; ok {
						c.Kinds = append(c.Kinds, kind)
						continue
					}
					found[key] = &Conflict{Kinds: []ConflictKind{kind}, First: first.Clone(), Second: second.Clone()}
				}
			}
		}
		return nil
	}

	if err := sweep(ConflictTeacher, func(s domain.Session) string { return s.TeacherID }); err != nil {
		return nil, fmt.Errorf("scheduler: conflict sweep: %w", err)
	}
	if err := sweep(ConflictCourse, func(s domain.Session) string { return s.CourseID }); err != nil {
		return nil, fmt.Errorf("scheduler: conflict sweep: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scheduler: conflict sweep: %w", err)
	}

	keys := make([]pairKey, 0, len(found))
	for key := range found {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(x, y pairKey) int {
		if x.first != y.first {
			return x.first - y.first
		}
		return x.second - y.second
	})

	conflicts := make([]Conflict, 0, len(keys))
	for _, key := range keys {
		conflicts = append(conflicts, *found[key])
	}
	return conflicts, nil
}

func candidateOf(s domain.Session) Candidate {
	return Candidate{
		ID:        s.ID,
		CourseID:  s.CourseID,
		TeacherID: s.TeacherID,
		Start:     s.Start,
		End:       s.End,
		CreatedBy: s.CreatedBy,
	}
}
