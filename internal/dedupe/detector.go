// Package dedupe finds session records that were entered more than once by the
// same actor for the same slot.
package dedupe

import (
	"context"
	"fmt"
	"slices"

	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/timewindow"
)

// CreatorNone is the creator component of a key for records with neither a
// role nor a creator ID.
const CreatorNone = "none"

// Key is the composite identity of a logical session entry.
type Key struct {
	TeacherID  string
	CourseID   string
	Day        string
	HourMinute string
	Creator    string
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", k.TeacherID, k.CourseID, k.Day, k.HourMinute, k.Creator)
}

// Result is the outcome of a completed scan.
type Result struct {
	// Duplicates are the redundant records, in processing order. The first
	// record of each key is canonical and never listed.
	Duplicates []domain.Session
	// Unattributed lists records with no creator information. They are never
	// reported as duplicates.
	Unattributed []string
}

// Detector partitions sessions into canonical and redundant records.
type Detector struct {
	calendar timewindow.Calendar
}

// NewDetector returns a detector keyed on cal's local day.
func NewDetector(cal timewindow.Calendar) *Detector {
	return &Detector{calendar: cal}
}

// KeyOf derives the identity key of s. The creator component prefers the
// recorded role, then the creator's user ID; ok is false when neither exists.
func (d *Detector) KeyOf(s domain.Session) (key Key, ok bool) {
	key = Key{
		TeacherID:  s.TeacherID,
		CourseID:   s.CourseID,
		Day:        d.calendar.DayBucket(s.Start),
		HourMinute: d.calendar.HourMinute(s.Start),
		Creator:    CreatorNone,
	}
	switch {
	case s.CreatedBy != "":
		key.Creator = "role:" + string(s.CreatedBy)
	case s.CreatorID != "":
		key.Creator = "user:" + s.CreatorID
	default:
		return key, false
	}
	return key, true
}

const cancelCheckInterval = 512

// Find scans sessions in start order and returns every record whose key was
// already seen. The input is not modified. A cancelled context returns an
// error and no partial result.
func (d *Detector) Find(ctx context.Context, sessions []domain.Session) (Result, error) {
	ordered := slices.Clone(sessions)
	domain.SortSessions(ordered)

	seen := make(map[Key]struct{}, len(ordered))
	var result Result
	for i, s := range ordered {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, fmt.Errorf("dedupe: scan: %w", err)
			}
		}
		key, ok := d.KeyOf(s)
		if !ok {
			result.Unattributed = append(result.Unattributed, s.ID)
			continue
		}
		if _, dup := seen[key]; dup {
			result.Duplicates = append(result.Duplicates, s.Clone())
			continue
		}
		seen[key] = struct{}{}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("dedupe: scan: %w", err)
	}
	return result, nil
}

// IDs returns the IDs of the duplicate records.
func (r Result) IDs() []string {
	ids := make([]string, 0, len(r.Duplicates))
	for _, s := range r.Duplicates {
		ids = append(ids, s.ID)
	}
	return ids
}
