package application

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a record with the same identity is already stored.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrScanIncomplete is returned when a batch analysis was cancelled or timed
	// out. No partial result accompanies it.
	ErrScanIncomplete = errors.New("application: scan incomplete")
)

// ValidationKind classifies a user-correctable rejection.
type ValidationKind string

const (
	KindMalformedTime       ValidationKind = "malformed_time"
	KindInvertedRange       ValidationKind = "inverted_range"
	KindUnknownCourse       ValidationKind = "unknown_course"
	KindOutsideCourseWindow ValidationKind = "outside_course_window"
	KindTeacherConflict     ValidationKind = "teacher_conflict"
	KindCourseConflict      ValidationKind = "course_conflict"
	KindUnenrolledAttendee  ValidationKind = "unenrolled_attendee"
	KindInvalidField        ValidationKind = "invalid_field"
)

// ValidationError captures a rejected input that callers can surface to users.
type ValidationError struct {
	Kind        ValidationKind
	Message     string
	FieldErrors map[string]string
	// ConflictingSessionID and ConflictingStart identify the session a
	// teacher or course conflict collided with.
	ConflictingSessionID string
	ConflictingStart     *time.Time
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if v.Message != "" {
		return v.Message
	}
	return "validation failed"
}

// HasErrors reports whether a rejection was recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && (v.Kind != "" || len(v.FieldErrors) > 0)
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if v.Kind == "" {
		v.Kind = KindInvalidField
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// DataAccessError reports that the record store could not be read or written.
// The operation may succeed if retried.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("application: %s: %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error {
	return e.Err
}

// Retryable reports that the caller may retry the operation.
func (e *DataAccessError) Retryable() bool {
	return true
}

func dataAccess(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var already *DataAccessError
	if errors.As(err, &already) {
		return err
	}
	return &DataAccessError{Op: op, Err: err}
}

// WarningKind labels a non-blocking finding.
type WarningKind string

// WarningLongSession flags a session longer than the configured threshold.
const WarningLongSession WarningKind = "long_session"

// IntegrityWarning accompanies a successful validation. The caller decides
// whether to ask the user for confirmation.
type IntegrityWarning struct {
	Kind          WarningKind
	Message       string
	DurationHours float64
}
