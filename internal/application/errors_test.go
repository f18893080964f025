package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withMessage := &ValidationError{Kind: KindTeacherConflict, Message: "teacher t1 is already booked"}
	if got := withMessage.Error(); got != "teacher t1 is already booked" {
		t.Fatalf("expected message to be used, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if (&ValidationError{}).HasErrors() {
		t.Fatalf("expected HasErrors to report false for empty error")
	}
	if !(&ValidationError{Kind: KindInvertedRange}).HasErrors() {
		t.Fatalf("expected HasErrors to report true when a kind is set")
	}
	if !(&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors() {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}
	if base.Kind != KindInvalidField {
		t.Fatalf("expected add to default the kind, got %q", base.Kind)
	}

	other := &ValidationError{FieldErrors: map[string]string{"second": "another"}}
	base.merge(other)
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestDataAccessError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := dataAccess("list sessions", cause)

	var dErr *DataAccessError
	if !errors.As(err, &dErr) || !dErr.Retryable() {
		t.Fatalf("expected retryable DataAccessError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be unwrapped")
	}
	if again := dataAccess("outer", err); again != err {
		t.Fatalf("expected an existing DataAccessError to pass through")
	}
	if got := dataAccess("op", context.Canceled); got != context.Canceled {
		t.Fatalf("expected cancellation to pass through, got %v", got)
	}
	if dataAccess("op", nil) != nil {
		t.Fatalf("expected nil for nil cause")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNotFound, "not_found"},
		{fmt.Errorf("wrapped: %w", ErrAlreadyExists), "already_exists"},
		{fmt.Errorf("%w: %w", ErrScanIncomplete, context.DeadlineExceeded), "scan_incomplete"},
		{&ValidationError{Kind: KindCourseConflict}, "course_conflict"},
		{&ValidationError{}, "validation"},
		{&DataAccessError{Op: "op", Err: errors.New("boom")}, "data_access"},
		{context.Canceled, "canceled"},
		{errors.New("boom"), "unexpected"},
	}
	for _, tc := range tests {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
