package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/example/session-integrity/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctxLogger := slog.New(slog.NewJSONHandler(&buf, nil))
	base := slog.New(slog.NewJSONHandler(io.Discard, nil))
	ctx := logging.ContextWithLogger(context.Background(), ctxLogger)

	logOutcome(ctx, serviceLogger(ctx, base, "SessionService", "CreateSession"), &ValidationError{Kind: KindTeacherConflict}, "unused")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "SessionService" || entry["operation"] != "CreateSession" {
		t.Fatalf("expected service attributes, got %v", entry)
	}
	if entry["level"] != "INFO" || entry["error_kind"] != "teacher_conflict" {
		t.Fatalf("expected rejection at info with kind, got %v", entry)
	}
}

func TestLogOutcomeUsesErrorLevelForFailures(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logOutcome(context.Background(), logger, dataAccess("list sessions", errors.New("boom")), "unused")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON record: %v", err)
	}
	if entry["level"] != "ERROR" || entry["error_kind"] != "data_access" {
		t.Fatalf("unexpected record %v", entry)
	}
}
