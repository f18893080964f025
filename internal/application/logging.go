package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/session-integrity/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and typed errors to a stable label for logs and
// API error codes.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrScanIncomplete):
		return "scan_incomplete"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		if vErr.Kind != "" {
			return string(vErr.Kind)
		}
		return "validation"
	}

	var dErr *DataAccessError
	if errors.As(err, &dErr) {
		return "data_access"
	}

	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}

	return "unexpected"
}

// logOutcome writes the standard completion record for a service call.
// Validation rejections are expected and logged at Info; everything else that
// fails is an Error.
func logOutcome(ctx context.Context, logger *slog.Logger, err error, success string, attrs ...any) {
	if err == nil {
		logger.InfoContext(ctx, success, attrs...)
		return
	}
	kind := ErrorKind(err)
	var vErr *ValidationError
	if errors.As(err, &vErr) || errors.Is(err, ErrNotFound) {
		logger.InfoContext(ctx, "request rejected", "error", err, "error_kind", kind)
		return
	}
	logger.ErrorContext(ctx, "operation failed", "error", err, "error_kind", kind)
}
