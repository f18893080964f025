package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/session-integrity/internal/application"
)

var (
	errBadRequestBody  = errors.New("request body is not valid JSON")
	errMissingID       = errors.New("resource id is required")
	errUnsupportedType = errors.New("format must be json or csv")
	errInvalidQuery    = errors.New("query parameters are invalid")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError renders a transport level failure such as a malformed body.
func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).InfoContext(ctx, "request refused", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: errorCodeFor(status), Message: message})
}

// handleServiceError maps service errors to status codes. The body always
// carries the application.ErrorKind label as error_code.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	status, body := serviceErrorResponse(err)
	if status >= http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}
	r.writeJSON(ctx, w, status, body)
}

func serviceErrorResponse(err error) (int, errorResponse) {
	if err == nil {
		return http.StatusInternalServerError, errorResponse{ErrorCode: "unexpected", Message: "unknown error"}
	}

	body := errorResponse{ErrorCode: application.ErrorKind(err), Message: err.Error()}

	var vErr *application.ValidationError
	var dErr *application.DataAccessError
	switch {
	case errors.As(err, &vErr):
		body.Errors = vErr.FieldErrors
		body.ConflictingSessionID = vErr.ConflictingSessionID
		if vErr.ConflictingStart != nil {
			body.ConflictingStart = vErr.ConflictingStart.UTC().Format(time.RFC3339)
		}
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, application.ErrNotFound):
		body.Message = "the requested resource does not exist"
		return http.StatusNotFound, body
	case errors.Is(err, application.ErrAlreadyExists):
		return http.StatusConflict, body
	case errors.Is(err, application.ErrScanIncomplete):
		body.Retryable = true
		return http.StatusServiceUnavailable, body
	case errors.As(err, &dErr):
		body.Message = "the record store is unavailable"
		body.Retryable = dErr.Retryable()
		return http.StatusServiceUnavailable, body
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		body.Retryable = true
		return http.StatusServiceUnavailable, body
	}

	body.Message = http.StatusText(http.StatusInternalServerError)
	return http.StatusInternalServerError, body
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func errorCodeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusUnprocessableEntity:
		return string(application.KindInvalidField)
	default:
		return "unexpected"
	}
}

type errorResponse struct {
	ErrorCode            string            `json:"error_code,omitempty"`
	Message              string            `json:"message"`
	Errors               map[string]string `json:"errors,omitempty"`
	ConflictingSessionID string            `json:"conflicting_session_id,omitempty"`
	ConflictingStart     string            `json:"conflicting_start,omitempty"`
	Retryable            bool              `json:"retryable,omitempty"`
}
