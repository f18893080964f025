package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	t.Run("honors caller supplied request id", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		var seen string
		handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := RequestIDFromContext(r.Context())
			if !ok {
				t.Errorf("expected request id in context")
			}
			if LoggerFromContext(r.Context()) == nil {
				t.Errorf("expected logger in context")
			}
			seen = id
			w.WriteHeader(http.StatusTeapot)
		}))

		req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if seen != "req-42" || rec.Header().Get(RequestIDHeader) != "req-42" {
			t.Fatalf("expected request id to round trip, got %q / %q", seen, rec.Header().Get(RequestIDHeader))
		}
		if !strings.Contains(buf.String(), `"request_id":"req-42"`) || !strings.Contains(buf.String(), `"status":418`) {
			t.Fatalf("expected completion log with id and status, got %s", buf.String())
		}
	})

	t.Run("generates an id when none is supplied", func(t *testing.T) {
		t.Parallel()

		handler := RequestLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if len(rec.Header().Get(RequestIDHeader)) != 36 {
			t.Fatalf("expected a uuid request id, got %q", rec.Header().Get(RequestIDHeader))
		}
	})
}

func TestRecoverer(t *testing.T) {
	t.Parallel()

	handler := Recoverer(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error_code":"unexpected"`) {
		t.Fatalf("expected error body, got %s", rec.Body.String())
	}
}

func TestHandlerLoggerCarriesResourceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := ContextWithResourceID(ContextWithLogger(httptest.NewRequest(http.MethodGet, "/", nil).Context(),
		slog.New(slog.NewJSONHandler(&buf, nil))), "s-1")

	handlerLogger(ctx, nil, "SessionHandler", "Get").Info("looked up")

	for _, want := range []string{`"handler":"SessionHandler"`, `"operation":"Get"`, `"resource_id":"s-1"`} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("expected %s in %s", want, buf.String())
		}
	}
}
