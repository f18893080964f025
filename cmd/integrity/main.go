package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/example/session-integrity/internal/application"
	"github.com/example/session-integrity/internal/config"
	httptransport "github.com/example/session-integrity/internal/http"
	"github.com/example/session-integrity/internal/logging"
	"github.com/example/session-integrity/internal/persistence"
	"github.com/example/session-integrity/internal/storage"
	"github.com/example/session-integrity/internal/timewindow"
)

func main() {
	bootstrap := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := loadDotEnv(".env"); err != nil {
		bootstrap.Error("failed to read .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	srv, err := newServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := srv.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if cfg.SweepInterval > 0 {
		go srv.sweepLoop(ctx, cfg.SweepInterval)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.ScanTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("integrity API listening", "addr", httpServer.Addr, "store", cfg.StoreDriver, "timezone", cfg.Timezone)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// loadDotEnv reads KEY=VALUE pairs into the environment. A missing file is
// not an error; variables already set win.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

type server struct {
	store     persistence.Store
	repos     application.Repositories
	integrity *application.IntegrityService
	handler   http.Handler
	logger    *slog.Logger
}

func newServer(ctx context.Context, cfg config.Config, logger *slog.Logger) (*server, error) {
	calendar, err := timewindow.LoadCalendar(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, storage.Options{
		Driver:      cfg.StoreDriver,
		SQLiteDSN:   cfg.SQLiteDSN,
		PostgresDSN: cfg.PostgresDSN,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	repos := storage.NewRepositories(store, calendar)
	now := time.Now
	sessions := application.NewSessionServiceWithLogger(repos, calendar, cfg.LongSessionThreshold, uuid.NewString, now, logger)
	courses := application.NewCourseServiceWithLogger(repos, calendar, uuid.NewString, now, logger)
	integrity := application.NewIntegrityServiceWithLogger(repos, sessions, calendar, cfg.ScanTimeout, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Sessions:  httptransport.NewSessionHandler(sessions, calendar, logger),
		Courses:   httptransport.NewCourseHandler(courses, calendar, logger),
		Integrity: httptransport.NewIntegrityHandler(integrity, calendar, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recoverer(logger),
		},
	})

	return &server{store: store, repos: repos, integrity: integrity, handler: router, logger: logger}, nil
}

func (s *server) Close() error {
	return s.store.Close()
}

// sweepLoop runs the conflict sweep every interval until ctx is done.
func (s *server) sweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *server) sweepOnce(ctx context.Context) int {
	logger := s.logger.With("component", "sweeper")
	report, err := s.integrity.SweepConflicts(logging.ContextWithLogger(ctx, logger))
	if err != nil {
		return 0
	}
	for _, c := range report.Conflicts {
		logger.WarnContext(ctx, "committed sessions overlap",
			"first_session_id", c.First.ID,
			"second_session_id", c.Second.ID,
			"kinds", c.Kinds,
		)
	}
	return len(report.Conflicts)
}
