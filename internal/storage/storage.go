// Package storage selects a persistence backend and adapts it to the
// repository interfaces of the application layer.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/session-integrity/internal/persistence"
	"github.com/example/session-integrity/internal/persistence/memory"
	"github.com/example/session-integrity/internal/persistence/postgres"
	"github.com/example/session-integrity/internal/persistence/sqlite"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Driver      string
	SQLiteDSN   string
	PostgresDSN string
}

// Open connects to the configured backend and applies its migrations.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (persistence.Store, error) {
	var (
		store persistence.Store
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case DriverMemory:
		store = memory.New()
	case DriverSQLite, "":
		store, err = sqlite.Open(ctx, sqlite.DefaultConfig(opts.SQLiteDSN), logger)
	case DriverPostgres:
		store, err = postgres.Open(ctx, opts.PostgresDSN, logger)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
