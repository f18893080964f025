package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/session-integrity/internal/persistence/sqlite"
)

// NewSQLiteStore opens and migrates a SQLite store in a temporary file. The
// store is closed when the test ends.
func NewSQLiteStore(tb testing.TB) *sqlite.Store {
	tb.Helper()

	cfg := sqlite.DefaultConfig(filepath.Join(tb.TempDir(), "integrity.db"))
	store, err := sqlite.Open(context.Background(), cfg, nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	return store
}
