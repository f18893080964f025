package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/example/session-integrity/internal/persistence"
	"github.com/example/session-integrity/internal/persistence/sqlite"
	"github.com/example/session-integrity/internal/testfixtures"
)

func TestStoreContract(t *testing.T) {
	testfixtures.RunStoreContract(t, func(t *testing.T) persistence.Store {
		return testfixtures.NewSQLiteStore(t)
	})
}

func TestStoreMigrateIsIdempotent(t *testing.T) {
	store := testfixtures.NewSQLiteStore(t)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate returned error: %v", err)
	}

	var applied int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied); err != nil {
		t.Fatalf("query schema_migrations: %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected one applied migration, got %d", applied)
	}
}

func TestStoreEnforcesForeignKeysOnEveryConnection(t *testing.T) {
	store := testfixtures.NewSQLiteStore(t)
	ctx := context.Background()

	// Hold several connections at once so the pool has to open new ones.
	var conns []*sql.Conn
	t.Cleanup(func() {
		for _, c := range conns {
			_ = c.Close()
		}
	})
	for i := 0; i < 3; i++ {
		conn, err := store.DB().Conn(ctx)
		if err != nil {
			t.Fatalf("Conn returned error: %v", err)
		}
		conns = append(conns, conn)
		var enabled int
		if err := conn.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&enabled); err != nil {
			t.Fatalf("PRAGMA foreign_keys: %v", err)
		}
		if enabled != 1 {
			t.Fatalf("expected foreign keys on connection %d", i)
		}
	}
}

func TestStoreInMemoryDSN(t *testing.T) {
	store, err := sqlite.Open(context.Background(), sqlite.DefaultConfig(":memory:"), nil)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	course := testfixtures.NewCourseFixture().Persistence()
	if err := store.CreateCourse(context.Background(), course); err != nil {
		t.Fatalf("CreateCourse returned error: %v", err)
	}
	session := testfixtures.NewSessionFixture(course.ID, testfixtures.WithSessionAttendees("s1")).Persistence()
	if err := store.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	// Listing runs two queries; the single pooled connection must not deadlock.
	sessions, err := store.ListSessions(context.Background(), persistence.SessionFilter{})
	if err != nil || len(sessions) != 1 || len(sessions[0].AttendeeIDs) != 1 {
		t.Fatalf("unexpected sessions %+v, %v", sessions, err)
	}
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	if _, err := sqlite.Open(context.Background(), sqlite.Config{}, nil); err == nil {
		t.Fatalf("expected an error for an empty DSN")
	}
	if _, err := sqlite.Open(context.Background(), sqlite.DefaultConfig(filepath.Join(t.TempDir(), "missing", "x.db")), nil); err == nil {
		t.Fatalf("expected an error for a directory that does not exist")
	}
}
