package migration

import (
	"context"
	"time"
)

// Migration is one versioned schema change read from a migration file.
type Migration struct {
	Version     string
	Description string
	SQL         string
	FilePath    string
	Checksum    string
}

// AppliedMigration is a row of the schema_migrations table.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status summarizes the schema state of a database.
type Status struct {
	CurrentVersion string
	Applied        []AppliedMigration
	Pending        []Migration
}

// Executor applies migrations to one database backend.
type Executor interface {
	// InitializeVersionTable creates schema_migrations if it does not exist.
	InitializeVersionTable(ctx context.Context) error
	// ExecuteMigration runs the migration's statements in one transaction.
	ExecuteMigration(ctx context.Context, migration Migration) error
	// RecordMigration marks a migration as applied.
	RecordMigration(ctx context.Context, migration Migration, executionTime time.Duration) error
	// AppliedVersions lists applied migrations ordered by version.
	AppliedVersions(ctx context.Context) ([]AppliedMigration, error)
}
