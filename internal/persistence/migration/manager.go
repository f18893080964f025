package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Manager applies pending migrations in version order and tracks them in
// the schema_migrations table.
type Manager struct {
	scanner  *Scanner
	executor Executor
	logger   *slog.Logger
}

// NewManager returns a manager. A nil logger falls back to slog.Default.
func NewManager(scanner *Scanner, executor Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{scanner: scanner, executor: executor, logger: logger.With("component", "migration")}
}

// Run applies every pending migration and returns how many were applied.
// The first failing migration stops the run; earlier ones stay applied.
func (m *Manager) Run(ctx context.Context) (int, error) {
	started := time.Now()
	status, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}
	if len(status.Pending) == 0 {
		m.logger.DebugContext(ctx, "schema up to date", "version", status.CurrentVersion)
		return 0, nil
	}

	m.logger.InfoContext(ctx, "applying migrations",
		"current_version", status.CurrentVersion,
		"pending", len(status.Pending),
	)
	for i, migration := range status.Pending {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		migrationStarted := time.Now()
		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed",
				"version", migration.Version,
				"file", migration.FilePath,
				"error", err,
			)
			return i, newMigrationError(migration.Version, migration.FilePath, "execute",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}
		elapsed := time.Since(migrationStarted)
		if err := m.executor.RecordMigration(ctx, migration, elapsed); err != nil {
			return i, newMigrationError(migration.Version, migration.FilePath, "record", err)
		}
		m.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"duration", elapsed,
		)
	}
	m.logger.InfoContext(ctx, "migrations completed",
		"applied", len(status.Pending),
		"duration", time.Since(started),
	)
	return len(status.Pending), nil
}

// Status compares the migration files with the applied versions. An applied
// version whose file is missing or whose checksum changed is a conflict.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, fmt.Errorf("initialize version table: %w", err)
	}
	available, err := m.scanner.Scan()
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.AppliedVersions(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("load applied versions: %w", err)
	}

	files := make(map[int]Migration, len(available))
	for _, migration := range available {
		files[versionNumber(migration.Version)] = migration
	}
	done := make(map[int]struct{}, len(applied))
	status := Status{Applied: applied}
	for _, a := range applied {
		n := versionNumber(a.Version)
		file, ok := files[n]
		if !ok {
			return Status{}, newMigrationError(a.Version, "", "check applied",
				fmt.Errorf("%w: applied version has no migration file", ErrVersionConflict))
		}
		if a.Checksum != "" && a.Checksum != file.Checksum {
			return Status{}, newMigrationError(a.Version, file.FilePath, "check applied",
				fmt.Errorf("%w: file changed after it was applied", ErrVersionConflict))
		}
		done[n] = struct{}{}
		if versionNumber(status.CurrentVersion) < n {
			status.CurrentVersion = a.Version
		}
	}
	for _, migration := range available {
		n := versionNumber(migration.Version)
		if _, ok := done[n]; ok {
			continue
		}
		if n < versionNumber(status.CurrentVersion) {
			return Status{}, newMigrationError(migration.Version, migration.FilePath, "check order",
				fmt.Errorf("%w: version is older than applied version %s", ErrVersionConflict, status.CurrentVersion))
		}
		status.Pending = append(status.Pending, migration)
	}
	return status, nil
}
