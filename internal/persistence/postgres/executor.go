package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/session-integrity/internal/persistence/migration"
)

// Executor applies migrations over a pgx pool.
type Executor struct {
	pool *pgxpool.Pool
}

var _ migration.Executor = (*Executor)(nil)

// NewExecutor returns a migration executor for pool.
func NewExecutor(pool *pgxpool.Pool) *Executor {
	return &Executor{pool: pool}
}

func (e *Executor) InitializeVersionTable(ctx context.Context) error {
	_, err := e.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		checksum TEXT NOT NULL DEFAULT '',
		execution_time_ms BIGINT NOT NULL DEFAULT 0
	)`)
	if err != nil {
		return migration.NewDatabaseError("", "create schema_migrations", err)
	}
	return nil
}

func (e *Executor) ExecuteMigration(ctx context.Context, m migration.Migration) error {
	err := pgx.BeginFunc(ctx, e.pool, func(tx pgx.Tx) error {
		for _, stmt := range migration.SplitStatements(m.SQL) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return migration.NewDatabaseError(m.Version, "execute", err)
	}
	return nil
}

func (e *Executor) RecordMigration(ctx context.Context, m migration.Migration, executionTime time.Duration) error {
	_, err := e.pool.Exec(ctx,
		`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES ($1, $2, $3, $4)`,
		m.Version, time.Now().UTC(), m.Checksum, executionTime.Milliseconds(),
	)
	if err != nil {
		return migration.NewDatabaseError(m.Version, "record migration", err)
	}
	return nil
}

func (e *Executor) AppliedVersions(ctx context.Context) ([]migration.AppliedMigration, error) {
	rows, err := e.pool.Query(ctx,
		`SELECT version, applied_at, checksum, execution_time_ms FROM schema_migrations ORDER BY version::int`)
	if err != nil {
		return nil, migration.NewDatabaseError("", "list applied versions", err)
	}
	defer rows.Close()

	var applied []migration.AppliedMigration
	for rows.Next() {
		var (
			a      migration.AppliedMigration
			millis int64
		)
		if err := rows.Scan(&a.Version, &a.AppliedAt, &a.Checksum, &millis); err != nil {
			return nil, migration.NewDatabaseError("", "scan applied version", err)
		}
		a.ExecutionTime = time.Duration(millis) * time.Millisecond
		applied = append(applied, a)
	}
	if err := rows.Err(); err != nil {
		return nil, migration.NewDatabaseError("", "iterate applied versions", err)
	}
	return applied, nil
}
