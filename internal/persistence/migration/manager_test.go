package migration

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"
)

type fakeExecutor struct {
	applied  []AppliedMigration
	executed []string
	failOn   string
}

func (f *fakeExecutor) InitializeVersionTable(context.Context) error { return nil }

func (f *fakeExecutor) ExecuteMigration(_ context.Context, m Migration) error {
	if m.Version == f.failOn {
		return errors.New("syntax error")
	}
	f.executed = append(f.executed, m.Version)
	return nil
}

func (f *fakeExecutor) RecordMigration(_ context.Context, m Migration, d time.Duration) error {
	f.applied = append(f.applied, AppliedMigration{Version: m.Version, Checksum: m.Checksum, ExecutionTime: d})
	return nil
}

func (f *fakeExecutor) AppliedVersions(context.Context) ([]AppliedMigration, error) {
	return append([]AppliedMigration(nil), f.applied...), nil
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"001_courses.sql":  {Data: []byte("CREATE TABLE courses (id TEXT);")},
		"002_sessions.sql": {Data: []byte("CREATE TABLE sessions (id TEXT);")},
	}
}

func TestManager_RunAppliesPendingOnce(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{}
	manager := NewManager(NewScanner(testFS(), "."), exec, nil)

	n, err := manager.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if n != 2 || len(exec.executed) != 2 || exec.executed[0] != "001" {
		t.Fatalf("expected 001 and 002 to run in order, got %d %v", n, exec.executed)
	}

	n, err = manager.Run(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("expected second run to be a no-op, got %d, %v", n, err)
	}

	status, err := manager.Status(context.Background())
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.CurrentVersion != "002" || len(status.Pending) != 0 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestManager_RunStopsAtFailure(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{failOn: "002"}
	n, err := NewManager(NewScanner(testFS(), "."), exec, nil).Run(context.Background())
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}
	var mErr *MigrationError
	if !errors.As(err, &mErr) || mErr.Version != "002" {
		t.Fatalf("expected failure attributed to 002, got %v", err)
	}
	if n != 1 || len(exec.applied) != 1 {
		t.Fatalf("expected 001 to stay applied, got %d", n)
	}
}

func TestManager_StatusDetectsConflicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		applied []AppliedMigration
	}{
		{name: "changed file", applied: []AppliedMigration{{Version: "001", Checksum: "deadbeef"}}},
		{name: "missing file", applied: []AppliedMigration{{Version: "007"}}},
		{name: "older pending", applied: []AppliedMigration{{Version: "002"}}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			exec := &fakeExecutor{applied: tc.applied}
			_, err := NewManager(NewScanner(testFS(), "."), exec, nil).Status(context.Background())
			if !errors.Is(err, ErrVersionConflict) {
				t.Fatalf("expected ErrVersionConflict, got %v", err)
			}
		})
	}
}
