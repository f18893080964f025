package migration

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestScanner_ScanOrdersByNumericVersion(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/10_add_index.sql":     {Data: []byte("CREATE INDEX idx ON t(a);")},
		"migrations/2_create_table.sql":   {Data: []byte("-- Description: Create t\nCREATE TABLE t (a TEXT);")},
		"migrations/README.md":            {Data: []byte("not a migration")},
		"migrations/nested/3_ignored.sql": {Data: []byte("SELECT 1;")},
	}

	migrations, err := NewScanner(fsys, "migrations").Scan()
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != "2" || migrations[1].Version != "10" {
		t.Fatalf("expected versions 2 then 10, got %s then %s", migrations[0].Version, migrations[1].Version)
	}
	if migrations[0].Description != "Create t" {
		t.Fatalf("expected description from comment, got %q", migrations[0].Description)
	}
	if migrations[1].Description != "add index" {
		t.Fatalf("expected description from file name, got %q", migrations[1].Description)
	}
	if migrations[0].FilePath != "migrations/2_create_table.sql" || len(migrations[0].Checksum) != 64 {
		t.Fatalf("unexpected metadata %+v", migrations[0])
	}
}

func TestScanner_RejectsInvalidFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fsys fstest.MapFS
		want error
	}{
		{
			name: "bad name",
			fsys: fstest.MapFS{"create.sql": {Data: []byte("SELECT 1;")}},
			want: ErrInvalidMigrationFile,
		},
		{
			name: "comments only",
			fsys: fstest.MapFS{"001_empty.sql": {Data: []byte("-- nothing here\n")}},
			want: ErrInvalidMigrationFile,
		},
		{
			name: "unbalanced parenthesis",
			fsys: fstest.MapFS{"001_broken.sql": {Data: []byte("CREATE TABLE t (a TEXT;")}},
			want: ErrInvalidMigrationFile,
		},
		{
			name: "unterminated string",
			fsys: fstest.MapFS{"001_broken.sql": {Data: []byte("INSERT INTO t VALUES ('a);")}},
			want: ErrInvalidMigrationFile,
		},
		{
			name: "duplicate version",
			fsys: fstest.MapFS{
				"001_a.sql": {Data: []byte("SELECT 1;")},
				"1_b.sql":   {Data: []byte("SELECT 2;")},
			},
			want: ErrDuplicateVersion,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewScanner(tc.fsys, ".").Scan()
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !IsInvalidFile(err) {
				t.Fatalf("expected IsInvalidFile to report true for %v", err)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	got := SplitStatements("-- header\nCREATE TABLE a (x INTEGER);\n\n-- second\nCREATE TABLE b (y INTEGER);\n")
	if len(got) != 2 || got[0] != "CREATE TABLE a (x INTEGER)" || got[1] != "CREATE TABLE b (y INTEGER)" {
		t.Fatalf("unexpected statements %q", got)
	}
}
