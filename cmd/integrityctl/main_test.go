package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sessionsCSV = `id,course_id,teacher_id,start,end,type,created_by,creator_id,attendee_ids,created_at
t1,c1,teacher-1,2024-07-28T09:00,2024-07-28T11:00,THEORY,teacher,,s1;s2,2024-07-27T10:00
t2,c1,teacher-1,2024-07-28T09:00,2024-07-28T11:00,THEORY,teacher,,s1;s2,2024-07-27T10:05
l1,c1,teacher-1,2024-07-28T09:00,2024-07-28T11:00,THEORY,team_leader,,s1,2024-07-27T10:10
x1,c1,teacher-1,2024-07-28T10:00,2024-07-28T12:00,THEORY,teacher,,,2024-07-27T10:15
`

func setupEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("INTEGRITY_CONFIG_FILE", "")
	t.Setenv("INTEGRITY_STORE_DRIVER", "memory")
	t.Setenv("INTEGRITY_TIMEZONE", "UTC")
	t.Setenv("INTEGRITY_LOG_LEVEL", "error")

	path := filepath.Join(t.TempDir(), "sessions.csv")
	if err := os.WriteFile(path, []byte(sessionsCSV), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestScanFromInput(t *testing.T) {
	input := setupEnv(t)

	code, out, stderr := runCLI(t, "scan", "-input", input)
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	var result struct {
		Duplicates []sessionJSON `json:"duplicates"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(result.Duplicates) != 1 || result.Duplicates[0].ID != "t2" {
		t.Fatalf("expected only t2, got %+v", result.Duplicates)
	}

	code, out, _ = runCLI(t, "scan", "-input", input, "-format", "csv")
	if code != exitOK || !strings.HasPrefix(out, "id,course_id") || !strings.Contains(out, "t2,c1") {
		t.Fatalf("unexpected csv output (%d): %s", code, out)
	}
}

func TestReconcileFromInput(t *testing.T) {
	input := setupEnv(t)

	code, out, stderr := runCLI(t, "reconcile", "-input", input, "-course", "c1", "-start", "2024-07-28", "-end", "2024-07-28")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	var report reportJSON
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if report.Summary.Discrepancy != 1 || report.Summary.MissingData != 1 {
		t.Fatalf("unexpected summary %+v", report.Summary)
	}
	if len(report.Pairs[0].Differences) != 1 || report.Pairs[0].Differences[0].StudentID != "s2" {
		t.Fatalf("expected s2 to differ, got %+v", report.Pairs[0].Differences)
	}
}

func TestConflictsFromInput(t *testing.T) {
	input := setupEnv(t)

	code, out, stderr := runCLI(t, "conflicts", "-input", input, "-format", "csv")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	if !strings.HasPrefix(out, "kinds,first_id") || !strings.Contains(out, "x1") {
		t.Fatalf("expected conflicts with x1, got %s", out)
	}
}

func TestDeleteAgainstStore(t *testing.T) {
	setupEnv(t)

	code, out, stderr := runCLI(t, "delete", "-ids", "a, b")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	var report struct {
		DeletedCount int      `json:"deleted_count"`
		StaleIDs     []string `json:"stale_ids"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if report.DeletedCount != 0 || strings.Join(report.StaleIDs, ",") != "a,b" {
		t.Fatalf("expected both ids to be stale in an empty store, got %+v", report)
	}
}

func TestUsageErrors(t *testing.T) {
	setupEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "unknown command", args: []string{"frobnicate"}},
		{name: "missing reconcile flags", args: []string{"reconcile", "-course", "c1"}},
		{name: "bad format", args: []string{"scan", "-format", "xml"}},
		{name: "missing ids", args: []string{"delete"}},
		{name: "stray argument", args: []string{"conflicts", "extra"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if code, _, _ := runCLI(t, tc.args...); code != exitUsage {
				t.Fatalf("expected usage exit code, got %d", code)
			}
		})
	}
}

func TestInvalidConfigurationFails(t *testing.T) {
	setupEnv(t)
	t.Setenv("INTEGRITY_STORE_DRIVER", "oracle")

	code, _, stderr := runCLI(t, "scan")
	if code != exitError || !strings.Contains(stderr, "store_driver") {
		t.Fatalf("expected configuration error, got %d: %s", code, stderr)
	}
}
