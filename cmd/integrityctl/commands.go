package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/session-integrity/internal/application"
	"github.com/example/session-integrity/internal/csvio"
	"github.com/example/session-integrity/internal/dedupe"
	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/reconcile"
	"github.com/example/session-integrity/internal/scheduler"
	"github.com/example/session-integrity/internal/storage"
	"github.com/example/session-integrity/internal/timewindow"
)

func (env *environment) calendar() (timewindow.Calendar, error) {
	return timewindow.LoadCalendar(env.cfg.Timezone)
}

// withServices opens the configured store, wires the services and runs fn.
func (env *environment) withServices(ctx context.Context, fn func(*application.IntegrityService) error) error {
	cal, err := env.calendar()
	if err != nil {
		return err
	}
	store, err := storage.Open(ctx, storage.Options{
		Driver:      env.cfg.StoreDriver,
		SQLiteDSN:   env.cfg.SQLiteDSN,
		PostgresDSN: env.cfg.PostgresDSN,
	}, env.logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			env.logger.Error("failed to close storage", "error", cerr)
		}
	}()

	repos := storage.NewRepositories(store, cal)
	sessions := application.NewSessionServiceWithLogger(repos, cal, env.cfg.LongSessionThreshold, uuid.NewString, time.Now, env.logger)
	integrity := application.NewIntegrityServiceWithLogger(repos, sessions, cal, env.cfg.ScanTimeout, env.logger)
	return fn(integrity)
}

func loadInput(path string, cal timewindow.Calendar) ([]domain.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csvio.LoadSessions(f, cal)
}

func (env *environment) writeJSON(v any) error {
	enc := json.NewEncoder(env.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runScan(ctx context.Context, env *environment, args []string) error {
	fset := flag.NewFlagSet("scan", flag.ContinueOnError)
	format := fset.String("format", "json", "output format: json or csv")
	input := fset.String("input", "", "analyze sessions from this CSV file instead of the store")
	if err := parseFlags(fset, args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}
	cal, err := env.calendar()
	if err != nil {
		return err
	}

	var result dedupe.Result
	if *input != "" {
		sessions, err := loadInput(*input, cal)
		if err != nil {
			return err
		}
		result, err = dedupe.NewDetector(cal).Find(ctx, sessions)
		if err != nil {
			return err
		}
	} else {
		err := env.withServices(ctx, func(integrity *application.IntegrityService) error {
			scan, err := integrity.ScanDuplicates(ctx)
			result = dedupe.Result{Duplicates: scan.Duplicates, Unattributed: scan.Unattributed}
			return err
		})
		if err != nil {
			return err
		}
	}

	if *format == "csv" {
		return csvio.NewWriter(cal).WriteDuplicates(env.stdout, result)
	}
	return env.writeJSON(struct {
		Duplicates   []sessionJSON `json:"duplicates"`
		Unattributed []string      `json:"unattributed"`
	}{toSessionJSON(result.Duplicates), nonNil(result.Unattributed)})
}

func runDelete(ctx context.Context, env *environment, args []string) error {
	fset := flag.NewFlagSet("delete", flag.ContinueOnError)
	ids := fset.String("ids", "", "comma separated session ids to delete, in order")
	if err := parseFlags(fset, args); err != nil {
		return err
	}
	requested := splitIDs(*ids)
	if len(requested) == 0 {
		return usagef("-ids is required")
	}

	return env.withServices(ctx, func(integrity *application.IntegrityService) error {
		report, err := integrity.DeleteDuplicates(ctx, requested)
		// The report is printed even for a partial batch.
		if werr := env.writeJSON(struct {
			DeletedCount int      `json:"deleted_count"`
			DeletedIDs   []string `json:"deleted_ids"`
			FailedIDs    []string `json:"failed_ids"`
			SkippedIDs   []string `json:"skipped_ids"`
			StaleIDs     []string `json:"stale_ids"`
		}{
			report.DeletedCount,
			nonNil(report.DeletedIDs),
			nonNil(report.FailedIDs),
			nonNil(report.SkippedIDs),
			nonNil(report.StaleIDs),
		}); werr != nil {
			return errors.Join(err, werr)
		}
		return err
	})
}

func runConflicts(ctx context.Context, env *environment, args []string) error {
	fset := flag.NewFlagSet("conflicts", flag.ContinueOnError)
	format := fset.String("format", "json", "output format: json or csv")
	input := fset.String("input", "", "analyze sessions from this CSV file instead of the store")
	if err := parseFlags(fset, args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}
	cal, err := env.calendar()
	if err != nil {
		return err
	}

	var conflicts []scheduler.Conflict
	if *input != "" {
		sessions, err := loadInput(*input, cal)
		if err != nil {
			return err
		}
		if conflicts, err = scheduler.FindConflicts(ctx, sessions); err != nil {
			return err
		}
	} else {
		err := env.withServices(ctx, func(integrity *application.IntegrityService) error {
			report, err := integrity.SweepConflicts(ctx)
			conflicts = report.Conflicts
			return err
		})
		if err != nil {
			return err
		}
	}

	if *format == "csv" {
		return csvio.NewWriter(cal).WriteConflicts(env.stdout, conflicts)
	}
	type conflictJSON struct {
		Kinds  []scheduler.ConflictKind `json:"kinds"`
		First  sessionJSON              `json:"first"`
		Second sessionJSON              `json:"second"`
	}
	out := make([]conflictJSON, 0, len(conflicts))
	for _, c := range conflicts {
		pair := toSessionJSON([]domain.Session{c.First, c.Second})
		out = append(out, conflictJSON{Kinds: c.Kinds, First: pair[0], Second: pair[1]})
	}
	return env.writeJSON(struct {
		Conflicts []conflictJSON `json:"conflicts"`
	}{out})
}

func runReconcile(ctx context.Context, env *environment, args []string) error {
	fset := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	courseID := fset.String("course", "", "course id")
	start := fset.String("start", "", "first day, YYYY-MM-DD")
	end := fset.String("end", "", "last day, YYYY-MM-DD")
	format := fset.String("format", "json", "output format: json or csv")
	input := fset.String("input", "", "analyze sessions from this CSV file instead of the store")
	if err := parseFlags(fset, args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}
	if *courseID == "" || *start == "" || *end == "" {
		return usagef("-course, -start and -end are required")
	}
	cal, err := env.calendar()
	if err != nil {
		return err
	}

	var report reconcile.Report
	if *input != "" {
		from, ferr := cal.ParseDate(*start)
		to, terr := cal.ParseDate(*end)
		if ferr != nil || terr != nil {
			return usagef("-start and -end must be dates in YYYY-MM-DD form")
		}
		sessions, err := loadInput(*input, cal)
		if err != nil {
			return err
		}
		report, err = reconcile.NewEngine(cal).Reconcile(ctx, reconcile.Request{CourseID: *courseID, From: from, To: to}, sessions)
		if err != nil {
			return err
		}
	} else {
		err := env.withServices(ctx, func(integrity *application.IntegrityService) error {
			var rerr error
			report, rerr = integrity.Reconcile(ctx, application.ReconcileParams{CourseID: *courseID, StartDate: *start, EndDate: *end})
			return rerr
		})
		if err != nil {
			return err
		}
	}

	if *format == "csv" {
		return csvio.NewWriter(cal).WriteReconciliation(env.stdout, report)
	}
	return env.writeJSON(toReportJSON(cal, report))
}

type sessionJSON struct {
	ID          string   `json:"id"`
	CourseID    string   `json:"course_id"`
	TeacherID   string   `json:"teacher_id"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	CreatedBy   string   `json:"created_by,omitempty"`
	CreatorID   string   `json:"creator_id,omitempty"`
	AttendeeIDs []string `json:"attendee_ids"`
}

func toSessionJSON(sessions []domain.Session) []sessionJSON {
	out := make([]sessionJSON, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionJSON{
			ID:          s.ID,
			CourseID:    s.CourseID,
			TeacherID:   s.TeacherID,
			Start:       s.Start.Format(time.RFC3339),
			End:         s.End.Format(time.RFC3339),
			CreatedBy:   string(s.CreatedBy),
			CreatorID:   s.CreatorID,
			AttendeeIDs: nonNil(s.AttendeeIDs),
		})
	}
	return out
}

type pairJSON struct {
	Slot             string           `json:"slot"`
	Status           reconcile.Status `json:"status"`
	TeacherSessionID string           `json:"teacher_session_id,omitempty"`
	LeaderSessionID  string           `json:"leader_session_id,omitempty"`
	Differences      []differenceJSON `json:"differences,omitempty"`
	Ignored          []string         `json:"ignored,omitempty"`
}

type differenceJSON struct {
	StudentID   string         `json:"student_id"`
	StudentName string         `json:"student_name,omitempty"`
	Side        reconcile.Side `json:"side"`
}

type summaryJSON struct {
	Matched     int `json:"matched"`
	Discrepancy int `json:"discrepancy"`
	MissingData int `json:"missing_data"`
}

type reportJSON struct {
	CourseID   string      `json:"course_id"`
	From       string      `json:"from"`
	To         string      `json:"to"`
	Pairs      []pairJSON  `json:"pairs"`
	Unassigned []string    `json:"unassigned"`
	Summary    summaryJSON `json:"summary"`
}

func toReportJSON(cal timewindow.Calendar, report reconcile.Report) reportJSON {
	out := reportJSON{
		CourseID:   report.CourseID,
		From:       cal.DayBucket(report.From),
		To:         cal.DayBucket(report.To),
		Pairs:      make([]pairJSON, 0, len(report.Pairs)),
		Unassigned: nonNil(report.Unassigned),
		Summary: summaryJSON{
			Matched:     report.Summary.Matched,
			Discrepancy: report.Summary.Discrepancy,
			MissingData: report.Summary.MissingData,
		},
	}
	for _, pair := range report.Pairs {
		p := pairJSON{
			Slot:    pair.Slot.In(cal.Location()).Format(time.RFC3339),
			Status:  pair.Status,
			Ignored: pair.Ignored,
		}
		for _, d := range pair.Differences {
			p.Differences = append(p.Differences, differenceJSON{StudentID: d.StudentID, StudentName: d.StudentName, Side: d.Side})
		}
		if pair.TeacherSession != nil {
			p.TeacherSessionID = pair.TeacherSession.ID
		}
		if pair.LeaderSession != nil {
			p.LeaderSessionID = pair.LeaderSession.ID
		}
		out.Pairs = append(out.Pairs, p)
	}
	return out
}

func splitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
