package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/session-integrity/internal/dedupe"
	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/reconcile"
	"github.com/example/session-integrity/internal/scheduler"
	"github.com/example/session-integrity/internal/timewindow"
)

// DefaultScanTimeout bounds a batch analysis when no timeout is configured.
const DefaultScanTimeout = 2 * time.Minute

// SessionDeleter removes a single session, honoring write serialization.
type SessionDeleter interface {
	DeleteSession(ctx context.Context, id string) error
}

// IntegrityService runs the batch analyses over stored sessions: duplicate
// scans and cleanup, the conflict sweep and attendance reconciliation.
type IntegrityService struct {
	repos       Repositories
	loader      snapshotLoader
	deleter     SessionDeleter
	calendar    timewindow.Calendar
	detector    *dedupe.Detector
	engine      *reconcile.Engine
	scanTimeout time.Duration
	logger      *slog.Logger
}

// NewIntegrityService wires dependencies for the batch analyses. Deletions go
// through deleter so they take the same locks as other writers.
func NewIntegrityService(repos Repositories, deleter SessionDeleter, calendar timewindow.Calendar, scanTimeout time.Duration) *IntegrityService {
	return NewIntegrityServiceWithLogger(repos, deleter, calendar, scanTimeout, nil)
}

// NewIntegrityServiceWithLogger wires dependencies with a specific logger.
func NewIntegrityServiceWithLogger(repos Repositories, deleter SessionDeleter, calendar timewindow.Calendar, scanTimeout time.Duration, logger *slog.Logger) *IntegrityService {
	if scanTimeout <= 0 {
		scanTimeout = DefaultScanTimeout
	}
	return &IntegrityService{
		repos:       repos,
		loader:      snapshotLoader{repos: repos},
		deleter:     deleter,
		calendar:    calendar,
		detector:    dedupe.NewDetector(calendar),
		engine:      reconcile.NewEngine(calendar),
		scanTimeout: scanTimeout,
		logger:      defaultLogger(logger),
	}
}

func (s *IntegrityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "IntegrityService", operation, attrs...)
}

func (s *IntegrityService) scanContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.scanTimeout)
}

func incomplete(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrScanIncomplete, err)
	}
	return err
}

// ScanDuplicates reports every stored session that repeats an earlier
// record's teacher, course, local day, start time and creator.
func (s *IntegrityService) ScanDuplicates(ctx context.Context) (scan DuplicateScan, err error) {
	if s == nil {
		err = fmt.Errorf("IntegrityService is nil")
		return
	}
	logger := s.loggerWith(ctx, "ScanDuplicates")
	defer func() {
		logOutcome(ctx, logger, err, "duplicate scan completed",
			"duplicates", len(scan.Duplicates),
			"unattributed", len(scan.Unattributed),
		)
	}()

	scan, err = s.scanDuplicates(ctx)
	return
}

func (s *IntegrityService) scanDuplicates(ctx context.Context) (DuplicateScan, error) {
	scanCtx, cancel := s.scanContext(ctx)
	defer cancel()

	sessions, err := s.loader.all(scanCtx)
	if err != nil {
		return DuplicateScan{}, incomplete(err)
	}
	result, err := s.detector.Find(scanCtx, sessions)
	if err != nil {
		return DuplicateScan{}, incomplete(err)
	}
	return DuplicateScan{Duplicates: result.Duplicates, Unattributed: result.Unattributed}, nil
}

// DeleteDuplicates removes the requested sessions that a fresh scan still
// reports as redundant. Requested IDs that are no longer redundant are kept
// and reported as stale. Deletions run in the order given and stop at the
// first failure or cancellation; the report then names the failing ID and
// the skipped remainder, and the error describes the failure.
func (s *IntegrityService) DeleteDuplicates(ctx context.Context, ids []string) (report DeleteDuplicatesReport, err error) {
	if s == nil {
		err = fmt.Errorf("IntegrityService is nil")
		return
	}
	logger := s.loggerWith(ctx, "DeleteDuplicates", "requested", len(ids))
	defer func() {
		logOutcome(ctx, logger, err, "duplicate cleanup completed",
			"deleted", report.DeletedCount,
			"stale", len(report.StaleIDs),
		)
	}()

	requested := orderedUnique(ids)
	if len(requested) == 0 {
		vErr := &ValidationError{Message: "no session ids given"}
		vErr.add("ids", "at least one id is required")
		err = vErr
		return
	}

	scan, err := s.scanDuplicates(ctx)
	if err != nil {
		return
	}
	redundant := make(map[string]struct{}, len(scan.Duplicates))
	for _, d := range scan.Duplicates {
		redundant[d.ID] = struct{}{}
	}

	var pending []string
	for _, id := range requested {
		if _, ok := redundant[id]; ok {
			pending = append(pending, id)
			continue
		}
		report.StaleIDs = append(report.StaleIDs, id)
	}

	for i, id := range pending {
		if ctxErr := ctx.Err(); ctxErr != nil {
			report.SkippedIDs = append(report.SkippedIDs, pending[i:]...)
			err = ctxErr
			return
		}
		delErr := s.deleter.DeleteSession(ctx, id)
		if delErr != nil && errors.Is(delErr, ErrNotFound) {
			// Removed by someone else since the scan.
			report.StaleIDs = append(report.StaleIDs, id)
			continue
		}
		if delErr != nil {
			report.FailedIDs = append(report.FailedIDs, id)
			report.SkippedIDs = append(report.SkippedIDs, pending[i+1:]...)
			err = delErr
			return
		}
		report.DeletedIDs = append(report.DeletedIDs, id)
		report.DeletedCount++
		logger.WarnContext(ctx, "duplicate session deleted", "session_id", id)
	}
	return
}

// SweepConflicts reports every pair of stored sessions that overlap for the
// same teacher or the same course.
func (s *IntegrityService) SweepConflicts(ctx context.Context) (report ConflictReport, err error) {
	if s == nil {
		err = fmt.Errorf("IntegrityService is nil")
		return
	}
	logger := s.loggerWith(ctx, "SweepConflicts")
	defer func() {
		logOutcome(ctx, logger, err, "conflict sweep completed", "conflicts", len(report.Conflicts))
	}()

	scanCtx, cancel := s.scanContext(ctx)
	defer cancel()

	sessions, err := s.loader.all(scanCtx)
	if err != nil {
		err = incomplete(err)
		return
	}
	conflicts, err := scheduler.FindConflicts(scanCtx, sessions)
	if err != nil {
		err = incomplete(err)
		return
	}
	report.Conflicts = conflicts
	return
}

// Reconcile pairs teacher and team-leader records of one course over an
// inclusive range of calendar days and compares their attendance. Every call
// reads the store afresh; reports are never cached.
func (s *IntegrityService) Reconcile(ctx context.Context, params ReconcileParams) (report ReconciliationReport, err error) {
	if s == nil {
		err = fmt.Errorf("IntegrityService is nil")
		return
	}
	logger := s.loggerWith(ctx, "Reconcile",
		"course_id", params.CourseID,
		"start_date", params.StartDate,
		"end_date", params.EndDate,
	)
	defer func() {
		logOutcome(ctx, logger, err, "reconciliation completed",
			"pairs", len(report.Pairs),
			"discrepancies", report.Summary.Discrepancy,
			"missing", report.Summary.MissingData,
		)
	}()

	from, to, vErr := s.parseRange(params)
	if vErr != nil {
		err = vErr
		return
	}

	if _, err = s.repos.Courses.GetCourse(ctx, params.CourseID); err != nil {
		err = mapRepoError("get course", err)
		return
	}

	scanCtx, cancel := s.scanContext(ctx)
	defer cancel()

	first := s.calendar.StartOfDay(from)
	last := s.calendar.EndOfDay(to)
	var (
		sessions []domain.Session
		students []domain.Student
	)
	g, gctx := errgroup.WithContext(scanCtx)
	g.Go(func() error {
		var listErr error
		sessions, listErr = s.repos.Sessions.ListSessions(gctx, SessionFilter{
			CourseID:     params.CourseID,
			StartsAfter:  &first,
			StartsBefore: &last,
		})
		if listErr != nil && !isNotFoundError(listErr) {
			return dataAccess("load course sessions", listErr)
		}
		return nil
	})
	if s.repos.Students != nil {
		g.Go(func() error {
			var listErr error
			students, listErr = s.repos.Students.ListStudents(gctx, params.CourseID)
			if listErr != nil && !isNotFoundError(listErr) {
				return dataAccess("load roster", listErr)
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		err = incomplete(err)
		return
	}

	report, err = s.engine.Reconcile(scanCtx, reconcile.Request{
		CourseID: params.CourseID,
		From:     from,
		To:       to,
		Roster:   rosterNames(students),
	}, sessions)
	if err != nil {
		err = incomplete(err)
	}
	return
}

func (s *IntegrityService) parseRange(params ReconcileParams) (time.Time, time.Time, *ValidationError) {
	vErr := &ValidationError{}
	if strings.TrimSpace(params.CourseID) == "" {
		vErr.add("course_id", "course_id is required")
	}
	from, err := s.calendar.ParseDate(params.StartDate)
	if err != nil {
		vErr.add("start_date", "start_date must be a date in YYYY-MM-DD form")
	}
	to, err := s.calendar.ParseDate(params.EndDate)
	if err != nil {
		vErr.add("end_date", "end_date must be a date in YYYY-MM-DD form")
	}
	if vErr.HasErrors() {
		vErr.Message = "reconciliation parameters are invalid"
		return time.Time{}, time.Time{}, vErr
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, &ValidationError{
			Kind:        KindInvertedRange,
			Message:     "end date precedes start date",
			FieldErrors: map[string]string{"end_date": "end_date must not precede start_date"},
		}
	}
	return from, to, nil
}

func orderedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
