package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/scheduler"
	"github.com/example/session-integrity/internal/timewindow"
)

// SessionService admits, stores and removes sessions. Writers that share a
// teacher or a course are serialized so that two overlapping sessions cannot
// both pass validation.
type SessionService struct {
	repos       Repositories
	loader      snapshotLoader
	validator   *scheduler.Validator
	calendar    timewindow.Calendar
	locks       *keyLocker
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewSessionService wires dependencies for session operations.
func NewSessionService(repos Repositories, calendar timewindow.Calendar, longSessionThreshold time.Duration, idGenerator func() string, now func() time.Time) *SessionService {
	return NewSessionServiceWithLogger(repos, calendar, longSessionThreshold, idGenerator, now, nil)
}

// NewSessionServiceWithLogger wires dependencies with a specific logger.
func NewSessionServiceWithLogger(repos Repositories, calendar timewindow.Calendar, longSessionThreshold time.Duration, idGenerator func() string, now func() time.Time, logger *slog.Logger) *SessionService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &SessionService{
		repos:       repos,
		loader:      snapshotLoader{repos: repos},
		validator:   scheduler.NewValidator(calendar, longSessionThreshold),
		calendar:    calendar,
		locks:       newKeyLocker(),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *SessionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SessionService", operation, attrs...)
}

// ValidateSession runs the admission checks without writing. It returns the
// warnings the caller should confirm, or a *ValidationError naming the first
// failed rule.
func (s *SessionService) ValidateSession(ctx context.Context, params ValidateSessionParams) (warnings []IntegrityWarning, err error) {
	if s == nil {
		return nil, fmt.Errorf("SessionService is nil")
	}
	logger := s.loggerWith(ctx, "ValidateSession",
		"session_id", params.SessionID,
		"teacher_id", params.Input.TeacherID,
		"course_id", params.Input.CourseID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "session accepted", "warnings", len(warnings))
	}()

	_, warnings, err = s.validate(ctx, params.SessionID, params.Input)
	return warnings, err
}

// CreateSession validates and stores a new session.
func (s *SessionService) CreateSession(ctx context.Context, input SessionInput) (session domain.Session, warnings []IntegrityWarning, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}
	logger := s.loggerWith(ctx, "CreateSession",
		"teacher_id", input.TeacherID,
		"course_id", input.CourseID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "session created", "session_id", session.ID, "warnings", len(warnings))
	}()

	unlock := s.locks.Lock(sessionKeys(input.TeacherID, input.CourseID)...)
	defer unlock()

	var candidate scheduler.Candidate
	candidate, warnings, err = s.validate(ctx, "", input)
	if err != nil {
		warnings = nil
		return
	}

	createdAt := s.now()
	session = s.buildSession(s.idGenerator(), candidate, input)
	session.CreatedAt = createdAt
	session.UpdatedAt = createdAt

	var persisted domain.Session
	persisted, err = s.repos.Sessions.CreateSession(ctx, session)
	if err != nil {
		err = mapRepoError("create session", err)
		session = domain.Session{}
		warnings = nil
		return
	}
	session = persisted
	return
}

// UpdateSession replaces a stored session after re-running the admission
// checks with the session itself excluded from the conflict scan.
func (s *SessionService) UpdateSession(ctx context.Context, params UpdateSessionParams) (session domain.Session, warnings []IntegrityWarning, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}
	logger := s.loggerWith(ctx, "UpdateSession",
		"session_id", params.SessionID,
		"teacher_id", params.Input.TeacherID,
		"course_id", params.Input.CourseID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "session updated", "warnings", len(warnings))
	}()

	input := params.Input
	existing, unlock, err := s.lockExisting(ctx, params.SessionID, sessionKeys(input.TeacherID, input.CourseID)...)
	if err != nil {
		return
	}
	defer unlock()

	if input.CreatedBy == "" {
		input.CreatedBy = string(existing.CreatedBy)
	}
	if input.CreatorID == "" {
		input.CreatorID = existing.CreatorID
	}

	var candidate scheduler.Candidate
	candidate, warnings, err = s.validate(ctx, existing.ID, input)
	if err != nil {
		warnings = nil
		return
	}

	session = s.buildSession(existing.ID, candidate, input)
	session.CreatedAt = existing.CreatedAt
	session.UpdatedAt = s.now()

	var persisted domain.Session
	persisted, err = s.repos.Sessions.UpdateSession(ctx, session)
	if err != nil {
		err = mapRepoError("update session", err)
		session = domain.Session{}
		warnings = nil
		return
	}
	session = persisted
	return
}

// DeleteSession removes a stored session.
func (s *SessionService) DeleteSession(ctx context.Context, id string) (err error) {
	if s == nil {
		return fmt.Errorf("SessionService is nil")
	}
	logger := s.loggerWith(ctx, "DeleteSession", "session_id", id)
	defer func() {
		logOutcome(ctx, logger, err, "session deleted")
	}()

	_, unlock, err := s.lockExisting(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if err = s.repos.Sessions.DeleteSession(ctx, id); err != nil {
		err = mapRepoError("delete session", err)
		return err
	}
	return nil
}

// GetSession returns a stored session.
func (s *SessionService) GetSession(ctx context.Context, id string) (domain.Session, error) {
	if s == nil {
		return domain.Session{}, fmt.Errorf("SessionService is nil")
	}
	session, err := s.repos.Sessions.GetSession(ctx, id)
	if err != nil {
		return domain.Session{}, mapRepoError("get session", err)
	}
	return session, nil
}

// ListSessions returns sessions in start order.
func (s *SessionService) ListSessions(ctx context.Context, params ListSessionsParams) ([]domain.Session, error) {
	if s == nil {
		return nil, fmt.Errorf("SessionService is nil")
	}

	filter := SessionFilter{
		CourseID:     params.CourseID,
		TeacherID:    params.TeacherID,
		StartsAfter:  params.StartsAfter,
		StartsBefore: params.StartsBefore,
	}
	if params.Period != timewindow.PeriodNone {
		start, end := s.calendar.PeriodRange(params.Period, params.PeriodReference)
		// The period is half-open; the repository bound is inclusive.
		last := end.Add(-time.Nanosecond)
		if filter.StartsAfter == nil {
			filter.StartsAfter = &start
		}
		if filter.StartsBefore == nil {
			filter.StartsBefore = &last
		}
	}

	sessions, err := s.repos.Sessions.ListSessions(ctx, filter)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, mapRepoError("list sessions", err)
	}
	domain.SortSessions(sessions)
	return sessions, nil
}

// lockExisting loads the session, locks its keys together with extra, and
// re-reads it under the lock. If the stored keys moved in between, the locks
// are released and the sequence retried.
func (s *SessionService) lockExisting(ctx context.Context, id string, extra ...string) (domain.Session, func(), error) {
	const attempts = 3
	for i := 0; i < attempts; i++ {
		existing, err := s.repos.Sessions.GetSession(ctx, id)
		if err != nil {
			return domain.Session{}, nil, mapRepoError("get session", err)
		}
		keys := append(sessionKeys(existing.TeacherID, existing.CourseID), extra...)
		unlock := s.locks.Lock(keys...)

		current, err := s.repos.Sessions.GetSession(ctx, id)
		if err != nil {
			unlock()
			return domain.Session{}, nil, mapRepoError("get session", err)
		}
		if current.TeacherID == existing.TeacherID && current.CourseID == existing.CourseID {
			return current, unlock, nil
		}
		unlock()
	}
	return domain.Session{}, nil, dataAccess("lock session", errors.New("session keys changed concurrently"))
}

func (s *SessionService) validate(ctx context.Context, sessionID string, input SessionInput) (scheduler.Candidate, []IntegrityWarning, error) {
	if vErr := checkSessionFields(input); vErr.HasErrors() {
		return scheduler.Candidate{}, nil, vErr
	}

	candidate := scheduler.Candidate{
		ID:          sessionID,
		CourseID:    strings.TrimSpace(input.CourseID),
		TeacherID:   strings.TrimSpace(input.TeacherID),
		CreatedBy:   domain.Role(input.CreatedBy),
		AttendeeIDs: domain.NormalizeIDs(input.AttendeeIDs),
	}

	malformed := &ValidationError{Kind: KindMalformedTime}
	var err error
	if candidate.Start, err = s.calendar.ParseTimestamp(input.Start); err != nil {
		malformed.FieldErrors = map[string]string{"start": err.Error()}
	}
	if candidate.End, err = s.calendar.ParseTimestamp(input.End); err != nil {
		if malformed.FieldErrors == nil {
			malformed.FieldErrors = make(map[string]string)
		}
		malformed.FieldErrors["end"] = err.Error()
	}
	if len(malformed.FieldErrors) > 0 {
		malformed.Message = "start and end must be valid timestamps"
		return scheduler.Candidate{}, nil, malformed
	}

	snapshot, err := s.loader.load(ctx, candidate.CourseID, candidate.TeacherID)
	if err != nil {
		return scheduler.Candidate{}, nil, err
	}

	found, err := s.validator.Validate(candidate, snapshot)
	if err != nil {
		var violation *scheduler.Violation
		if errors.As(err, &violation) {
			return scheduler.Candidate{}, nil, fromViolation(violation)
		}
		return scheduler.Candidate{}, nil, err
	}
	return candidate, toIntegrityWarnings(found), nil
}

func (s *SessionService) buildSession(id string, candidate scheduler.Candidate, input SessionInput) domain.Session {
	return domain.Session{
		ID:          id,
		CourseID:    candidate.CourseID,
		TeacherID:   candidate.TeacherID,
		Start:       candidate.Start,
		End:         candidate.End,
		Type:        domain.SessionType(input.Type),
		Content:     input.Content,
		AttendeeIDs: candidate.AttendeeIDs,
		CreatorID:   strings.TrimSpace(input.CreatorID),
		CreatedBy:   candidate.CreatedBy,
		VehicleID:   strings.TrimSpace(input.VehicleID),
	}
}

func checkSessionFields(input SessionInput) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.TeacherID) == "" {
		vErr.add("teacher_id", "teacher_id is required")
	}
	if strings.TrimSpace(input.CourseID) == "" {
		vErr.add("course_id", "course_id is required")
	}
	if input.Type != "" && !domain.SessionType(input.Type).Valid() {
		vErr.add("type", "type must be THEORY or PRACTICE")
	}
	if input.CreatedBy != "" && !domain.Role(input.CreatedBy).Valid() {
		vErr.add("created_by", "created_by must be teacher or team_leader")
	}
	if vErr.HasErrors() {
		vErr.Message = "session fields are invalid"
	}
	return vErr
}

func fromViolation(v *scheduler.Violation) *ValidationError {
	vErr := &ValidationError{Kind: ValidationKind(v.Rule), Message: v.Message}
	if v.Conflicting != nil {
		start := v.Conflicting.Start
		vErr.ConflictingSessionID = v.Conflicting.ID
		vErr.ConflictingStart = &start
	}
	if v.StudentID != "" {
		vErr.FieldErrors = map[string]string{"attendee_ids": fmt.Sprintf("student %s is not enrolled in the course", v.StudentID)}
	}
	return vErr
}

func toIntegrityWarnings(warnings []scheduler.Warning) []IntegrityWarning {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]IntegrityWarning, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, IntegrityWarning{Kind: WarningKind(w.Kind), Message: w.Message, DurationHours: w.DurationHours})
	}
	return out
}
