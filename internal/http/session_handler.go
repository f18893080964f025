package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/session-integrity/internal/application"
	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/timewindow"
)

type sessionService interface {
	ValidateSession(ctx context.Context, params application.ValidateSessionParams) ([]application.IntegrityWarning, error)
	CreateSession(ctx context.Context, input application.SessionInput) (domain.Session, []application.IntegrityWarning, error)
	UpdateSession(ctx context.Context, params application.UpdateSessionParams) (domain.Session, []application.IntegrityWarning, error)
	DeleteSession(ctx context.Context, id string) error
	GetSession(ctx context.Context, id string) (domain.Session, error)
	ListSessions(ctx context.Context, params application.ListSessionsParams) ([]domain.Session, error)
}

type SessionHandler struct {
	service   sessionService
	calendar  timewindow.Calendar
	responder responder
}

// NewSessionHandler serves session records. The calendar resolves list filters
// given as local dates.
func NewSessionHandler(service sessionService, calendar timewindow.Calendar, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{service: service, calendar: calendar, responder: newResponder(logger)}
}

func (h *SessionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req validateSessionRequest
	if rErr := decodeRequest(r, &req); rErr != nil {
		h.responder.writeRequestError(w, r, rErr)
		return
	}

	warnings, err := h.service.ValidateSession(r.Context(), application.ValidateSessionParams{
		SessionID: strings.TrimSpace(req.SessionID),
		Input:     req.sessionRequest.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, validateSessionResponse{
		Valid:    true,
		Warnings: toWarningDTOs(warnings),
	})
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req sessionRequest
	if rErr := decodeRequest(r, &req); rErr != nil {
		h.responder.writeRequestError(w, r, rErr)
		return
	}

	session, warnings, err := h.service.CreateSession(r.Context(), req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderSession(r.Context(), w, session, warnings, http.StatusCreated)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	session, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderSession(r.Context(), w, session, nil, http.StatusOK)
}

func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req sessionRequest
	if rErr := decodeRequest(r, &req); rErr != nil {
		h.responder.writeRequestError(w, r, rErr)
		return
	}

	session, warnings, err := h.service.UpdateSession(r.Context(), application.UpdateSessionParams{
		SessionID: sessionID,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderSession(r.Context(), w, session, warnings, http.StatusOK)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	if err := h.service.DeleteSession(r.Context(), sessionID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	params, rErr := buildListParams(r.URL.Query(), h.calendar)
	if rErr != nil {
		h.responder.writeRequestError(w, r, rErr)
		return
	}

	sessions, err := h.service.ListSessions(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSessionsResponse{Sessions: toSessionDTOs(sessions)})
}

func (h *SessionHandler) renderSession(ctx context.Context, w http.ResponseWriter, session domain.Session, warnings []application.IntegrityWarning, status int) {
	payload := sessionResponse{
		Session:  toSessionDTO(session),
		Warnings: toWarningDTOs(warnings),
	}
	h.responder.writeJSON(ctx, w, status, payload)
}

type sessionRequest struct {
	CourseID    string   `json:"course_id" validate:"required"`
	TeacherID   string   `json:"teacher_id" validate:"required"`
	Start       string   `json:"start" validate:"required"`
	End         string   `json:"end" validate:"required"`
	Type        string   `json:"type" validate:"omitempty,oneof=THEORY PRACTICE"`
	Content     string   `json:"content" validate:"max=2000"`
	AttendeeIDs []string `json:"attendee_ids" validate:"dive,required"`
	CreatorID   string   `json:"creator_id"`
	CreatedBy   string   `json:"created_by" validate:"omitempty,oneof=teacher team_leader"`
	VehicleID   string   `json:"vehicle_id"`
}

func (r sessionRequest) toInput() application.SessionInput {
	return application.SessionInput{
		CourseID:    strings.TrimSpace(r.CourseID),
		TeacherID:   strings.TrimSpace(r.TeacherID),
		Start:       strings.TrimSpace(r.Start),
		End:         strings.TrimSpace(r.End),
		Type:        strings.TrimSpace(r.Type),
		Content:     r.Content,
		AttendeeIDs: append([]string(nil), r.AttendeeIDs...),
		CreatorID:   strings.TrimSpace(r.CreatorID),
		CreatedBy:   strings.TrimSpace(r.CreatedBy),
		VehicleID:   strings.TrimSpace(r.VehicleID),
	}
}

type validateSessionRequest struct {
	SessionID string `json:"session_id"`
	sessionRequest
}

type validateSessionResponse struct {
	Valid    bool         `json:"valid"`
	Warnings []warningDTO `json:"warnings,omitempty"`
}

type sessionResponse struct {
	Session  sessionDTO   `json:"session"`
	Warnings []warningDTO `json:"warnings,omitempty"`
}

type listSessionsResponse struct {
	Sessions []sessionDTO `json:"sessions"`
}

type sessionDTO struct {
	ID          string   `json:"id"`
	CourseID    string   `json:"course_id"`
	TeacherID   string   `json:"teacher_id"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Type        string   `json:"type,omitempty"`
	Content     string   `json:"content,omitempty"`
	AttendeeIDs []string `json:"attendee_ids"`
	CreatorID   string   `json:"creator_id,omitempty"`
	CreatedBy   string   `json:"created_by,omitempty"`
	VehicleID   string   `json:"vehicle_id,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
}

func toSessionDTO(session domain.Session) sessionDTO {
	attendees := session.AttendeeIDs
	if attendees == nil {
		attendees = []string{}
	}
	return sessionDTO{
		ID:          session.ID,
		CourseID:    session.CourseID,
		TeacherID:   session.TeacherID,
		Start:       formatTime(session.Start),
		End:         formatTime(session.End),
		Type:        string(session.Type),
		Content:     session.Content,
		AttendeeIDs: append([]string{}, attendees...),
		CreatorID:   session.CreatorID,
		CreatedBy:   string(session.CreatedBy),
		VehicleID:   session.VehicleID,
		CreatedAt:   formatTime(session.CreatedAt),
		UpdatedAt:   formatTime(session.UpdatedAt),
	}
}

func toSessionDTOs(sessions []domain.Session) []sessionDTO {
	out := make([]sessionDTO, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, toSessionDTO(session))
	}
	return out
}

type warningDTO struct {
	Kind          string  `json:"kind"`
	Message       string  `json:"message"`
	DurationHours float64 `json:"duration_hours,omitempty"`
}

func toWarningDTOs(warnings []application.IntegrityWarning) []warningDTO {
	if len(warnings) == 0 {
		return nil
	}

	out := make([]warningDTO, 0, len(warnings))
	for _, warning := range warnings {
		out = append(out, warningDTO{
			Kind:          string(warning.Kind),
			Message:       warning.Message,
			DurationHours: warning.DurationHours,
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// buildListParams reads course_id, teacher_id, from, to and at most one of
// day, week (a date inside the week) or month (YYYY-MM).
func buildListParams(values url.Values, cal timewindow.Calendar) (application.ListSessionsParams, *requestError) {
	params := application.ListSessionsParams{
		CourseID:  strings.TrimSpace(values.Get("course_id")),
		TeacherID: strings.TrimSpace(values.Get("teacher_id")),
	}
	fields := make(map[string]string)

	if from := strings.TrimSpace(values.Get("from")); from != "" {
		if ts, err := cal.ParseTimestamp(from); err == nil {
			params.StartsAfter = &ts
		} else {
			fields["from"] = "from must be a timestamp"
		}
	}
	if to := strings.TrimSpace(values.Get("to")); to != "" {
		if ts, err := cal.ParseTimestamp(to); err == nil {
			params.StartsBefore = &ts
		} else {
			fields["to"] = "to must be a timestamp"
		}
	}

	if day := strings.TrimSpace(values.Get("day")); day != "" {
		if ts, err := cal.ParseDate(day); err == nil {
			params.Period = timewindow.PeriodDay
			params.PeriodReference = ts
		} else {
			fields["day"] = "day must be a date in YYYY-MM-DD form"
		}
	} else if week := strings.TrimSpace(values.Get("week")); week != "" {
		if ts, err := cal.ParseDate(week); err == nil {
			params.Period = timewindow.PeriodWeek
			params.PeriodReference = ts
		} else {
			fields["week"] = "week must be a date in YYYY-MM-DD form"
		}
	} else if month := strings.TrimSpace(values.Get("month")); month != "" {
		if ts, err := cal.ParseDate(month + "-01"); err == nil {
			params.Period = timewindow.PeriodMonth
			params.PeriodReference = ts
		} else {
			fields["month"] = "month must be in YYYY-MM form"
		}
	}

	if len(fields) > 0 {
		return application.ListSessionsParams{}, &requestError{
			status: http.StatusUnprocessableEntity,
			err:    errInvalidQuery,
			fields: fields,
		}
	}
	return params, nil
}
