package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/session-integrity/internal/application"
	"github.com/example/session-integrity/internal/csvio"
	"github.com/example/session-integrity/internal/dedupe"
	"github.com/example/session-integrity/internal/reconcile"
	"github.com/example/session-integrity/internal/scheduler"
	"github.com/example/session-integrity/internal/timewindow"
)

type integrityService interface {
	ScanDuplicates(ctx context.Context) (application.DuplicateScan, error)
	DeleteDuplicates(ctx context.Context, ids []string) (application.DeleteDuplicatesReport, error)
	SweepConflicts(ctx context.Context) (application.ConflictReport, error)
	Reconcile(ctx context.Context, params application.ReconcileParams) (application.ReconciliationReport, error)
}

type IntegrityHandler struct {
	service   integrityService
	csv       *csvio.Writer
	calendar  timewindow.Calendar
	logger    *slog.Logger
	responder responder
}

func NewIntegrityHandler(service integrityService, calendar timewindow.Calendar, logger *slog.Logger) *IntegrityHandler {
	return &IntegrityHandler{
		service:   service,
		csv:       csvio.NewWriter(calendar),
		calendar:  calendar,
		logger:    defaultLogger(logger),
		responder: newResponder(logger),
	}
}

func (h *IntegrityHandler) Duplicates(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	format, ok := h.format(w, r)
	if !ok {
		return
	}

	scan, err := h.service.ScanDuplicates(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	if format == formatCSV {
		h.writeCSV(r.Context(), w, "duplicates.csv", func(buf *strings.Builder) error {
			return h.csv.WriteDuplicates(buf, dedupe.Result{Duplicates: scan.Duplicates, Unattributed: scan.Unattributed})
		})
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, duplicatesResponse{
		Duplicates:   toSessionDTOs(scan.Duplicates),
		Unattributed: nonNil(scan.Unattributed),
	})
}

func (h *IntegrityHandler) DeleteDuplicates(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req deleteDuplicatesRequest
	if rErr := decodeRequest(r, &req); rErr != nil {
		h.responder.writeRequestError(w, r, rErr)
		return
	}

	logger := handlerLogger(r.Context(), h.logger, "IntegrityHandler", "DeleteDuplicates", "requested", len(req.IDs))
	report, err := h.service.DeleteDuplicates(r.Context(), req.IDs)
	body := toDeleteReportDTO(report)
	if err != nil {
		// A partial batch still reports what was deleted.
		status, errBody := serviceErrorResponse(err)
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(r.Context(), "duplicate cleanup interrupted", "error", err, "deleted", report.DeletedCount)
		}
		body.Error = &errBody
		h.responder.writeJSON(r.Context(), w, status, body)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, body)
}

func (h *IntegrityHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	format, ok := h.format(w, r)
	if !ok {
		return
	}

	report, err := h.service.SweepConflicts(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	if format == formatCSV {
		h.writeCSV(r.Context(), w, "conflicts.csv", func(buf *strings.Builder) error {
			return h.csv.WriteConflicts(buf, report.Conflicts)
		})
		return
	}

	out := make([]conflictDTO, 0, len(report.Conflicts))
	for _, c := range report.Conflicts {
		out = append(out, toConflictDTO(c))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, conflictsResponse{Conflicts: out})
}

func (h *IntegrityHandler) Reconciliation(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	format, ok := h.format(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	report, err := h.service.Reconcile(r.Context(), application.ReconcileParams{
		CourseID:  strings.TrimSpace(query.Get("course_id")),
		StartDate: strings.TrimSpace(query.Get("start")),
		EndDate:   strings.TrimSpace(query.Get("end")),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	if format == formatCSV {
		h.writeCSV(r.Context(), w, "reconciliation.csv", func(buf *strings.Builder) error {
			return h.csv.WriteReconciliation(buf, report)
		})
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, h.toReportDTO(report))
}

const (
	formatJSON = "json"
	formatCSV  = "csv"
)

func (h *IntegrityHandler) format(w http.ResponseWriter, r *http.Request) (string, bool) {
	switch format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))); format {
	case "", formatJSON:
		return formatJSON, true
	case formatCSV:
		return formatCSV, true
	}
	h.responder.writeError(r.Context(), w, http.StatusBadRequest, errUnsupportedType)
	return "", false
}

// writeCSV renders into memory first so an encoding failure can still become
// a proper error response.
func (h *IntegrityHandler) writeCSV(ctx context.Context, w http.ResponseWriter, filename string, render func(*strings.Builder) error) {
	var buf strings.Builder
	if err := render(&buf); err != nil {
		h.responder.writeError(ctx, w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(buf.String())); err != nil {
		h.responder.loggerFor(ctx).ErrorContext(ctx, "failed to write csv", "error", err)
	}
}

type deleteDuplicatesRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

type deleteReportDTO struct {
	DeletedCount int            `json:"deleted_count"`
	DeletedIDs   []string       `json:"deleted_ids"`
	FailedIDs    []string       `json:"failed_ids"`
	SkippedIDs   []string       `json:"skipped_ids"`
	StaleIDs     []string       `json:"stale_ids"`
	Error        *errorResponse `json:"error,omitempty"`
}

func toDeleteReportDTO(report application.DeleteDuplicatesReport) deleteReportDTO {
	return deleteReportDTO{
		DeletedCount: report.DeletedCount,
		DeletedIDs:   nonNil(report.DeletedIDs),
		FailedIDs:    nonNil(report.FailedIDs),
		SkippedIDs:   nonNil(report.SkippedIDs),
		StaleIDs:     nonNil(report.StaleIDs),
	}
}

type duplicatesResponse struct {
	Duplicates   []sessionDTO `json:"duplicates"`
	Unattributed []string     `json:"unattributed"`
}

type conflictDTO struct {
	Kinds  []string   `json:"kinds"`
	First  sessionDTO `json:"first"`
	Second sessionDTO `json:"second"`
}

func toConflictDTO(c scheduler.Conflict) conflictDTO {
	kinds := make([]string, 0, len(c.Kinds))
	for _, k := range c.Kinds {
		kinds = append(kinds, string(k))
	}
	return conflictDTO{Kinds: kinds, First: toSessionDTO(c.First), Second: toSessionDTO(c.Second)}
}

type conflictsResponse struct {
	Conflicts []conflictDTO `json:"conflicts"`
}

type differenceDTO struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name,omitempty"`
	Side        string `json:"side"`
}

type pairDTO struct {
	Slot             string          `json:"slot"`
	Day              string          `json:"day"`
	Time             string          `json:"time"`
	Status           string          `json:"status"`
	TeacherSessionID string          `json:"teacher_session_id,omitempty"`
	LeaderSessionID  string          `json:"leader_session_id,omitempty"`
	Differences      []differenceDTO `json:"differences,omitempty"`
	Ignored          []string        `json:"ignored,omitempty"`
}

type summaryDTO struct {
	Matched     int `json:"matched"`
	Discrepancy int `json:"discrepancy"`
	MissingData int `json:"missing_data"`
}

type reportDTO struct {
	CourseID   string     `json:"course_id"`
	From       string     `json:"from"`
	To         string     `json:"to"`
	Pairs      []pairDTO  `json:"pairs"`
	Unassigned []string   `json:"unassigned"`
	Summary    summaryDTO `json:"summary"`
}

func (h *IntegrityHandler) toReportDTO(report reconcile.Report) reportDTO {
	pairs := make([]pairDTO, 0, len(report.Pairs))
	for _, pair := range report.Pairs {
		dto := pairDTO{
			Slot:    formatTime(pair.Slot),
			Day:     h.calendar.DayBucket(pair.Slot),
			Time:    h.calendar.HourMinute(pair.Slot),
			Status:  string(pair.Status),
			Ignored: pair.Ignored,
		}
		if pair.TeacherSession != nil {
			dto.TeacherSessionID = pair.TeacherSession.ID
		}
		if pair.LeaderSession != nil {
			dto.LeaderSessionID = pair.LeaderSession.ID
		}
		for _, diff := range pair.Differences {
			dto.Differences = append(dto.Differences, differenceDTO{
				StudentID:   diff.StudentID,
				StudentName: diff.StudentName,
				Side:        string(diff.Side),
			})
		}
		pairs = append(pairs, dto)
	}
	return reportDTO{
		CourseID:   report.CourseID,
		From:       h.calendar.DayBucket(report.From),
		To:         h.calendar.DayBucket(report.To),
		Pairs:      pairs,
		Unassigned: nonNil(report.Unassigned),
		Summary: summaryDTO{
			Matched:     report.Summary.Matched,
			Discrepancy: report.Summary.Discrepancy,
			MissingData: report.Summary.MissingData,
		},
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
