package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/session-integrity/internal/application"
	"github.com/example/session-integrity/internal/domain"
	"github.com/example/session-integrity/internal/timewindow"
)

type courseService interface {
	CreateCourse(ctx context.Context, input application.CourseInput) (domain.Course, error)
	GetCourse(ctx context.Context, id string) (domain.Course, error)
	ListCourses(ctx context.Context) ([]domain.Course, error)
	AddStudent(ctx context.Context, input application.StudentInput) (domain.Student, error)
	ListStudents(ctx context.Context, courseID string) ([]domain.Student, error)
}

type CourseHandler struct {
	service   courseService
	calendar  timewindow.Calendar
	responder responder
}

func NewCourseHandler(service courseService, calendar timewindow.Calendar, logger *slog.Logger) *CourseHandler {
	return &CourseHandler{service: service, calendar: calendar, responder: newResponder(logger)}
}

func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req courseRequest
	if rErr := decodeRequest(r, &req); rErr != nil {
		h.responder.writeRequestError(w, r, rErr)
		return
	}

	course, err := h.service.CreateCourse(r.Context(), application.CourseInput{
		Name:         strings.TrimSpace(req.Name),
		CourseNumber: strings.TrimSpace(req.CourseNumber),
		StartDate:    strings.TrimSpace(req.StartDate),
		EndDate:      strings.TrimSpace(req.EndDate),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, h.toCourseDTO(course))
}

func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	courseID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(courseID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	course, err := h.service.GetCourse(r.Context(), courseID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, h.toCourseDTO(course))
}

func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	courses, err := h.service.ListCourses(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]courseDTO, 0, len(courses))
	for _, course := range courses {
		out = append(out, h.toCourseDTO(course))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listCoursesResponse{Courses: out})
}

func (h *CourseHandler) AddStudent(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	courseID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(courseID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req studentRequest
	if rErr := decodeRequest(r, &req); rErr != nil {
		h.responder.writeRequestError(w, r, rErr)
		return
	}

	student, err := h.service.AddStudent(r.Context(), application.StudentInput{
		CourseID: courseID,
		Name:     strings.TrimSpace(req.Name),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toStudentDTO(student))
}

func (h *CourseHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	courseID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(courseID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	students, err := h.service.ListStudents(r.Context(), courseID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]studentDTO, 0, len(students))
	for _, student := range students {
		out = append(out, toStudentDTO(student))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listStudentsResponse{Students: out})
}

type courseRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	CourseNumber string `json:"course_number" validate:"max=50"`
	StartDate    string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type studentRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type courseDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CourseNumber string `json:"course_number,omitempty"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// toCourseDTO renders course dates as calendar days, the form they are entered in.
func (h *CourseHandler) toCourseDTO(course domain.Course) courseDTO {
	return courseDTO{
		ID:           course.ID,
		Name:         course.Name,
		CourseNumber: course.CourseNumber,
		StartDate:    h.calendar.DayBucket(course.StartDate),
		EndDate:      h.calendar.DayBucket(course.EndDate),
		CreatedAt:    formatTime(course.CreatedAt),
	}
}

type listCoursesResponse struct {
	Courses []courseDTO `json:"courses"`
}

type studentDTO struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	Name     string `json:"name"`
}

func toStudentDTO(student domain.Student) studentDTO {
	return studentDTO{ID: student.ID, CourseID: student.CourseID, Name: student.Name}
}

type listStudentsResponse struct {
	Students []studentDTO `json:"students"`
}
