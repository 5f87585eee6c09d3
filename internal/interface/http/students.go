package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/alem-hub/student-tracker/internal/domain/shared"
	"github.com/alem-hub/student-tracker/internal/domain/student"
	"github.com/alem-hub/student-tracker/pkg/logger"

	"github.com/go-playground/validator/v10"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DTOs
// ══════════════════════════════════════════════════════════════════════════════

// StudentRequest is the body of POST /students and PUT /students/{roll}.
type StudentRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	RollNumber string `json:"roll_number" validate:"required,max=50"`
}

// GradesRequest is the body of POST /students/{roll}/grades.
type GradesRequest struct {
	Grades map[string]float64 `json:"grades" validate:"required,min=1,dive,keys,required,max=50,endkeys,gte=0,lte=100"`
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE DTOs
// ══════════════════════════════════════════════════════════════════════════════

// AverageResponse is returned by the average endpoints.
type AverageResponse struct {
	RollNumber string  `json:"roll_number,omitempty"`
	Subject    string  `json:"subject,omitempty"`
	Average    float64 `json:"average"`
}

// ExportResponse is returned by POST /export.
type ExportResponse struct {
	Path string `json:"path"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"}, nil)
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Healthy {
		s.writeJSON(w, r, http.StatusServiceUnavailable, status, nil)
		return
	}
	s.writeJSON(w, r, http.StatusOK, status, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListStudents handles GET /api/v1/students.
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.deps.Tracker.ListStudents(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	infos := make([]student.Info, 0, len(students))
	for _, st := range students {
		infos = append(infos, st.Info())
	}
	s.writeJSON(w, r, http.StatusOK, infos, &ResponseMeta{TotalCount: len(infos)})
}

// handleAddStudent handles POST /api/v1/students.
func (s *Server) handleAddStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	st, err := s.deps.Tracker.AddStudent(r.Context(), req.Name, req.RollNumber)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/students/"+st.RollNumber)
	s.writeJSON(w, r, http.StatusCreated, st.Info(), nil)
}

// handleGetStudent handles GET /api/v1/students/{roll}.
func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Tracker.ViewStudentDetails(r.Context(), r.PathValue("roll"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, st.Info(), nil)
}

// handleEditStudent handles PUT /api/v1/students/{roll}.
func (s *Server) handleEditStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	st, err := s.deps.Tracker.EditStudent(r.Context(), r.PathValue("roll"), req.Name, req.RollNumber)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, st.Info(), nil)
}

// handleDeleteStudent handles DELETE /api/v1/students/{roll}.
func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Tracker.DeleteStudent(r.Context(), r.PathValue("roll")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAddGrades handles POST /api/v1/students/{roll}/grades.
func (s *Server) handleAddGrades(w http.ResponseWriter, r *http.Request) {
	var req GradesRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	st, err := s.deps.Tracker.AddGrades(r.Context(), r.PathValue("roll"), req.Grades)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, st.Info(), nil)
}

// handleStudentAverage handles GET /api/v1/students/{roll}/average.
func (s *Server) handleStudentAverage(w http.ResponseWriter, r *http.Request) {
	roll := r.PathValue("roll")
	avg, err := s.deps.Tracker.CalculateAverage(r.Context(), roll)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, AverageResponse{RollNumber: strings.TrimSpace(roll), Average: avg}, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleSubjectTopper handles GET /api/v1/subjects/{subject}/topper.
func (s *Server) handleSubjectTopper(w http.ResponseWriter, r *http.Request) {
	subject := r.PathValue("subject")
	top, ok, err := s.deps.Tracker.SubjectTopper(r.Context(), subject)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, r, http.StatusNotFound, "no_data", fmt.Sprintf("No grades recorded for %s", subject), "")
		return
	}
	s.writeJSON(w, r, http.StatusOK, top, nil)
}

// handleClassAverage handles GET /api/v1/subjects/{subject}/average.
func (s *Server) handleClassAverage(w http.ResponseWriter, r *http.Request) {
	subject := r.PathValue("subject")
	avg, ok, err := s.deps.Tracker.ClassAverageForSubject(r.Context(), subject)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, r, http.StatusNotFound, "no_data", fmt.Sprintf("No grades recorded for %s", subject), "")
		return
	}
	s.writeJSON(w, r, http.StatusOK, AverageResponse{Subject: strings.TrimSpace(subject), Average: avg}, nil)
}

// handleExport handles POST /api/v1/export. The target is always the configured path.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	path, err := s.deps.Tracker.ExportToTxt(r.Context(), "")
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, ExportResponse{Path: path}, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the error response itself and returns false on failure.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			s.writeError(w, r, http.StatusBadRequest, "invalid_request", "Request body is empty", "")
			return false
		}
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "Request body is not valid JSON", err.Error())
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, "validation_error", "Request failed validation", describeValidation(err))
		return false
	}
	return true
}

// describeValidation flattens validator errors into "field: rule" pairs.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), rule))
	}
	return strings.Join(parts, "; ")
}

// writeDomainError maps the error taxonomy to HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	message := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) {
		message = de.Message
	}

	switch {
	case shared.IsNotFound(err):
		s.writeError(w, r, http.StatusNotFound, "not_found", message, "")
	case shared.IsConflict(err):
		s.writeError(w, r, http.StatusConflict, "conflict", message, "")
	case shared.IsValidation(err):
		s.writeError(w, r, http.StatusUnprocessableEntity, "validation_error", message, "")
	default:
		logger.FromContext(r.Context()).Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Err(err),
		)
		s.writeError(w, r, http.StatusInternalServerError, "storage_error", "The store could not complete the request", "")
	}
}
