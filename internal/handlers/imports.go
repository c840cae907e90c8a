package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"project-tracker-api/internal/auth"
	"project-tracker-api/internal/models"
	"project-tracker-api/pkg/importer"
)

// ErrorResponse mirrors the API-wide error body.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ImportsHandler handles Excel import operations
type ImportsHandler struct {
	Projects importer.ProjectWriter
	Mapping  *importer.MappingConfig
	MaxBytes int64
	Log      logrus.FieldLogger
}

// NewImportsHandler creates a new imports handler
func NewImportsHandler(projects importer.ProjectWriter, log logrus.FieldLogger) *ImportsHandler {
	return &ImportsHandler{
		Projects: projects,
		Mapping:  importer.DefaultMapping(),
		MaxBytes: 20 << 20, // 20 MB
		Log:      log,
	}
}

// UploadExcel creates projects from an uploaded .xlsx workbook. With
// dry_run=true every row is validated but nothing is stored.
func (h *ImportsHandler) UploadExcel(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", "UNAUTHORIZED")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)

	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		writeError(w, http.StatusBadRequest, "content-type must be multipart/form-data", "INVALID_INPUT")
		return
	}

	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_INPUT")
		return
	}

	dryRun := r.FormValue("dry_run") == "true"
	maxErrors := importer.DefaultMaxErrors
	if v := r.FormValue("max_errors"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxErrors = n
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required", "INVALID_INPUT")
		return
	}
	defer file.Close()

	if !isXLSX(header) {
		writeError(w, http.StatusBadRequest, "only .xlsx files are accepted", "INVALID_INPUT")
		return
	}

	sum, impErr := importer.ImportExcel(r.Context(), h.Projects, file, importer.ImportOptions{
		CreatedBy: id.ID,
		Mapping:   h.Mapping,
		DryRun:    dryRun,
		MaxErrors: maxErrors,
	})
	log := h.Log.WithFields(logrus.Fields{
		"user_id":  id.ID,
		"file":     header.Filename,
		"dry_run":  dryRun,
		"inserted": sum.Inserted,
		"errors":   sum.Errors,
	})
	if impErr != nil {
		log.WithError(impErr).Warn("project import failed")
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": "Import failed",
			"code":  "IMPORT_FAILED",
			"data":  sum,
		})
		return
	}
	log.Info("projects imported")

	writeJSON(w, http.StatusOK, map[string]any{
		"data": sum,
		"meta": map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// isXLSX checks if the uploaded file is an Excel .xlsx file
func isXLSX(h *multipart.FileHeader) bool {
	return strings.HasSuffix(strings.ToLower(h.Filename), ".xlsx")
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// writeServiceError reports a failure from the project service.
func writeServiceError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Code: "VALIDATION_ERROR", Fields: verr.Fields})
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "Request cancelled", "CANCELLED")
	default:
		log.WithError(err).Error("project service failed")
		writeError(w, http.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR")
	}
}
