package handlers

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"project-tracker-api/internal/models"
	"project-tracker-api/pkg/exporter"
)

// ProjectLister is the read side of the project service.
type ProjectLister interface {
	List(ctx context.Context, q models.ProjectQuery) ([]models.Project, error)
}

// ExportsHandler serves project listings as Excel downloads.
type ExportsHandler struct {
	Projects ProjectLister
	// Query builds the listing filter from the request.
	Query func(r *http.Request) models.ProjectQuery
	Log   logrus.FieldLogger
	Now   func() time.Time
}

// NewExportsHandler creates a new exports handler
func NewExportsHandler(projects ProjectLister, query func(*http.Request) models.ProjectQuery, log logrus.FieldLogger) *ExportsHandler {
	return &ExportsHandler{Projects: projects, Query: query, Log: log, Now: time.Now}
}

// DownloadExcel writes the filtered project list as an .xlsx attachment.
// The whole filtered list is exported unless limit is given. An ids
// parameter (comma-separated) narrows the export to those projects.
func (h *ExportsHandler) DownloadExcel(w http.ResponseWriter, r *http.Request) {
	q := h.Query(r)
	if r.URL.Query().Get("limit") == "" {
		q.Offset = 0
	}

	projects, err := h.Projects.List(r.Context(), q)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	projects = selectIDs(projects, r.URL.Query().Get("ids"))
	if len(projects) == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "Validation failed",
			Code:   "VALIDATION_ERROR",
			Fields: map[string]string{"ids": "no projects selected for export"},
		})
		return
	}

	// Render fully before writing headers so a failure can still be reported.
	var buf bytes.Buffer
	if err := exporter.Write(&buf, projects); err != nil {
		writeServiceError(w, h.Log, err)
		return
	}

	prefix := strings.TrimSpace(r.URL.Query().Get("name"))
	if prefix == "" {
		prefix = exporter.PrefixFor(q.Status)
	}
	name := exporter.FileName(sanitizeFileName(prefix), h.Now())

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func selectIDs(projects []models.Project, raw string) []models.Project {
	if strings.TrimSpace(raw) == "" {
		return projects
	}
	want := make(map[string]bool)
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			want[id] = true
		}
	}
	out := projects[:0:0]
	for _, p := range projects {
		if want[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

// sanitizeFileName keeps letters, digits, '-' and '_' so the prefix is
// safe inside a Content-Disposition header.
func sanitizeFileName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return b.String()
}
