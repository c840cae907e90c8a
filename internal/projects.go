package internal

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"project-tracker-api/internal/auth"
	"project-tracker-api/internal/models"
)

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.Projects.List(r.Context(), parseListParams(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.Projects.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// createProject stores a new project owned by the caller. Any status in
// the body is ignored; new projects always start as New.
func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		sendErrorResponse(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
		return
	}

	var in models.ProjectInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.Projects.Create(r.Context(), id.ID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	var in models.ProjectInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if in.Empty() {
		s.writeError(w, r, models.FieldError("body", "no fields to update"))
		return
	}

	p, err := s.Projects.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) transitionProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.Projects.Transition(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "action"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) bulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req models.BulkStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.Projects.BulkUpdateStatus(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) projectStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Projects.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
