package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-tracker-api/internal/config"
	"project-tracker-api/internal/models"
	"project-tracker-api/internal/store"
)

func proposal(name, client string) map[string]any {
	return map[string]any{
		"projectName":   name,
		"projectType":   "Proposals",
		"category":      "Medium",
		"dateReceived":  "2024-07-04",
		"contactPerson": "Ana",
		"endClientName": client,
	}
}

func (ts *testServer) createProject(body map[string]any) models.Project {
	ts.t.Helper()
	w := ts.do("POST", "/api/projects", body, ts.login())
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Project](ts.t, w)
}

func TestProjects_RequireAuth(t *testing.T) {
	ts := newTestServer(t, nil)
	routes := []struct{ method, path string }{
		{"GET", "/api/projects"},
		{"POST", "/api/projects"},
		{"GET", "/api/projects/stats/overview"},
		{"GET", "/api/projects/export"},
		{"POST", "/api/projects/update"},
		{"GET", "/api/projects/abc"},
		{"PATCH", "/api/projects/abc"},
		{"POST", "/api/projects/abc/transitions/submit"},
		{"GET", "/api/auth/me"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := ts.do(rt.method, rt.path, nil, "")
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "MISSING_AUTH_HEADER", decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestCreateProject(t *testing.T) {
	ts := newTestServer(t, nil)

	body := proposal("Annual report", "Acme")
	body["status"] = "Invoice Raised"
	body["createdBy"] = "someone-else"
	body["id"] = "chosen-id"
	p := ts.createProject(body)

	assert.Equal(t, models.StatusNew, p.Status)
	assert.NotEqual(t, "chosen-id", p.ID)
	assert.NotEqual(t, "someone-else", p.CreatedBy)
	assert.NotEmpty(t, p.CreatedBy)
	require.NotNil(t, p.Category)
	assert.Equal(t, models.CategoryMedium, *p.Category)
	assert.Equal(t, "2024-07-04", p.DateReceived.String())
}

func TestCreateProject_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{"malformed json", `{"projectName":`, http.StatusBadRequest, "INVALID_INPUT", ""},
		{"trailing data", `{"projectName":"a"} {}`, http.StatusBadRequest, "INVALID_INPUT", ""},
		{"unknown type", map[string]any{"projectType": "Poetry"}, http.StatusBadRequest, "VALIDATION_ERROR", "projectType"},
		{"bad date", func() any { b := proposal("a", "b"); b["dateReceived"] = "July"; return b }(), http.StatusBadRequest, "VALIDATION_ERROR", "dateReceived"},
		{"missing category", func() any { b := proposal("a", "b"); delete(b, "category"); return b }(), http.StatusBadRequest, "VALIDATION_ERROR", "category"},
		{"hours off step", map[string]any{
			"projectName": "a", "projectType": "Creative Work", "hoursWorked": 1.2,
			"dateReceived": "2024-01-01", "contactPerson": "c", "endClientName": "d",
		}, http.StatusBadRequest, "VALIDATION_ERROR", "hoursWorked"},
		{"empty body", map[string]any{}, http.StatusBadRequest, "VALIDATION_ERROR", "projectName"},
		{"hours not numeric", map[string]any{
			"projectName": "a", "projectType": "AI Work", "hoursWorked": "abc",
			"dateReceived": "2024-01-01", "contactPerson": "c", "endClientName": "d",
		}, http.StatusBadRequest, "VALIDATION_ERROR", "hoursWorked"},
		{"name not a string", map[string]any{"projectName": 42}, http.StatusBadRequest, "VALIDATION_ERROR", "projectName"},
		{"body is a list", `[{"projectName":"a"}]`, http.StatusBadRequest, "INVALID_INPUT", ""},
	}

	ts := newTestServer(t, nil)
	token := ts.login()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do("POST", "/api/projects", tt.body, token)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			resp := decode[ErrorResponse](t, w)
			assert.Equal(t, tt.wantCode, resp.Code)
			if tt.wantField != "" {
				assert.Contains(t, resp.Fields, tt.wantField)
			}
		})
	}
}

func TestListProjects(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createProject(proposal("Annual report", "Acme"))
	ts.createProject(proposal("Pitch deck", "Globex"))
	second := ts.createProject(proposal("Quarterly review", "ACME Europe"))

	token := ts.login()
	w := ts.do("GET", "/api/projects?search=acme", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[[]models.Project](t, w)
	assert.Len(t, got, 2)

	w = ts.do("GET", "/api/projects?search=nothing-matches", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = ts.do("GET", "/api/projects?sort=projectName&limit=1&offset=2", nil, token)
	got = decode[[]models.Project](t, w)
	require.Len(t, got, 1)
	assert.Equal(t, second.ID, got[0].ID)

	w = ts.do("GET", "/api/projects?status=Archived", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Fields, "status")
}

func TestListProjects_NoLimitReturnsAll(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login()
	const n = 75
	for i := 0; i < n; i++ {
		w := ts.do("POST", "/api/projects", proposal(fmt.Sprintf("Deck %02d", i), "Acme"), token)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", n},
		{"?sort=projectName", n},
		{"?limit=10", 10},
		{"?limit=10&offset=70", 5},
		{"?offset=60", 15},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := ts.do("GET", "/api/projects"+tt.query, nil, token)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Len(t, decode[[]models.Project](t, w), tt.want)
		})
	}
}

func TestGetProject(t *testing.T) {
	ts := newTestServer(t, nil)
	p := ts.createProject(proposal("Annual report", "Acme"))
	token := ts.login()

	for _, path := range []string{"/api/projects/" + p.ID, "/api/projects/details/" + p.ID} {
		w := ts.do("GET", path, nil, token)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, p.ID, decode[models.Project](t, w).ID)
	}

	w := ts.do("GET", "/api/projects/missing", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, "Project not found", resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestUpdateProject(t *testing.T) {
	ts := newTestServer(t, nil)
	p := ts.createProject(proposal("Annual report", "Acme"))
	token := ts.login()

	w := ts.do("PATCH", "/api/projects/"+p.ID, map[string]any{
		"notes":     "rush",
		"createdBy": "intruder",
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[models.Project](t, w)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "rush", *got.Notes)
	assert.Equal(t, p.CreatedBy, got.CreatedBy)

	w = ts.do("PATCH", "/api/projects/"+p.ID, map[string]any{}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Fields, "body")

	// switching to an hours type without hours leaves an invalid record
	w = ts.do("PATCH", "/api/projects/"+p.ID, map[string]any{"projectType": "AI Work"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Fields, "hoursWorked")

	w = ts.do("PATCH", "/api/projects/"+p.ID, map[string]any{"dateDelivered": "2024-07-01"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Fields, "dateDelivered")

	w = ts.do("PATCH", "/api/projects/missing", map[string]any{"notes": "x"}, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateProject_StrictPolicy(t *testing.T) {
	ts := newTestServer(t, nil, func(c *config.Config) { c.StatusTransitions = "strict" })
	p := ts.createProject(proposal("Annual report", "Acme"))
	token := ts.login()

	w := ts.do("PATCH", "/api/projects/"+p.ID, map[string]any{"status": "Invoice Raised"}, token)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", decode[ErrorResponse](t, w).Code)

	w = ts.do("PATCH", "/api/projects/"+p.ID, map[string]any{"status": "Sent to CEO"}, token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTransitionProject(t *testing.T) {
	ts := newTestServer(t, nil)
	p := ts.createProject(proposal("Annual report", "Acme"))
	token := ts.login()

	w := ts.do("POST", "/api/projects/"+p.ID+"/transitions/submit", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusSentToCEO, decode[models.Project](t, w).Status)

	w = ts.do("POST", "/api/projects/"+p.ID+"/transitions/submit", nil, token)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do("POST", "/api/projects/"+p.ID+"/transitions/archive", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Fields, "action")
}

func TestBulkUpdateStatus(t *testing.T) {
	ts := newTestServer(t, nil)
	a := ts.createProject(proposal("A", "Acme"))
	b := ts.createProject(proposal("B", "Acme"))
	token := ts.login()

	body := map[string]any{"projectIds": []string{a.ID, b.ID, "ghost"}, "status": "Sent to CEO"}
	w := ts.do("POST", "/api/projects/update", body, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[models.BulkStatusResult](t, w)
	assert.Equal(t, 2, res.ModifiedCount)
	assert.Equal(t, 3, res.Requested)
	assert.Equal(t, []models.BulkItemResult{
		{ID: a.ID, Outcome: models.OutcomeUpdated},
		{ID: b.ID, Outcome: models.OutcomeUpdated},
		{ID: "ghost", Outcome: models.OutcomeNotFound},
	}, res.Results)

	w = ts.do("POST", "/api/projects/update", body, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[models.BulkStatusResult](t, w).ModifiedCount)

	for _, bad := range []any{
		map[string]any{"projectIds": []string{}, "status": "New"},
		map[string]any{"projectIds": []string{a.ID}, "status": "Done"},
		`{"projectIds": "a", "status": "New"}`,
	} {
		w = ts.do("POST", "/api/projects/update", bad, token)
		assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	}
}

func TestProjectStats(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login()

	w := ts.do("GET", "/api/projects/stats/overview", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"newProjects":0,"sentToCEO":0,"approvedByClient":0,"invoiceRaised":0,"totalProjects":0,"totalHours":0}`, w.Body.String())

	ts.createProject(proposal("A", "Acme"))
	ts.createProject(map[string]any{
		"projectName": "Model", "projectType": "AI Work", "hoursWorked": 2.5,
		"dateReceived": "2024-01-01", "contactPerson": "c", "endClientName": "d",
	})
	w = ts.do("GET", "/api/projects/stats/overview", nil, token)
	stats := decode[models.Stats](t, w)
	assert.Equal(t, int64(2), stats.NewProjects)
	assert.Equal(t, int64(2), stats.TotalProjects)
	assert.Equal(t, 2.5, stats.TotalHours)
}

type findFailStore struct{ *store.Memory }

func (findFailStore) Find(context.Context, models.ProjectQuery) ([]models.Project, error) {
	return nil, errors.New("pq: relation \"projects\" does not exist")
}

func TestInternalErrorsAreHidden(t *testing.T) {
	ts := newTestServer(t, findFailStore{store.NewMemory()})
	w := ts.do("GET", "/api/projects", nil, ts.login())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "relation")
	assert.Equal(t, "Internal server error", decode[ErrorResponse](t, w).Error)

	var logged bool
	for _, e := range ts.hook.AllEntries() {
		if e.Message == "request failed" && e.Level == logrus.ErrorLevel {
			logged = true
			assert.ErrorContains(t, e.Data[logrus.ErrorKey].(error), "relation")
		}
	}
	assert.True(t, logged)
}
