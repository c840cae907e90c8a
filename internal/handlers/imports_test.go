package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"

	"project-tracker-api/internal/auth"
	"project-tracker-api/internal/models"
	"project-tracker-api/internal/store"
	"project-tracker-api/internal/workflow"
	"project-tracker-api/pkg/importer"
)

var caller = auth.Identity{ID: "u-1", Name: "Ana", Email: "ana@example.com"}

// workbook builds an .xlsx document with a "Projects" sheet.
func workbook(t *testing.T, rows ...[]string) []byte {
	t.Helper()
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Projects")
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, file.Write(&buf))
	return buf.Bytes()
}

var header = []string{"Project Name", "Project Type", "Category", "Hours Worked", "Date Received", "Contact Person", "End Client Name", "Status"}

func uploadRequest(t *testing.T, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if data != nil {
		fw, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/api/projects/import", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req.WithContext(auth.WithIdentity(req.Context(), caller))
}

func newImports(t *testing.T) (*ImportsHandler, *store.Memory) {
	st := store.NewMemory()
	logger, _ := test.NewNullLogger()
	return NewImportsHandler(workflow.NewService(st, workflow.WithLogger(logger)), logger), st
}

func TestImportsHandler_UploadExcel(t *testing.T) {
	handler, _ := newImports(t)

	t.Run("Rejects anonymous caller", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/projects/import", nil)
		w := httptest.NewRecorder()
		handler.UploadExcel(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Rejects non-multipart content type", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/projects/import", nil)
		req.Header.Set("Content-Type", "application/json")
		req = req.WithContext(auth.WithIdentity(req.Context(), caller))

		w := httptest.NewRecorder()
		handler.UploadExcel(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "content-type must be multipart/form-data")
	})

	t.Run("Rejects missing file", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, "", nil, map[string]string{"dry_run": "true"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "file is required")
	})

	t.Run("Rejects non-xlsx file", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, "test.xls", []byte("fake excel content"), nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "only .xlsx files are accepted")
	})

	t.Run("Reports unreadable workbook", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, "test.xlsx", []byte("fake excel content"), nil))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "IMPORT_FAILED")
	})
}

func TestImportsHandler_CreatesProjects(t *testing.T) {
	handler, st := newImports(t)
	data := workbook(t,
		header,
		[]string{"Annual report", "Proposals", "Medium", "", "07/04/2024", "Ana", "Acme", "Invoice Raised"},
		[]string{"Model tuning", "AI Work", "", "2.5", "2024-07-05", "Bo", "Globex", ""},
		[]string{"", "", "", "", "", "", "", ""},
		[]string{"Broken", "RFP", "", "", "2024-07-05", "Cy", "Initech", ""},
	)

	w := httptest.NewRecorder()
	handler.UploadExcel(w, uploadRequest(t, "projects.xlsx", data, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data importer.ImportSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.Inserted)
	assert.Equal(t, 1, resp.Data.Skipped)
	assert.Equal(t, 1, resp.Data.Errors)
	require.Len(t, resp.Data.Sheets, 1)
	require.Len(t, resp.Data.Sheets[0].Samples, 1)
	assert.Equal(t, 5, resp.Data.Sheets[0].Samples[0].Row)
	assert.Contains(t, resp.Data.Sheets[0].Samples[0].Fields, "category")

	all, err := st.Find(context.Background(), models.ProjectQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, p := range all {
		assert.Equal(t, models.StatusNew, p.Status)
		assert.Equal(t, caller.ID, p.CreatedBy)
	}
}

func TestImportsHandler_DryRun(t *testing.T) {
	handler, st := newImports(t)
	data := workbook(t,
		header,
		[]string{"Annual report", "Proposals", "Medium", "", "07/04/2024", "Ana", "Acme", ""},
	)

	w := httptest.NewRecorder()
	handler.UploadExcel(w, uploadRequest(t, "projects.xlsx", data, map[string]string{"dry_run": "true"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"dry_run":true`)
	assert.Contains(t, w.Body.String(), `"inserted":1`)

	all, err := st.Find(context.Background(), models.ProjectQuery{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestImportsHandler_TooManyErrors(t *testing.T) {
	handler, _ := newImports(t)
	rows := [][]string{header}
	for i := 0; i < 4; i++ {
		rows = append(rows, []string{"Bad", "Poetry", "", "", "2024-01-01", "a", "b", ""})
	}

	w := httptest.NewRecorder()
	handler.UploadExcel(w, uploadRequest(t, "projects.xlsx", workbook(t, rows...), map[string]string{"max_errors": "2"}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"errors":3`)
}

func TestIsXLSX(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expected bool
	}{
		{"Valid xlsx", "test.xlsx", true},
		{"Valid xlsx uppercase", "TEST.XLSX", true},
		{"Valid xlsx mixed case", "Test.XlSx", true},
		{"Invalid xls", "test.xls", false},
		{"Invalid xlsm", "test.xlsm", false},
		{"Invalid txt", "test.txt", false},
		{"No extension", "test", false},
		{"Empty filename", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := &multipart.FileHeader{
				Filename: tt.filename,
			}
			assert.Equal(t, tt.expected, isXLSX(header))
		})
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "test",
		"count":   42,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "test", response["message"])
	assert.Equal(t, float64(42), response["count"])
}
