package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"

	"project-tracker-api/internal/models"
	"project-tracker-api/pkg/exporter"
)

// recordingWriter keeps every accepted input. Inputs without a name fail
// validation and a name of "explode" fails like a broken store.
type recordingWriter struct {
	created []models.ProjectInput
	checked int
}

func (r *recordingWriter) validate(in models.ProjectInput) error {
	if in.ProjectName == nil || *in.ProjectName == "" {
		return models.FieldError("projectName", "is required")
	}
	return nil
}

func (r *recordingWriter) Create(_ context.Context, createdBy string, in models.ProjectInput) (*models.Project, error) {
	if in.ProjectName != nil && *in.ProjectName == "explode" {
		return nil, errors.New("connection refused")
	}
	if err := r.validate(in); err != nil {
		return nil, err
	}
	r.created = append(r.created, in)
	return &models.Project{ID: fmt.Sprintf("p-%d", len(r.created)), CreatedBy: createdBy}, nil
}

func (r *recordingWriter) Check(in models.ProjectInput) error {
	r.checked++
	return r.validate(in)
}

func book(t *testing.T, sheetName string, rows ...[]any) []byte {
	t.Helper()
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName)
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			cell := row.AddCell()
			switch v := v.(type) {
			case float64:
				cell.SetFloat(v)
			case string:
				cell.SetString(v)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, file.Write(&buf))
	return buf.Bytes()
}

func TestParseMapping(t *testing.T) {
	m, err := ParseMapping([]byte(`
version: 1
sheets:
  Backlog:
    aliases:
      projectName: ["Job"]
      contactPerson: ["Owner"]
`))
	require.NoError(t, err)
	assert.Equal(t, 1, m.Version)
	assert.Equal(t, []string{"Job"}, m.Sheets["Backlog"].Aliases[FieldProjectName])

	_, err = ParseMapping([]byte("version: 1\nsheets:\n  Backlog:\n    aliases:\n      budget: [\"Cost\"]\n"))
	assert.ErrorContains(t, err, `unknown field "budget"`)

	_, err = ParseMapping([]byte("version: 1\n"))
	assert.ErrorContains(t, err, "no sheets")

	_, err = ParseMapping([]byte("sheets: ["))
	assert.ErrorContains(t, err, "parse mapping")
}

func TestLoadMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sheets:\n  Jobs:\n    aliases:\n      projectName: [Title]\n"), 0o600))

	m, err := LoadMapping(path)
	require.NoError(t, err)
	assert.Contains(t, m.Sheets, "Jobs")

	_, err = LoadMapping(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestImportExcel_CustomMapping(t *testing.T) {
	mapping, err := ParseMapping([]byte(`
sheets:
  backlog:
    aliases:
      projectName: [Job]
      projectType: [Kind]
      dateReceived: [In]
`))
	require.NoError(t, err)

	w := &recordingWriter{}
	data := book(t, "Backlog",
		[]any{" job ", "KIND", "In", "Ignored"},
		[]any{"Pitch deck", "Proposals", "2024-07-04", "x"},
	)

	sum, err := ImportExcel(context.Background(), w, bytes.NewReader(data), ImportOptions{CreatedBy: "u-1", Mapping: mapping})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, []string{"p-1"}, sum.ProjectIDs)
	require.Len(t, w.created, 1)
	assert.Equal(t, "Pitch deck", *w.created[0].ProjectName)
	assert.Equal(t, models.TypeProposals, *w.created[0].ProjectType)
	assert.Nil(t, w.created[0].ContactPerson)
}

func TestImportExcel_Dates(t *testing.T) {
	w := &recordingWriter{}
	data := book(t, "Projects",
		[]any{"Project Name", "Date Received", "Date Delivered"},
		[]any{"Serial", 45477.0, "7/9/24"},
		[]any{"Text", "07/04/2024", "2024-07-09"},
		[]any{"Bad", "next tuesday", ""},
	)

	sum, err := ImportExcel(context.Background(), w, bytes.NewReader(data), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Inserted)
	assert.Equal(t, 1, sum.Errors)

	want := models.NewDate(time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC))
	delivered := models.NewDate(time.Date(2024, 7, 9, 0, 0, 0, 0, time.UTC))
	for _, in := range w.created {
		require.NotNil(t, in.DateReceived)
		assert.True(t, want.Equal(in.DateReceived.Time), "%s: got %s", *in.ProjectName, in.DateReceived)
		require.NotNil(t, in.DateDelivered)
		assert.True(t, delivered.Equal(in.DateDelivered.Time))
	}

	require.Len(t, sum.Sheets[0].Samples, 1)
	sample := sum.Sheets[0].Samples[0]
	assert.Equal(t, 4, sample.Row)
	assert.Contains(t, sample.Fields[FieldDateReceived], "invalid date")
}

func TestImportExcel_RoundTripsExport(t *testing.T) {
	cat := models.CategoryComplex
	hours := 7.5
	notes := "second draft"
	projects := []models.Project{
		{
			ProjectName: "Annual report", ProjectType: models.TypePresentations, Category: &cat,
			DateReceived:  models.NewDate(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)),
			ContactPerson: "Ana", EndClientName: "Acme", Status: models.StatusInvoiceRaised, Notes: &notes,
		},
		{
			ProjectName: "Model tuning", ProjectType: models.TypeAIWork, HoursWorked: &hours,
			DateReceived:  models.NewDate(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
			ContactPerson: "Bo", EndClientName: "Globex", Status: models.StatusNew,
		},
	}
	var buf bytes.Buffer
	require.NoError(t, exporter.Write(&buf, projects))

	w := &recordingWriter{}
	sum, err := ImportExcel(context.Background(), w, &buf, ImportOptions{CreatedBy: "u-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Inserted)
	require.Len(t, w.created, 2)

	for i, in := range w.created {
		got := models.Project{}
		in.ApplyTo(&got)
		want := projects[i]
		assert.Equal(t, want.ProjectName, got.ProjectName)
		assert.Equal(t, want.ProjectType, got.ProjectType)
		assert.Equal(t, want.Category, got.Category)
		assert.Equal(t, want.HoursWorked, got.HoursWorked)
		assert.True(t, want.DateReceived.Equal(got.DateReceived.Time))
		assert.Equal(t, want.Notes, got.Notes)
		assert.Nil(t, in.Status, "status column is not imported")
	}
}

func TestImportExcel_DryRun(t *testing.T) {
	w := &recordingWriter{}
	data := book(t, "Projects",
		[]any{"Project Name", "Contact"},
		[]any{"Pitch", "Ana"},
		[]any{"", "Bo"},
	)

	sum, err := ImportExcel(context.Background(), w, bytes.NewReader(data), ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, sum.DryRun)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 1, sum.Errors)
	assert.Equal(t, 2, w.checked)
	assert.Empty(t, w.created)
	assert.Empty(t, sum.ProjectIDs)
}

func TestImportExcel_Failures(t *testing.T) {
	t.Run("no matching sheet", func(t *testing.T) {
		data := book(t, "Summary", []any{"Project Name"}, []any{"Pitch"})
		_, err := ImportExcel(context.Background(), &recordingWriter{}, bytes.NewReader(data), ImportOptions{})
		assert.ErrorContains(t, err, "no sheet matches")
	})

	t.Run("missing name column", func(t *testing.T) {
		data := book(t, "Projects", []any{"Client"}, []any{"Acme"})
		sum, err := ImportExcel(context.Background(), &recordingWriter{}, bytes.NewReader(data), ImportOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, sum.Errors)
		assert.Equal(t, 1, sum.Sheets[0].Samples[0].Row)
	})

	t.Run("bad hours", func(t *testing.T) {
		data := book(t, "Projects", []any{"Project Name", "Hours"}, []any{"Tuning", "lots"})
		sum, err := ImportExcel(context.Background(), &recordingWriter{}, bytes.NewReader(data), ImportOptions{})
		require.NoError(t, err)
		assert.Equal(t, "must be a number", sum.Sheets[0].Samples[0].Fields[FieldHoursWorked])
	})

	t.Run("store error aborts", func(t *testing.T) {
		w := &recordingWriter{}
		data := book(t, "Projects", []any{"Project Name"}, []any{"Pitch"}, []any{"explode"}, []any{"Later"})
		sum, err := ImportExcel(context.Background(), w, bytes.NewReader(data), ImportOptions{})
		require.ErrorContains(t, err, "row 3")
		assert.Equal(t, 1, sum.Inserted)
		assert.Len(t, w.created, 1)
	})

	t.Run("error budget", func(t *testing.T) {
		rows := [][]any{{"Project Name", "Client"}}
		for i := 0; i < 5; i++ {
			rows = append(rows, []any{"", "Acme"})
		}
		data := book(t, "Projects", rows...)
		sum, err := ImportExcel(context.Background(), &recordingWriter{}, bytes.NewReader(data), ImportOptions{MaxErrors: 1})
		require.ErrorIs(t, err, ErrTooManyErrors)
		assert.Equal(t, 2, sum.Errors)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		data := book(t, "Projects", []any{"Project Name"}, []any{"Pitch"})
		_, err := ImportExcel(ctx, &recordingWriter{}, bytes.NewReader(data), ImportOptions{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
