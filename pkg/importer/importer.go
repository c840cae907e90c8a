// Package importer loads projects from Excel workbooks. Column headers are
// matched through a YAML mapping of field aliases, and every row is
// validated by the same rules as the HTTP create endpoint.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tealeg/xlsx/v3"
	"gopkg.in/yaml.v3"

	"project-tracker-api/internal/models"
)

// DefaultMaxErrors stops an import after this many bad rows.
const DefaultMaxErrors = 50

// ErrTooManyErrors aborts an import whose error count passed MaxErrors.
var ErrTooManyErrors = errors.New("too many errors")

// ProjectWriter is the part of the project service an import needs.
type ProjectWriter interface {
	Create(ctx context.Context, createdBy string, in models.ProjectInput) (*models.Project, error)
	// Check validates in exactly as Create would, without storing it.
	Check(in models.ProjectInput) error
}

// ImportOptions defines the configuration for Excel import operations
type ImportOptions struct {
	CreatedBy string
	Mapping   *MappingConfig // nil means DefaultMapping
	DryRun    bool
	MaxErrors int // default 50
}

// RowError represents an error that occurred during row processing
type RowError struct {
	Sheet   string            `json:"sheet"`
	Row     int               `json:"row"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// SheetSummary contains the import statistics for a single sheet
type SheetSummary struct {
	Name     string     `json:"name"`
	Inserted int        `json:"inserted"`
	Skipped  int        `json:"skipped"`
	Errors   int        `json:"errors"`
	Samples  []RowError `json:"error_samples,omitempty"`
}

// ImportSummary contains the overall import statistics
type ImportSummary struct {
	Inserted   int            `json:"inserted"`
	Skipped    int            `json:"skipped"`
	Errors     int            `json:"errors"`
	Sheets     []SheetSummary `json:"sheets"`
	ProjectIDs []string       `json:"project_ids,omitempty"`
	DryRun     bool           `json:"dry_run"`
}

// MappingConfig represents the YAML mapping configuration
type MappingConfig struct {
	Version int                    `yaml:"version"`
	Sheets  map[string]SheetConfig `yaml:"sheets"`
}

// SheetConfig maps project fields to the header names that may carry them.
type SheetConfig struct {
	Aliases map[string][]string `yaml:"aliases"`
}

// Field names accepted as mapping keys.
const (
	FieldProjectName   = "projectName"
	FieldProjectType   = "projectType"
	FieldCategory      = "category"
	FieldHoursWorked   = "hoursWorked"
	FieldDateReceived  = "dateReceived"
	FieldDateDelivered = "dateDelivered"
	FieldContactPerson = "contactPerson"
	FieldEndClientName = "endClientName"
	FieldNotes         = "notes"
)

var knownFields = map[string]bool{
	FieldProjectName: true, FieldProjectType: true, FieldCategory: true,
	FieldHoursWorked: true, FieldDateReceived: true, FieldDateDelivered: true,
	FieldContactPerson: true, FieldEndClientName: true, FieldNotes: true,
}

// DefaultMapping reads the "Projects" sheet with the headers the exporter
// writes, plus a few common variants. A Status column is ignored because
// imported projects always start as New.
func DefaultMapping() *MappingConfig {
	return &MappingConfig{
		Version: 1,
		Sheets: map[string]SheetConfig{
			"Projects": {
				Aliases: map[string][]string{
					FieldProjectName:   {"Project Name", "Project", "Name"},
					FieldProjectType:   {"Project Type", "Type"},
					FieldCategory:      {"Category", "Size"},
					FieldHoursWorked:   {"Hours Worked", "Hours"},
					FieldDateReceived:  {"Date Received", "Received"},
					FieldDateDelivered: {"Date Delivered", "Delivered"},
					FieldContactPerson: {"Contact Person", "Contact"},
					FieldEndClientName: {"End Client Name", "End Client", "Client"},
					FieldNotes:         {"Notes", "Comments"},
				},
			},
		},
	}
}

// LoadMapping reads a YAML mapping file and checks its field names.
func LoadMapping(path string) (*MappingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping %s: %w", path, err)
	}
	return ParseMapping(data)
}

// ParseMapping decodes a YAML mapping document.
func ParseMapping(data []byte) (*MappingConfig, error) {
	var m MappingConfig
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	if len(m.Sheets) == 0 {
		return nil, errors.New("mapping defines no sheets")
	}
	for sheet, cfg := range m.Sheets {
		for field := range cfg.Aliases {
			if !knownFields[field] {
				return nil, fmt.Errorf("sheet %q: unknown field %q", sheet, field)
			}
		}
	}
	return &m, nil
}

// ImportExcel reads an .xlsx document and creates one project per data row
// of every mapped sheet. Rows that fail validation are counted and sampled
// without stopping the import, until MaxErrors is exceeded. A store failure
// aborts the import and returns the partial summary.
func ImportExcel(ctx context.Context, w ProjectWriter, r io.Reader, opts ImportOptions) (ImportSummary, error) {
	summary := ImportSummary{
		DryRun: opts.DryRun,
		Sheets: []SheetSummary{},
	}

	if opts.Mapping == nil {
		opts.Mapping = DefaultMapping()
	}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = DefaultMaxErrors
	}

	// xlsx needs random access, so read the whole upload first.
	data, err := io.ReadAll(r)
	if err != nil {
		return summary, fmt.Errorf("failed to read Excel file: %w", err)
	}

	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return summary, fmt.Errorf("failed to open Excel file: %w", err)
	}

	for _, sheet := range xlFile.Sheets {
		cfg, ok := lookupSheet(opts.Mapping, sheet.Name)
		if !ok {
			continue
		}

		sheetSummary, ids, err := processSheet(ctx, w, sheet, cfg, opts, opts.MaxErrors-summary.Errors)
		summary.Sheets = append(summary.Sheets, sheetSummary)
		summary.Inserted += sheetSummary.Inserted
		summary.Skipped += sheetSummary.Skipped
		summary.Errors += sheetSummary.Errors
		summary.ProjectIDs = append(summary.ProjectIDs, ids...)
		if err != nil {
			return summary, err
		}
	}

	if len(summary.Sheets) == 0 {
		return summary, errors.New("no sheet matches the mapping")
	}
	return summary, nil
}

// lookupSheet matches sheet names case-insensitively.
func lookupSheet(m *MappingConfig, name string) (SheetConfig, bool) {
	if cfg, ok := m.Sheets[name]; ok {
		return cfg, true
	}
	for k, cfg := range m.Sheets {
		if strings.EqualFold(k, name) {
			return cfg, true
		}
	}
	return SheetConfig{}, false
}

func processSheet(ctx context.Context, w ProjectWriter, sheet *xlsx.Sheet, cfg SheetConfig, opts ImportOptions, budget int) (SheetSummary, []string, error) {
	summary := SheetSummary{Name: sheet.Name}
	var ids []string

	fail := func(row int, err error) {
		summary.Errors++
		re := RowError{Sheet: sheet.Name, Row: row, Message: err.Error()}
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			re.Message = "validation failed"
			re.Fields = verr.Fields
		}
		if len(summary.Samples) < 20 {
			summary.Samples = append(summary.Samples, re)
		}
	}

	if sheet.MaxRow == 0 {
		return summary, nil, nil
	}
	headerRow, err := sheet.Row(0)
	if err != nil {
		fail(1, fmt.Errorf("failed to read header row: %w", err))
		return summary, nil, nil
	}

	columns := mapHeader(headerRow, sheet.MaxCol, cfg)
	if _, ok := columns[FieldProjectName]; !ok {
		fail(1, errors.New("header row has no project name column"))
		return summary, nil, nil
	}

	for rowIdx := 1; rowIdx < sheet.MaxRow; rowIdx++ {
		if err := ctx.Err(); err != nil {
			return summary, ids, err
		}
		row, err := sheet.Row(rowIdx)
		if err != nil {
			break
		}

		in, empty, err := buildInput(row, columns)
		switch {
		case empty:
			summary.Skipped++
			continue
		case err != nil:
			fail(rowIdx+1, err)
		case opts.DryRun:
			if err := w.Check(in); err != nil {
				fail(rowIdx+1, err)
			} else {
				summary.Inserted++
			}
		default:
			p, err := w.Create(ctx, opts.CreatedBy, in)
			var verr *models.ValidationError
			switch {
			case errors.As(err, &verr):
				fail(rowIdx+1, err)
			case err != nil:
				return summary, ids, fmt.Errorf("row %d: %w", rowIdx+1, err)
			default:
				summary.Inserted++
				ids = append(ids, p.ID)
			}
		}

		if summary.Errors > budget {
			return summary, ids, fmt.Errorf("%w (%d), stopping import", ErrTooManyErrors, summary.Errors)
		}
	}
	return summary, ids, nil
}

// mapHeader resolves each project field to a column index.
func mapHeader(header *xlsx.Row, maxCol int, cfg SheetConfig) map[string]int {
	byHeader := make(map[string]string)
	for field, aliases := range cfg.Aliases {
		for _, alias := range aliases {
			byHeader[strings.ToUpper(strings.TrimSpace(alias))] = field
		}
	}

	columns := make(map[string]int)
	for colIdx := 0; colIdx < maxCol; colIdx++ {
		name := strings.ToUpper(strings.TrimSpace(header.GetCell(colIdx).String()))
		if name == "" {
			continue
		}
		field, ok := byHeader[name]
		if !ok {
			continue
		}
		if _, taken := columns[field]; !taken {
			columns[field] = colIdx
		}
	}
	return columns
}

// buildInput converts one sheet row to a ProjectInput. Empty reports a row
// with no mapped values at all.
func buildInput(row *xlsx.Row, columns map[string]int) (in models.ProjectInput, empty bool, err error) {
	values := make(map[string]*xlsx.Cell, len(columns))
	for field, colIdx := range columns {
		cell := row.GetCell(colIdx)
		if strings.TrimSpace(cell.String()) != "" {
			values[field] = cell
		}
	}
	if len(values) == 0 {
		return in, true, nil
	}

	text := func(field string) *string {
		c, ok := values[field]
		if !ok {
			return nil
		}
		s := strings.TrimSpace(c.String())
		return &s
	}

	in.ProjectName = text(FieldProjectName)
	in.ContactPerson = text(FieldContactPerson)
	in.EndClientName = text(FieldEndClientName)
	in.Notes = text(FieldNotes)
	if s := text(FieldProjectType); s != nil {
		t := models.ProjectType(*s)
		in.ProjectType = &t
	}
	if s := text(FieldCategory); s != nil {
		c := models.Category(*s)
		in.Category = &c
	}

	verr := &models.ValidationError{}
	if c, ok := values[FieldHoursWorked]; ok {
		h, perr := strconv.ParseFloat(strings.TrimSpace(c.Value), 64)
		if perr != nil {
			verr.Add(FieldHoursWorked, "must be a number")
		} else {
			in.HoursWorked = &h
		}
	}
	for field, dst := range map[string]**models.Date{
		FieldDateReceived:  &in.DateReceived,
		FieldDateDelivered: &in.DateDelivered,
	} {
		c, ok := values[field]
		if !ok {
			continue
		}
		d, perr := parseDate(c)
		if perr != nil {
			verr.Add(field, perr.Error())
			continue
		}
		*dst = &d
	}
	return in, false, verr.Err()
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// parseDate accepts the text layouts people type into sheets as well as
// native Excel date serials.
func parseDate(c *xlsx.Cell) (models.Date, error) {
	raw := strings.TrimSpace(c.Value)
	if c.Type() == xlsx.CellTypeNumeric {
		if serial, err := strconv.ParseFloat(raw, 64); err == nil {
			return models.NewDate(xlsx.TimeFromExcelTime(serial, c.Row.Sheet.File.Date1904)), nil
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return models.NewDate(t), nil
		}
	}
	return models.Date{}, fmt.Errorf("invalid date %q", raw)
}
