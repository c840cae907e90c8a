// Package exporter writes project listings as Excel workbooks.
package exporter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tealeg/xlsx/v3"

	"project-tracker-api/internal/models"
)

// SheetName is the worksheet every export writes to.
const SheetName = "Projects"

// DateLayout is the format of date cells.
const DateLayout = "01/02/2006"

// Column is one exported field with its header and display width.
type Column struct {
	Header string
	Width  float64
	text   func(p models.Project) string
	number func(p models.Project) (float64, bool)
}

// Columns lists the exported fields in sheet order.
var Columns = []Column{
	{Header: "Project Name", Width: 30, text: func(p models.Project) string { return p.ProjectName }},
	{Header: "Project Type", Width: 15, text: func(p models.Project) string { return string(p.ProjectType) }},
	{Header: "Category", Width: 10, text: func(p models.Project) string {
		if p.Category == nil {
			return ""
		}
		return string(*p.Category)
	}},
	{Header: "Hours Worked", Width: 12, number: func(p models.Project) (float64, bool) {
		if p.HoursWorked == nil {
			return 0, false
		}
		return *p.HoursWorked, true
	}},
	{Header: "Date Received", Width: 15, text: func(p models.Project) string { return p.DateReceived.Format(DateLayout) }},
	{Header: "Date Delivered", Width: 15, text: func(p models.Project) string {
		if p.DateDelivered == nil {
			return ""
		}
		return p.DateDelivered.Format(DateLayout)
	}},
	{Header: "Contact Person", Width: 20, text: func(p models.Project) string { return p.ContactPerson }},
	{Header: "End Client Name", Width: 25, text: func(p models.Project) string { return p.EndClientName }},
	{Header: "Status", Width: 18, text: func(p models.Project) string { return string(p.Status) }},
	{Header: "Notes", Width: 40, text: func(p models.Project) string {
		if p.Notes == nil {
			return ""
		}
		return *p.Notes
	}},
}

// Build renders projects into a new workbook with a header row.
func Build(projects []models.Project) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(SheetName)
	if err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}

	header := sheet.AddRow()
	for i, col := range Columns {
		header.AddCell().SetString(col.Header)
		sheet.SetColWidth(i+1, i+1, col.Width)
	}

	for _, p := range projects {
		row := sheet.AddRow()
		for _, col := range Columns {
			cell := row.AddCell()
			if col.number != nil {
				if f, ok := col.number(p); ok {
					cell.SetFloat(f)
				}
				continue
			}
			cell.SetString(col.text(p))
		}
	}
	return file, nil
}

// Write renders projects as an .xlsx document onto w.
func Write(w io.Writer, projects []models.Project) error {
	file, err := Build(projects)
	if err != nil {
		return err
	}
	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// FileName returns "<prefix>_YYYYMMDD.xlsx" for the given day.
func FileName(prefix string, day time.Time) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "Projects"
	}
	return prefix + "_" + day.Format("20060102") + ".xlsx"
}

// PrefixFor names the export of a status column the way users know it.
func PrefixFor(s models.Status) string {
	switch s {
	case models.StatusNew:
		return "New_Projects"
	case models.StatusSentToCEO:
		return "Sent_To_CEO_Projects"
	case models.StatusApprovedByClient:
		return "Approved_Projects"
	case models.StatusInvoiceRaised:
		return "Invoiced_Projects"
	}
	return "Projects"
}
