// Package export renders assessment history as CSV or XLSX.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Harshitk-cp/wellspring/internal/domain"
	"github.com/xuri/excelize/v2"
)

var ErrUnknownFormat = errors.New("unknown export format")

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Table is a header row plus data rows of plain cell values.
type Table struct {
	Headers []string
	Rows    [][]any
}

var assessmentHeaders = []string{
	"id", "created_at", "kind", "probability", "risk_level", "recommendation",
	"confidence", "evidence", "school_name", "location", "reporter_name",
}

// AssessmentsTable flattens assessments into one row each. Evidence is
// rendered as name=state pairs sorted by name.
func AssessmentsTable(items []domain.Assessment) Table {
	t := Table{Headers: assessmentHeaders}
	for _, a := range items {
		t.Rows = append(t.Rows, []any{
			a.ID.String(),
			a.CreatedAt.UTC().Format(time.RFC3339),
			string(a.Kind),
			a.Probability,
			string(a.RiskLevel),
			a.Recommendation,
			string(a.Confidence),
			formatEvidence(a.Evidence),
			a.SchoolName,
			a.Location,
			a.ReporterName,
		})
	}
	return t
}

func formatEvidence(ev map[string]int) string {
	parts := make([]string, 0, len(ev))
	for name, state := range ev {
		parts = append(parts, name+"="+strconv.Itoa(state))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// Write renders t to w in the given format.
func Write(w io.Writer, f Format, t Table) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatXLSX:
		return WriteXLSX(w, t)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	record := make([]string, len(t.Headers))
	for _, row := range t.Rows {
		record = record[:0]
		for _, v := range row {
			record = append(record, cellString(v))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

const sheetName = "Assessments"

func WriteXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	for i, h := range t.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}
	for r, row := range t.Rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}
	}

	if len(t.Headers) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(t.Headers), 1)
		if err := f.SetPanes(sheetName, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return err
		}
		if err := f.AutoFilter(sheetName, "A1:"+last, nil); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

func cellString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
