package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"gaitlab/domain/core"
	"gaitlab/domain/gait"
)

// dateLayouts tried in order when parsing DOB and session date cells.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"02-Jan-2006",
	"2006/01/02",
}

// MetadataReader loads the subject metadata table from an .xlsx or .csv file.
type MetadataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

// NewMetadataReader creates a reader for the metadata table.
func NewMetadataReader(filePath string) *MetadataReader {
	fileType := "xlsx"
	if strings.ToLower(filepath.Ext(filePath)) == ".csv" {
		fileType = "csv"
	}
	return &MetadataReader{filePath: filePath, fileType: fileType}
}

// ReadSubjects parses the metadata table into subjects keyed by ID.
// Duplicate IDs are rejected: subject identity must be unambiguous.
func (r *MetadataReader) ReadSubjects() (map[core.SubjectID]*gait.Subject, error) {
	rows, err := r.readRows()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("metadata file %s must have a header row and at least one subject", r.filePath)
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}
	col := make(map[string]int, len(headers))
	for i, h := range headers {
		col[h] = i
	}
	if _, ok := col[ColSubjectID]; !ok {
		return nil, core.NewSchemaError(filepath.Base(r.filePath), []string{ColSubjectID})
	}

	subjects := make(map[core.SubjectID]*gait.Subject)
	for _, row := range rows[1:] {
		idRaw := cell(row, col, ColSubjectID)
		if idRaw == "" {
			continue
		}
		id, err := core.ParseSubjectID(idRaw)
		if err != nil {
			continue
		}
		if _, exists := subjects[id]; exists {
			return nil, fmt.Errorf("%w: %s", core.ErrDuplicateSubject, id)
		}

		dob := parseDate(cell(row, col, ColDOB))
		session := parseDate(cell(row, col, ColSessionDate))
		ageYears := parseFloatDefault(cell(row, col, ColAgeYears), 0)
		ageMonths := parseIntDefault(cell(row, col, ColAgeMonths), 0)

		subjects[id] = gait.NewSubject(id, dob, session, ageYears, ageMonths)
	}

	if len(subjects) == 0 {
		return nil, fmt.Errorf("metadata file %s contained no usable subject rows", r.filePath)
	}
	return subjects, nil
}

func (r *MetadataReader) readRows() ([][]string, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("metadata file not found: %s", r.filePath)
	}
	switch r.fileType {
	case "csv":
		f, err := os.Open(r.filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open metadata file: %w", err)
		}
		defer f.Close()
		reader := csv.NewReader(f)
		reader.FieldsPerRecord = -1
		return reader.ReadAll()
	default:
		f, err := excelize.OpenFile(r.filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open metadata workbook: %w", err)
		}
		defer f.Close()
		sheet := f.GetSheetName(0)
		return f.GetRows(sheet)
	}
}

func cell(row []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	// Excel serial date numbers show up when cells lack a date format.
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseFloatDefault(s string, def float64) float64 {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return def
}

func parseIntDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	// Metadata sometimes stores months as a float.
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return int(v)
	}
	return def
}
