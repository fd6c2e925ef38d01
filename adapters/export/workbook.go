// Package export writes the metric table and model results to an Excel
// workbook for downstream plotting and archival.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"gaitlab/domain/core"
	"gaitlab/domain/gait"
	"gaitlab/domain/metrics"
	"gaitlab/domain/model"
	"gaitlab/internal/errors"
)

// metricColumns fixes the workbook column order for the metric catalogue.
var metricColumns = []core.MetricName{
	metrics.SuccessRate,
	metrics.MeanStrideLength,
	metrics.StrideVariability,
	metrics.Error,
	metrics.Asymmetry,
	metrics.MotorNoise,
	metrics.StridesBetweenSuccess,
}

// WorkbookWriter renders batch output into an .xlsx file, one sheet per
// trial type plus a models sheet.
type WorkbookWriter struct {
	filePath string
}

// NewWorkbookWriter creates a writer targeting filePath.
func NewWorkbookWriter(filePath string) *WorkbookWriter {
	return &WorkbookWriter{filePath: filePath}
}

// Write saves the workbook. Missing metrics render as empty cells so the
// downstream plotting scripts can tell "absent" from zero.
func (w *WorkbookWriter) Write(table *metrics.Table, models []*model.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for _, trialType := range gait.AllTrialTypes {
		rows := sheetRows(table, trialType)
		if len(rows) == 0 {
			continue
		}
		sheet := string(trialType)
		if first {
			// The default sheet is renamed rather than left empty.
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return err
			}
			first = false
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return err
			}
		}
		if err := writeMetricSheet(f, sheet, rows); err != nil {
			return err
		}
	}

	if len(models) > 0 {
		if err := writeModelSheet(f, models, first); err != nil {
			return err
		}
	}

	if err := f.SaveAs(w.filePath); err != nil {
		return errors.ExportError(fmt.Sprintf("saving workbook %s", w.filePath), err)
	}
	return nil
}

// sheetRow is one (subject, condition) line of a trial-type sheet.
type sheetRow struct {
	subject   core.SubjectID
	condition metrics.Condition
	values    map[core.MetricName]*float64
}

func sheetRows(table *metrics.Table, trialType gait.TrialType) []sheetRow {
	var rows []sheetRow
	index := make(map[string]int)
	for _, r := range table.Records() {
		if r.Key.TrialType != trialType {
			continue
		}
		lineKey := string(r.Key.SubjectID) + "|" + string(r.Key.Condition)
		i, ok := index[lineKey]
		if !ok {
			i = len(rows)
			index[lineKey] = i
			rows = append(rows, sheetRow{
				subject:   r.Key.SubjectID,
				condition: r.Key.Condition,
				values:    make(map[core.MetricName]*float64),
			})
		}
		if !r.Missing {
			v := r.Value
			rows[i].values[r.Key.Metric] = &v
		}
	}
	return rows
}

func writeMetricSheet(f *excelize.File, sheet string, rows []sheetRow) error {
	header := []interface{}{"Subject", "Condition"}
	for _, m := range metricColumns {
		header = append(header, string(m))
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}

	for i, row := range rows {
		cells := []interface{}{string(row.subject), string(row.condition)}
		for _, m := range metricColumns {
			if v := row.values[m]; v != nil {
				cells = append(cells, *v)
			} else {
				cells = append(cells, nil)
			}
		}
		if err := setRow(f, sheet, i+2, cells); err != nil {
			return err
		}
	}
	return nil
}

func writeModelSheet(f *excelize.File, models []*model.Result, first bool) error {
	const sheet = "models"
	if first {
		if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
			return err
		}
	} else {
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
	}

	header := []interface{}{"Kind", "Trial", "Condition", "Outcome", "Term",
		"Estimate", "StdErr", "t", "p", "N", "R2", "Accuracy", "AUC"}
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}

	line := 2
	for _, m := range models {
		terms := append([]model.Coefficient{m.Intercept}, m.Coefficients...)
		for _, c := range terms {
			cells := []interface{}{
				string(m.Kind), string(m.TrialType), string(m.Condition), string(m.Outcome),
				string(c.Name), c.Estimate, c.StdErr, c.TValue, c.PValue,
				m.SampleSize, m.RSquared, m.Accuracy, m.AUC,
			}
			if err := setRow(f, sheet, line, cells); err != nil {
				return err
			}
			line++
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("writing sheet %s row %d: %w", sheet, row, err)
	}
	return nil
}
