package export

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"gaitlab/domain/core"
	"gaitlab/domain/gait"
	"gaitlab/domain/metrics"
	"gaitlab/domain/model"
	"gaitlab/internal/errors"
)

func TestWrite_SheetPerTrialType(t *testing.T) {
	table := metrics.NewTable()
	commit := func(subject core.SubjectID, trialType gait.TrialType, name core.MetricName, value float64, missing bool) {
		err := table.CommitSubject(subject, []metrics.Record{{
			Key: metrics.Key{SubjectID: subject, TrialType: trialType,
				Metric: name, Condition: metrics.ConditionAll},
			Value: value, Missing: missing,
		}})
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
	}
	commit("S01", gait.TrialVis1, metrics.SuccessRate, 0.8, false)
	commit("S02", gait.TrialVis1, metrics.SuccessRate, 0.6, false)
	commit("S02", gait.TrialPref, metrics.MotorNoise, 0.0, true)

	models := []*model.Result{{
		Kind:      model.KindRegression,
		TrialType: gait.TrialVis1,
		Condition: metrics.ConditionAll,
		Outcome:   metrics.SuccessRate,
		Intercept: model.Coefficient{Name: "intercept", Estimate: 0.2},
		Coefficients: []model.Coefficient{
			{Name: metrics.Asymmetry, Estimate: 0.5},
		},
		SampleSize: 10,
		RSquared:   0.9,
	}}

	path := filepath.Join(t.TempDir(), "metrics.xlsx")
	if err := NewWorkbookWriter(path).Write(table, models); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopening workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := map[string]bool{"vis1": false, "pref": false, "models": false}
	for _, s := range sheets {
		if _, ok := want[s]; ok {
			want[s] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected sheet %q, got %v", name, sheets)
		}
	}

	rows, err := f.GetRows("vis1")
	if err != nil {
		t.Fatalf("reading vis1 sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 subject rows, got %d", len(rows))
	}
	if rows[0][0] != "Subject" || rows[0][2] != "success_rate" {
		t.Errorf("unexpected header row %v", rows[0])
	}
	if rows[1][0] != "S01" || rows[1][2] != "0.8" {
		t.Errorf("unexpected first data row %v", rows[1])
	}

	// The missing motor_noise value renders as an empty cell, not a zero.
	prefRows, err := f.GetRows("pref")
	if err != nil {
		t.Fatalf("reading pref sheet: %v", err)
	}
	noiseCol := 2 + 5 // Subject, Condition, then catalogue order
	if len(prefRows[1]) > noiseCol && prefRows[1][noiseCol] != "" {
		t.Errorf("missing metric should be an empty cell, got %q", prefRows[1][noiseCol])
	}

	modelRows, err := f.GetRows("models")
	if err != nil {
		t.Fatalf("reading models sheet: %v", err)
	}
	if len(modelRows) != 3 {
		t.Fatalf("expected header plus intercept and slope rows, got %d", len(modelRows))
	}
	if modelRows[2][4] != "asymmetry" {
		t.Errorf("expected slope term row, got %v", modelRows[2])
	}
}

func TestWrite_UnwritablePathReportsExportError(t *testing.T) {
	table := metrics.NewTable()
	err := table.CommitSubject("S01", []metrics.Record{{
		Key: metrics.Key{SubjectID: "S01", TrialType: gait.TrialVis1,
			Metric: metrics.SuccessRate, Condition: metrics.ConditionAll},
		Value: 0.8,
	}})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	writer := NewWorkbookWriter(filepath.Join(t.TempDir(), "no-such-dir", "out.xlsx"))
	werr := writer.Write(table, nil)
	if werr == nil {
		t.Fatal("expected write to an absent directory to fail")
	}
	if code := errors.GetCode(werr); code != errors.CodeExportError {
		t.Errorf("expected code %s, got %s", errors.CodeExportError, code)
	}
}
