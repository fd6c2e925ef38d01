package pipeline

import (
	"context"
	"testing"

	"gaitlab/domain/core"
	"gaitlab/domain/gait"
	"gaitlab/domain/metrics"
	"gaitlab/internal"
	"gaitlab/internal/config"
	"gaitlab/internal/errors"
	"gaitlab/internal/testkit"
)

func testConfig(dataDir, metadataPath string) *config.Config {
	return &config.Config{
		Paths:   config.PathConfig{DataDir: dataDir, MetadataFile: metadataPath},
		Filter: config.FilterConfig{
			MinAge:             8,
			MaxAge:             16,
			RequiredTrialTypes: []gait.TrialType{gait.TrialVis1},
		},
		Anomaly: config.AnomalyConfig{SigmaThreshold: 3.0},
		Splice:  config.SpliceConfig{OverlapPolicy: "first_wins"},
		Model: config.ModelConfig{
			Outcome:              metrics.SuccessRate,
			RegressionPredictors: []core.MetricName{metrics.Asymmetry},
			ClassifierPredictors: []core.MetricName{metrics.Asymmetry},
			ClassThreshold:       0.68,
		},
		Workers: 2,
	}
}

func TestRun_FullBatch(t *testing.T) {
	root := t.TempDir()
	dataDir, metadataPath, err := testkit.WriteCohort(root, testkit.CohortSpec{
		Subjects: map[string][]testkit.FragmentSpec{
			// S01: two overlapping vis1 fragments, 1-12 and 10-21.
			"S01": {
				{Filename: "primer01.txt", Start: 1, Count: 12, Constant: 60, BoundWidth: 10, BaseStep: 40, FailEvery: 5, Seed: 1},
				{Filename: "primer02.txt", Start: 10, Count: 12, Constant: 60, BoundWidth: 10, BaseStep: 40, FailEvery: 5, Seed: 2},
			},
			// S02: one clean fragment plus a gross step-length outlier.
			"S02": {
				{Filename: "primer01.txt", Start: 1, Count: 20, Constant: 60, BoundWidth: 10, BaseStep: 40, OutlierRow: 7, OutlierStep: 400, Seed: 3},
			},
			// S03: valid data but age 5, removed by the cohort filter.
			"S03": {
				{Filename: "primer01.txt", Start: 1, Count: 20, Constant: 60, BoundWidth: 10, BaseStep: 40, Seed: 4},
			},
			// S04: unknown filename prefix, the only file is skipped.
			"S04": {
				{Filename: "notes01.txt", Start: 1, Count: 5, Constant: 60, BoundWidth: 10, BaseStep: 40, Seed: 5},
			},
		},
		Rows: []testkit.SubjectRow{
			{ID: "S01", DOB: "2015-03-01", SessionDate: "2024-03-01", AgeYears: 9, AgeMonths: 108},
			{ID: "S02", DOB: "2010-03-01", SessionDate: "2024-03-01", AgeYears: 14, AgeMonths: 168},
			{ID: "S03", DOB: "2019-03-01", SessionDate: "2024-03-01", AgeYears: 5, AgeMonths: 60},
			{ID: "S04", DOB: "2013-03-01", SessionDate: "2024-03-01", AgeYears: 11, AgeMonths: 132},
		},
	})
	if err != nil {
		t.Fatalf("writing cohort: %v", err)
	}

	runner := NewRunner(testConfig(dataDir, metadataPath), internal.NewLogger(internal.LogLevelError))
	table := metrics.NewTable()
	result, err := runner.Run(context.Background(), table)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.SubjectsRead != 4 {
		t.Errorf("expected 4 subjects read, got %d", result.SubjectsRead)
	}
	if result.FilesRead != 4 {
		t.Errorf("expected 4 fragment files normalized, got %d", result.FilesRead)
	}
	if len(result.FilesSkipped) != 1 || result.FilesSkipped[0].SubjectID != "S04" {
		t.Errorf("expected exactly the unknown-prefix file skipped, got %+v", result.FilesSkipped)
	} else if code := result.FilesSkipped[0].Code; code != errors.CodeTrialType {
		t.Errorf("expected skip classified as %s, got %s", errors.CodeTrialType, code)
	}
	if len(result.SpliceWarnings) != 1 {
		t.Errorf("expected one overlap warning for S01, got %d", len(result.SpliceWarnings))
	}
	if result.StridesFlagged < 1 {
		t.Errorf("expected the gross outlier stride flagged, got %d", result.StridesFlagged)
	}

	// S03 fails the age bound, S04 has no usable trial.
	if result.SubjectsRetained != 2 {
		t.Errorf("expected 2 subjects retained, got %d", result.SubjectsRetained)
	}
	for _, id := range result.Subjects {
		if id == "S03" || id == "S04" {
			t.Errorf("subject %s should not survive the filter", id)
		}
	}

	for _, id := range []core.SubjectID{"S01", "S02"} {
		key := metrics.Key{SubjectID: id, TrialType: gait.TrialVis1, Metric: metrics.SuccessRate, Condition: metrics.ConditionAll}
		if _, ok := table.Get(key); !ok {
			t.Errorf("expected success_rate committed for %s", id)
		}
	}
	if len(table.Subjects()) != 2 {
		t.Errorf("expected table restricted to retained subjects, got %v", table.Subjects())
	}

	// Two subjects cannot support the configured models; the skips are
	// recorded instead of failing the batch.
	if len(result.Models) != 0 {
		t.Errorf("expected no models on a 2-subject cohort, got %d", len(result.Models))
	}
	if len(result.ModelSkips) == 0 {
		t.Error("expected model skips recorded")
	}
	if result.BatchID == "" {
		t.Error("expected a batch ID assigned")
	}
	if result.StartedAt.IsZero() || result.FinishedAt.IsZero() {
		t.Error("expected run timestamps recorded")
	}
	if result.FinishedAt.Before(result.StartedAt) {
		t.Error("finish must not precede start")
	}
}

func TestRun_SubjectWithoutMetadataSkipped(t *testing.T) {
	root := t.TempDir()
	dataDir, metadataPath, err := testkit.WriteCohort(root, testkit.CohortSpec{
		Subjects: map[string][]testkit.FragmentSpec{
			"S01": {{Filename: "primer01.txt", Start: 1, Count: 20, Constant: 60, BoundWidth: 10, BaseStep: 40, Seed: 1}},
			"S99": {{Filename: "primer01.txt", Start: 1, Count: 20, Constant: 60, BoundWidth: 10, BaseStep: 40, Seed: 2}},
		},
		Rows: []testkit.SubjectRow{
			{ID: "S01", DOB: "2015-03-01", SessionDate: "2024-03-01", AgeYears: 9, AgeMonths: 108},
		},
	})
	if err != nil {
		t.Fatalf("writing cohort: %v", err)
	}

	runner := NewRunner(testConfig(dataDir, metadataPath), internal.NewLogger(internal.LogLevelError))
	table := metrics.NewTable()
	result, err := runner.Run(context.Background(), table)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.SubjectsRead != 1 {
		t.Errorf("expected only the metadata-backed subject processed, got %d", result.SubjectsRead)
	}
	if _, ok := table.Get(metrics.Key{SubjectID: "S99", TrialType: gait.TrialVis1, Metric: metrics.SuccessRate, Condition: metrics.ConditionAll}); ok {
		t.Error("subject without metadata must not reach the metric table")
	}
}
