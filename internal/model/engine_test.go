package model

import (
	"fmt"
	"math"
	"testing"

	"gaitlab/domain/core"
	"gaitlab/domain/gait"
	"gaitlab/domain/metrics"
	"gaitlab/domain/model"
)

// seedTable commits one row per subject with the given metric values.
func seedTable(t *testing.T, values map[core.SubjectID]map[core.MetricName]float64) *metrics.Table {
	t.Helper()
	table := metrics.NewTable()
	batch := core.NewBatchID()
	for subject, byMetric := range values {
		var records []metrics.Record
		for name, v := range byMetric {
			records = append(records, metrics.Record{
				Key: metrics.Key{
					SubjectID: subject,
					TrialType: gait.TrialVis1,
					Metric:    name,
					Condition: metrics.ConditionAll,
				},
				Value:   v,
				BatchID: batch,
			})
		}
		if err := table.CommitSubject(subject, records); err != nil {
			t.Fatalf("commit %s: %v", subject, err)
		}
	}
	return table
}

func TestFitRegression_RecoversLinearRelationship(t *testing.T) {
	// success_rate = 0.2 + 0.5*asymmetry with tiny deterministic noise.
	values := map[core.SubjectID]map[core.MetricName]float64{}
	for i := 0; i < 20; i++ {
		x := -0.5 + float64(i)*0.05
		noise := 0.001 * math.Sin(float64(i))
		id := core.SubjectID(fmt.Sprintf("S%02d", i))
		values[id] = map[core.MetricName]float64{
			metrics.Asymmetry:   x,
			metrics.SuccessRate: 0.2 + 0.5*x + noise,
		}
	}

	engine := NewEngine(seedTable(t, values))
	result, err := engine.FitRegression(model.Spec{
		Kind:       model.KindRegression,
		TrialType:  gait.TrialVis1,
		Condition:  metrics.ConditionAll,
		Outcome:    metrics.SuccessRate,
		Predictors: []core.MetricName{metrics.Asymmetry},
	})
	if err != nil {
		t.Fatalf("FitRegression failed: %v", err)
	}

	if result.SampleSize != 20 {
		t.Errorf("expected 20 complete cases, got %d", result.SampleSize)
	}
	if len(result.Coefficients) != 1 {
		t.Fatalf("expected 1 coefficient, got %d", len(result.Coefficients))
	}
	slope := result.Coefficients[0]
	if math.Abs(slope.Estimate-0.5) > 0.05 {
		t.Errorf("expected slope near 0.5, got %f", slope.Estimate)
	}
	if math.Abs(result.Intercept.Estimate-0.2) > 0.05 {
		t.Errorf("expected intercept near 0.2, got %f", result.Intercept.Estimate)
	}
	if result.RSquared < 0.99 {
		t.Errorf("expected R-squared near 1, got %f", result.RSquared)
	}
	if slope.PValue > 0.001 {
		t.Errorf("expected significant slope, got p=%f", slope.PValue)
	}
}

func TestFitRegression_InsufficientData(t *testing.T) {
	values := map[core.SubjectID]map[core.MetricName]float64{
		"S01": {metrics.Asymmetry: 0.1, metrics.SuccessRate: 0.5},
		"S02": {metrics.Asymmetry: 0.2, metrics.SuccessRate: 0.6},
	}
	engine := NewEngine(seedTable(t, values))
	_, err := engine.FitRegression(model.Spec{
		TrialType:  gait.TrialVis1,
		Condition:  metrics.ConditionAll,
		Outcome:    metrics.SuccessRate,
		Predictors: []core.MetricName{metrics.Asymmetry},
	})
	if !core.IsModelError(err) {
		t.Fatalf("expected insufficient data error, got %v", err)
	}
}

func TestFitRegression_MissingValuesDropped(t *testing.T) {
	// S04 has no asymmetry value at all, so it is not a complete case.
	values := map[core.SubjectID]map[core.MetricName]float64{}
	for i := 0; i < 6; i++ {
		x := float64(i) * 0.1
		id := core.SubjectID(fmt.Sprintf("S%02d", i))
		values[id] = map[core.MetricName]float64{
			metrics.Asymmetry:   x,
			metrics.SuccessRate: 0.3 + x,
		}
	}
	delete(values["S04"], metrics.Asymmetry)

	engine := NewEngine(seedTable(t, values))
	result, err := engine.FitRegression(model.Spec{
		TrialType:  gait.TrialVis1,
		Condition:  metrics.ConditionAll,
		Outcome:    metrics.SuccessRate,
		Predictors: []core.MetricName{metrics.Asymmetry},
	})
	if err != nil {
		t.Fatalf("FitRegression failed: %v", err)
	}
	if result.SampleSize != 5 {
		t.Errorf("expected subject with missing predictor dropped, got n=%d", result.SampleSize)
	}
	for _, s := range result.Subjects {
		if s == "S04" {
			t.Error("incomplete case S04 should not appear in the fit")
		}
	}
}

func TestFitRegression_UnknownPredictor(t *testing.T) {
	engine := NewEngine(metrics.NewTable())
	_, err := engine.FitRegression(model.Spec{
		TrialType:  gait.TrialVis1,
		Condition:  metrics.ConditionAll,
		Outcome:    metrics.SuccessRate,
		Predictors: []core.MetricName{"cadence"},
	})
	if err == nil || !core.IsModelError(err) {
		t.Fatalf("expected unknown predictor error, got %v", err)
	}
}

func TestFitClassifier_SeparableClasses(t *testing.T) {
	// Asymmetry below 0 maps to success_rate 0.9, above 0 to 0.3: perfectly
	// separable at the 0.68 threshold.
	values := map[core.SubjectID]map[core.MetricName]float64{}
	for i := 0; i < 16; i++ {
		x := -0.4 + float64(i)*0.05
		rate := 0.9
		if x > 0 {
			rate = 0.3
		}
		id := core.SubjectID(fmt.Sprintf("S%02d", i))
		values[id] = map[core.MetricName]float64{
			metrics.Asymmetry:   x,
			metrics.SuccessRate: rate,
		}
	}

	engine := NewEngine(seedTable(t, values))
	result, err := engine.FitClassifier(model.Spec{
		Kind:       model.KindClassification,
		TrialType:  gait.TrialVis1,
		Condition:  metrics.ConditionAll,
		Outcome:    metrics.SuccessRate,
		Predictors: []core.MetricName{metrics.Asymmetry},
		Threshold:  0.68,
	})
	if err != nil {
		t.Fatalf("FitClassifier failed: %v", err)
	}

	if result.Accuracy != 1.0 {
		t.Errorf("expected perfect accuracy on separable classes, got %f", result.Accuracy)
	}
	if math.Abs(result.AUC-1.0) > 1e-9 {
		t.Errorf("expected AUC 1.0, got %f", result.AUC)
	}
	if result.Confusion.FalsePositive != 0 || result.Confusion.FalseNegative != 0 {
		t.Errorf("expected empty off-diagonal, got %+v", result.Confusion)
	}
	if result.Confusion.Total() != 16 {
		t.Errorf("expected 16 classified cases, got %d", result.Confusion.Total())
	}
	if len(result.Scores) != 16 || len(result.Labels) != 16 {
		t.Errorf("expected per-subject scores and labels, got %d/%d",
			len(result.Scores), len(result.Labels))
	}
}

func TestFitClassifier_ClassImbalance(t *testing.T) {
	// Only one subject below the threshold.
	values := map[core.SubjectID]map[core.MetricName]float64{}
	for i := 0; i < 8; i++ {
		rate := 0.9
		if i == 0 {
			rate = 0.2
		}
		id := core.SubjectID(fmt.Sprintf("S%02d", i))
		values[id] = map[core.MetricName]float64{
			metrics.Asymmetry:   float64(i) * 0.1,
			metrics.SuccessRate: rate,
		}
	}

	engine := NewEngine(seedTable(t, values))
	_, err := engine.FitClassifier(model.Spec{
		TrialType:  gait.TrialVis1,
		Condition:  metrics.ConditionAll,
		Outcome:    metrics.SuccessRate,
		Predictors: []core.MetricName{metrics.Asymmetry},
		Threshold:  0.68,
	})
	if !core.IsModelError(err) {
		t.Fatalf("expected class imbalance error, got %v", err)
	}
}
