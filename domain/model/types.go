package model

import (
	"gaitlab/domain/core"
	"gaitlab/domain/gait"
	"gaitlab/domain/metrics"
)

// Kind distinguishes the two modeling procedures.
type Kind string

const (
	KindRegression     Kind = "regression"
	KindClassification Kind = "classification"
)

// Spec configures one modeling call over the metric table.
type Spec struct {
	Kind       Kind              `json:"kind"`
	TrialType  gait.TrialType    `json:"trial_type"`
	Condition  metrics.Condition `json:"condition"`
	Outcome    core.MetricName   `json:"outcome"`
	Predictors []core.MetricName `json:"predictors"`

	// Classification only: label = outcome >= Threshold.
	Threshold float64 `json:"threshold,omitempty"`
}

// Coefficient holds one fitted predictor term.
type Coefficient struct {
	Name     core.MetricName `json:"name"`
	Estimate float64         `json:"estimate"`
	StdErr   float64         `json:"std_err"`
	TValue   float64         `json:"t_value"`
	PValue   float64         `json:"p_value"`
}

// ConfusionMatrix tallies classification outcomes at the decision threshold.
type ConfusionMatrix struct {
	TruePositive  int `json:"true_positive"`
	TrueNegative  int `json:"true_negative"`
	FalsePositive int `json:"false_positive"`
	FalseNegative int `json:"false_negative"`
}

// Total returns the number of classified cases.
func (m ConfusionMatrix) Total() int {
	return m.TruePositive + m.TrueNegative + m.FalsePositive + m.FalseNegative
}

// Accuracy is the fraction of correct classifications.
func (m ConfusionMatrix) Accuracy() float64 {
	if m.Total() == 0 {
		return 0
	}
	return float64(m.TruePositive+m.TrueNegative) / float64(m.Total())
}

// Result is the output of one modeling call. Pure value: re-running with a
// different predictor set produces an independent Result.
type Result struct {
	Kind      Kind              `json:"kind"`
	TrialType gait.TrialType    `json:"trial_type"`
	Condition metrics.Condition `json:"condition"`
	Outcome   core.MetricName   `json:"outcome"`

	Intercept    Coefficient      `json:"intercept"`
	Coefficients []Coefficient    `json:"coefficients"`
	SampleSize   int              `json:"sample_size"`
	Subjects     []core.SubjectID `json:"subjects,omitempty"`

	// Regression
	RSquared    float64 `json:"r_squared,omitempty"`
	AdjRSquared float64 `json:"adj_r_squared,omitempty"`

	// Classification
	Threshold float64          `json:"threshold,omitempty"`
	Accuracy  float64          `json:"accuracy,omitempty"`
	AUC       float64          `json:"auc,omitempty"`
	Confusion *ConfusionMatrix `json:"confusion,omitempty"`
	Scores    []float64        `json:"scores,omitempty"` // per-subject classifier scores
	Labels    []bool           `json:"labels,omitempty"` // per-subject true labels
}
