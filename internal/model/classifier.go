package model

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"gaitlab/domain/core"
	"gaitlab/domain/model"
)

const (
	logisticIterations = 2000
	logisticRate       = 0.5
)

// FitClassifier dichotomizes the outcome metric at the spec threshold and
// fits a logistic regression on the predictor list. Predictors are
// standardized before the fit so the gradient steps are scale-free.
func (e *Engine) FitClassifier(spec model.Spec) (*model.Result, error) {
	subjects, rows, err := e.completeCases(spec)
	if err != nil {
		return nil, err
	}

	n := len(rows)
	p := len(spec.Predictors)
	required := p + 2
	if n < required {
		return nil, core.NewInsufficientDataError(metricNames(spec.Predictors), n, required)
	}

	labels := make([]bool, n)
	positive, negative := 0, 0
	for i, row := range rows {
		labels[i] = row[0] >= spec.Threshold
		if labels[i] {
			positive++
		} else {
			negative++
		}
	}
	if positive < 2 || negative < 2 {
		return nil, core.NewClassImbalanceError(positive, negative)
	}

	X, means, sds := standardize(rows, p)
	weights := fitLogistic(X, labels, p)

	scores := make([]float64, n)
	confusion := &model.ConfusionMatrix{}
	for i := 0; i < n; i++ {
		scores[i] = sigmoid(dot(weights, X[i]))
		predicted := scores[i] >= 0.5
		switch {
		case predicted && labels[i]:
			confusion.TruePositive++
		case !predicted && !labels[i]:
			confusion.TrueNegative++
		case predicted && !labels[i]:
			confusion.FalsePositive++
		default:
			confusion.FalseNegative++
		}
	}

	result := &model.Result{
		Kind:       model.KindClassification,
		TrialType:  spec.TrialType,
		Condition:  spec.Condition,
		Outcome:    spec.Outcome,
		SampleSize: n,
		Subjects:   subjects,
		Threshold:  spec.Threshold,
		Accuracy:   confusion.Accuracy(),
		AUC:        rocAUC(scores, labels),
		Confusion:  confusion,
		Scores:     scores,
		Labels:     labels,
	}

	// Report weights on the original predictor scale.
	result.Intercept = model.Coefficient{Name: "intercept", Estimate: weights[0]}
	for j, name := range spec.Predictors {
		est := weights[j+1]
		if sds[j] > 0 {
			est /= sds[j]
			result.Intercept.Estimate -= est * means[j]
		}
		result.Coefficients = append(result.Coefficients, model.Coefficient{Name: name, Estimate: est})
	}
	return result, nil
}

// standardize builds the design matrix (intercept column plus z-scored
// predictors) and returns the per-column means and standard deviations.
func standardize(rows [][]float64, p int) (X [][]float64, means, sds []float64) {
	n := len(rows)
	means = make([]float64, p)
	sds = make([]float64, p)
	for j := 0; j < p; j++ {
		col := make([]float64, n)
		for i := range rows {
			col[i] = rows[i][j+1]
		}
		means[j], sds[j] = stat.MeanStdDev(col, nil)
	}

	X = make([][]float64, n)
	for i := range rows {
		X[i] = make([]float64, p+1)
		X[i][0] = 1
		for j := 0; j < p; j++ {
			v := rows[i][j+1] - means[j]
			if sds[j] > 0 {
				v /= sds[j]
			}
			X[i][j+1] = v
		}
	}
	return X, means, sds
}

// fitLogistic runs batch gradient descent on the log-likelihood. Cohorts are
// small, so a fixed iteration count is enough for convergence.
func fitLogistic(X [][]float64, labels []bool, p int) []float64 {
	n := len(X)
	weights := make([]float64, p+1)
	grad := make([]float64, p+1)
	for iter := 0; iter < logisticIterations; iter++ {
		for j := range grad {
			grad[j] = 0
		}
		for i := 0; i < n; i++ {
			pred := sigmoid(dot(weights, X[i]))
			target := 0.0
			if labels[i] {
				target = 1.0
			}
			diff := target - pred
			for j := range grad {
				grad[j] += diff * X[i][j]
			}
		}
		for j := range weights {
			weights[j] += logisticRate * grad[j] / float64(n)
		}
	}
	return weights
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// rocAUC computes the area under the ROC curve for the scored cases.
func rocAUC(scores []float64, labels []bool) float64 {
	n := len(scores)
	y := make([]float64, n)
	classes := make([]bool, n)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })
	for i, k := range idx {
		y[i] = scores[k]
		classes[i] = labels[k]
	}

	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}
