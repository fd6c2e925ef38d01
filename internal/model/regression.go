// Package model fits the two supported statistical procedures over the
// metric table: ordinary least squares regression and binary classification.
// Both are pure functions of the table plus a spec; they never mutate the
// table and can be re-run with different predictor sets for comparison.
package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"gaitlab/domain/core"
	"gaitlab/domain/metrics"
	"gaitlab/domain/model"
)

// knownMetrics is the closed catalogue accepted as outcome or predictor.
var knownMetrics = map[core.MetricName]bool{
	metrics.SuccessRate:           true,
	metrics.MeanStrideLength:      true,
	metrics.StrideVariability:     true,
	metrics.Error:                 true,
	metrics.Asymmetry:             true,
	metrics.MotorNoise:            true,
	metrics.StridesBetweenSuccess: true,
}

// Engine fits models over one metric table.
type Engine struct {
	table *metrics.Table
}

// NewEngine creates a model engine bound to a metric table.
func NewEngine(table *metrics.Table) *Engine {
	return &Engine{table: table}
}

// completeCases validates the spec's metric names and gathers the subjects
// with non-missing values for outcome and every predictor. The outcome is
// column 0 of the returned rows.
func (e *Engine) completeCases(spec model.Spec) ([]core.SubjectID, [][]float64, error) {
	names := append([]core.MetricName{spec.Outcome}, spec.Predictors...)
	for _, n := range names {
		if !knownMetrics[n] {
			return nil, nil, core.ErrUnknownPredictor
		}
	}
	subjects, rows := e.table.CompleteCases(spec.TrialType, spec.Condition, names)
	return subjects, rows, nil
}

// FitRegression fits ordinary least squares predicting the outcome metric
// from the spec's predictor list. It reports per-predictor coefficients,
// standard errors, t statistics, p-values, and overall R-squared.
func (e *Engine) FitRegression(spec model.Spec) (*model.Result, error) {
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

	// Design matrix with an intercept column.
	X := mat.NewDense(n, p+1, nil)
	y := mat.NewVecDense(n, nil)
	for i, row := range rows {
		X.Set(i, 0, 1)
		for j := 0; j < p; j++ {
			X.Set(i, j+1, row[j+1])
		}
		y.SetVec(i, row[0])
	}

	var qr mat.QR
	qr.Factorize(X)
	beta := mat.NewVecDense(p+1, nil)
	if err := qr.SolveVecTo(beta, false, y); err != nil {
		return nil, core.NewInsufficientDataError(metricNames(spec.Predictors), n, required)
	}

	// Residual variance and coefficient covariance.
	fitted := mat.NewVecDense(n, nil)
	fitted.MulVec(X, beta)

	rss, tss := 0.0, 0.0
	meanY := mat.Sum(y) / float64(n)
	for i := 0; i < n; i++ {
		r := y.AtVec(i) - fitted.AtVec(i)
		rss += r * r
		d := y.AtVec(i) - meanY
		tss += d * d
	}

	df := float64(n - p - 1)
	sigma2 := rss / df

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return nil, core.NewInsufficientDataError(metricNames(spec.Predictors), n, required)
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	coefficient := func(idx int, name core.MetricName) model.Coefficient {
		est := beta.AtVec(idx)
		se := math.Sqrt(sigma2 * xtxInv.At(idx, idx))
		tv := 0.0
		pv := 1.0
		if se > 0 {
			tv = est / se
			pv = 2 * tDist.Survival(math.Abs(tv))
		}
		return model.Coefficient{Name: name, Estimate: est, StdErr: se, TValue: tv, PValue: pv}
	}

	result := &model.Result{
		Kind:       model.KindRegression,
		TrialType:  spec.TrialType,
		Condition:  spec.Condition,
		Outcome:    spec.Outcome,
		Intercept:  coefficient(0, "intercept"),
		SampleSize: n,
		Subjects:   subjects,
	}
	for j, name := range spec.Predictors {
		result.Coefficients = append(result.Coefficients, coefficient(j+1, name))
	}

	if tss > 0 {
		result.RSquared = 1 - rss/tss
		if n > p+1 {
			result.AdjRSquared = 1 - (rss/df)/(tss/float64(n-1))
		}
	}
	return result, nil
}

func metricNames(names []core.MetricName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}
