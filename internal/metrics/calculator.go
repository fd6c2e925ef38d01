// Package metrics computes the fixed catalogue of per-trial scalar metrics
// over valid strides. Every record carries provenance (strides used, strides
// excluded) and an explicit Missing flag: an undefined metric is reported as
// missing, never as zero or a silent NaN.
package metrics

import (
	"math"

	"github.com/montanaflynn/stats"

	"gaitlab/domain/core"
	"gaitlab/domain/gait"
	"gaitlab/domain/metrics"
)

// Calculator computes metric records for trials that passed the filter
// engine. It is stateless apart from the batch ID stamped onto provenance.
type Calculator struct {
	batchID core.BatchID
}

// NewCalculator creates a calculator for one pipeline run.
func NewCalculator(batchID core.BatchID) *Calculator {
	return &Calculator{batchID: batchID}
}

// ComputeSubject computes all metric records for a subject's non-excluded
// trials. The returned slice is a complete, self-consistent set suitable for
// one atomic table commit.
func (c *Calculator) ComputeSubject(subject *gait.Subject) []metrics.Record {
	var out []metrics.Record
	for _, tt := range gait.AllTrialTypes {
		trial, ok := subject.Trials[tt]
		if !ok || trial.Excluded {
			continue
		}
		out = append(out, c.ComputeTrial(trial)...)
	}
	return out
}

// ComputeTrial computes the metric catalogue for one trial, stratified by
// condition. Trials using two target constants additionally get per-condition
// strata for the max and min constant families; pref trials (free walking,
// no target) are reported unstratified.
func (c *Calculator) ComputeTrial(trial *gait.Trial) []metrics.Record {
	valid := trial.ValidStrides()
	excluded := len(trial.Strides) - len(valid)

	out := c.computeStratum(trial, metrics.ConditionAll, valid, excluded)

	if trial.Type != gait.TrialPref {
		maxC, minC := trial.MaxConstant(), trial.MinConstant()
		if maxC != minC {
			maxStrides, minStrides := splitByConstant(valid, maxC)
			out = append(out, c.computeStratum(trial, metrics.ConditionMax, maxStrides, excluded)...)
			out = append(out, c.computeStratum(trial, metrics.ConditionMin, minStrides, excluded)...)
		}
	}
	return out
}

// computeStratum computes one condition stratum's records.
func (c *Calculator) computeStratum(trial *gait.Trial, cond metrics.Condition, strides []gait.StrideRecord, excluded int) []metrics.Record {
	var out []metrics.Record
	emit := func(name core.MetricName, value float64, defined bool) {
		out = append(out, metrics.Record{
			Key: metrics.Key{
				SubjectID: trial.SubjectID,
				TrialType: trial.Type,
				Metric:    name,
				Condition: cond,
			},
			Value:           value,
			Missing:         !defined,
			StridesUsed:     len(strides),
			StridesExcluded: excluded,
			BatchID:         c.batchID,
		})
	}

	v, ok := successRate(strides)
	emit(metrics.SuccessRate, v, ok)

	v, ok = meanStrideLength(strides)
	emit(metrics.MeanStrideLength, v, ok)

	v, ok = strideVariability(strides)
	emit(metrics.StrideVariability, v, ok)

	v, ok = asymmetry(strides)
	emit(metrics.Asymmetry, v, ok)

	v, ok = stridesBetweenSuccess(strides)
	emit(metrics.StridesBetweenSuccess, v, ok)

	if trial.Type == gait.TrialPref {
		// Free walking has no target constant: motor noise replaces error.
		v, ok = motorNoise(strides)
		emit(metrics.MotorNoise, v, ok)
	} else {
		v, ok = normalizedError(strides)
		emit(metrics.Error, v, ok)
	}

	return out
}

// splitByConstant partitions valid strides into max- and min-constant groups.
func splitByConstant(strides []gait.StrideRecord, maxConstant float64) (maxGroup, minGroup []gait.StrideRecord) {
	for _, s := range strides {
		if s.Constant == maxConstant {
			maxGroup = append(maxGroup, s)
		} else {
			minGroup = append(minGroup, s)
		}
	}
	return maxGroup, minGroup
}

// successRate is successes / valid strides.
func successRate(strides []gait.StrideRecord) (float64, bool) {
	if len(strides) == 0 {
		return 0, false
	}
	successes := 0
	for _, s := range strides {
		if s.Success {
			successes++
		}
	}
	return float64(successes) / float64(len(strides)), true
}

// meanStrideLength is the mean of the primary outcome.
func meanStrideLength(strides []gait.StrideRecord) (float64, bool) {
	data := finiteValues(strides, func(s gait.StrideRecord) float64 { return s.PrimaryOutcome })
	if len(data) == 0 {
		return 0, false
	}
	m, err := stats.Mean(data)
	if err != nil {
		return 0, false
	}
	return m, true
}

// strideVariability is the population standard deviation of the primary
// outcome.
func strideVariability(strides []gait.StrideRecord) (float64, bool) {
	data := finiteValues(strides, func(s gait.StrideRecord) float64 { return s.PrimaryOutcome })
	if len(data) == 0 {
		return 0, false
	}
	sd, err := stats.StandardDeviationPopulation(data)
	if err != nil {
		return 0, false
	}
	return sd, true
}

// normalizedError is the mean absolute deviation of the primary outcome from
// the target constant, normalized per stride by the target window width so
// error is comparable across trials with different windows.
func normalizedError(strides []gait.StrideRecord) (float64, bool) {
	var data []float64
	for _, s := range strides {
		width := s.UpperBound - s.LowerBound
		if !isFinite(s.PrimaryOutcome) || !isFinite(s.Constant) || !isFinite(width) || width <= 0 {
			continue
		}
		data = append(data, math.Abs(s.PrimaryOutcome-s.Constant)/width)
	}
	if len(data) == 0 {
		return 0, false
	}
	m, err := stats.Mean(data)
	if err != nil {
		return 0, false
	}
	return m, true
}

// asymmetry is the mean of (right-left)/(right+left), reported signed.
// Callers take the absolute value when only magnitude matters.
func asymmetry(strides []gait.StrideRecord) (float64, bool) {
	var data []float64
	for _, s := range strides {
		sum := s.RightStepLength + s.LeftStepLength
		if !isFinite(sum) || sum == 0 {
			continue
		}
		data = append(data, (s.RightStepLength-s.LeftStepLength)/sum)
	}
	if len(data) == 0 {
		return 0, false
	}
	m, err := stats.Mean(data)
	if err != nil {
		return 0, false
	}
	return m, true
}

// motorNoise is the coefficient of variation of step length during free
// walking: SD over mean of both legs' pooled step lengths.
func motorNoise(strides []gait.StrideRecord) (float64, bool) {
	var data []float64
	for _, s := range strides {
		for _, v := range []float64{s.RightStepLength, s.LeftStepLength} {
			if isFinite(v) && v > 0 {
				data = append(data, v)
			}
		}
	}
	if len(data) < 2 {
		return 0, false
	}
	mean, err := stats.Mean(data)
	if err != nil || mean == 0 {
		return 0, false
	}
	sd, err := stats.StandardDeviationPopulation(data)
	if err != nil {
		return 0, false
	}
	return sd / mean, true
}

// stridesBetweenSuccess is the mean gap in stride numbers between consecutive
// successful strides. Undefined with fewer than two successes: reported as
// missing, not zero.
func stridesBetweenSuccess(strides []gait.StrideRecord) (float64, bool) {
	var successNumbers []int
	for _, s := range strides {
		if s.Success {
			successNumbers = append(successNumbers, s.StrideNumber)
		}
	}
	if len(successNumbers) < 2 {
		return 0, false
	}
	var gaps []float64
	for i := 1; i < len(successNumbers); i++ {
		gaps = append(gaps, float64(successNumbers[i]-successNumbers[i-1]))
	}
	m, err := stats.Mean(gaps)
	if err != nil {
		return 0, false
	}
	return m, true
}

func finiteValues(strides []gait.StrideRecord, pick func(gait.StrideRecord) float64) []float64 {
	var out []float64
	for _, s := range strides {
		if v := pick(s); isFinite(v) {
			out = append(out, v)
		}
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
