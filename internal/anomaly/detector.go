// Package anomaly flags physiologically implausible strides. Flags are data,
// not exceptions: a flagged stride keeps its row with is_valid=false and a
// reason, so diagnostics and re-analysis with other thresholds stay possible
// without reloading raw files.
package anomaly

import (
	"math"

	"gaitlab/domain/gait"
)

// Detector applies the per-trial step-length plausibility rules. Each trial
// supplies its own mean and standard deviation, so the threshold adapts to
// the subject's scale instead of using a global cutoff.
type Detector struct {
	sigma float64 // k in the k-sigma rule
}

// NewDetector creates a detector with the given k-sigma threshold.
// Non-positive k falls back to the default of 3.
func NewDetector(sigma float64) *Detector {
	if sigma <= 0 {
		sigma = 3.0
	}
	return &Detector{sigma: sigma}
}

// Scan marks invalid strides in place and returns the number flagged.
// A stride is invalid when either step length is missing/non-numeric,
// non-positive, or further than k standard deviations from the trial's own
// mean step length. The outlier test is leave-stride-out: the candidate
// stride's own values are excluded from the mean and deviation so a gross
// outlier cannot mask itself by inflating the spread.
func (d *Detector) Scan(trial *gait.Trial) int {
	// Pool both legs' usable values for the trial-level distribution.
	var sum, sumSq float64
	n := 0
	for _, s := range trial.Strides {
		for _, v := range []float64{s.RightStepLength, s.LeftStepLength} {
			if usable(v) {
				sum += v
				sumSq += v * v
				n++
			}
		}
	}

	flagged := 0
	for i := range trial.Strides {
		s := &trial.Strides[i]
		switch {
		case !s.StepLengthsUsable():
			s.IsValid = false
			s.InvalidReason = gait.ReasonNonNumeric
		case s.RightStepLength <= 0 || s.LeftStepLength <= 0:
			s.IsValid = false
			s.InvalidReason = gait.ReasonNonPositive
		case d.strideIsOutlier(s, sum, sumSq, n):
			s.IsValid = false
			s.InvalidReason = gait.ReasonOutlier
		default:
			s.IsValid = true
			s.InvalidReason = gait.ReasonNone
		}
		if !s.IsValid {
			flagged++
		}
	}
	return flagged
}

// strideIsOutlier tests a stride's legs against the distribution of the
// trial's pooled step lengths with the stride's own values removed.
func (d *Detector) strideIsOutlier(s *gait.StrideRecord, sum, sumSq float64, n int) bool {
	looSum, looSumSq, looN := sum, sumSq, n
	for _, v := range []float64{s.RightStepLength, s.LeftStepLength} {
		if usable(v) {
			looSum -= v
			looSumSq -= v * v
			looN--
		}
	}
	if looN < 3 {
		// Too few remaining values to estimate spread.
		return false
	}

	mean := looSum / float64(looN)
	variance := looSumSq/float64(looN) - mean*mean
	if variance < 0 {
		variance = 0
	}
	sd := math.Sqrt(variance)

	for _, v := range []float64{s.RightStepLength, s.LeftStepLength} {
		dev := math.Abs(v - mean)
		if sd == 0 {
			// Identical remaining values: any deviation at all is implausible.
			if dev > 1e-9 {
				return true
			}
			continue
		}
		if dev >= d.sigma*sd {
			return true
		}
	}
	return false
}

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
