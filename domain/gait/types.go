package gait

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gaitlab/domain/core"
)

// TrialType identifies one of the four behavioral block types.
type TrialType string

const (
	TrialVis1  TrialType = "vis1"  // primer block, target visible
	TrialInvis TrialType = "invis" // main block, target invisible
	TrialVis2  TrialType = "vis2"  // closing block, target visible again
	TrialPref  TrialType = "pref"  // free walking at preferred pace, no target
)

// AllTrialTypes lists the closed enumeration in canonical order.
var AllTrialTypes = []TrialType{TrialVis1, TrialInvis, TrialVis2, TrialPref}

// ParseTrialType infers the trial type from a fragment filename.
// Matching is a case-insensitive prefix check on the base name.
func ParseTrialType(filename string) (TrialType, error) {
	name := strings.ToLower(filename)
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}
	switch {
	case strings.HasPrefix(name, "primer"):
		return TrialVis1, nil
	case strings.HasPrefix(name, "trial"):
		return TrialInvis, nil
	case strings.HasPrefix(name, "vis"):
		return TrialVis2, nil
	case strings.HasPrefix(name, "pref"):
		return TrialPref, nil
	}
	return "", core.NewTrialTypeError(filename)
}

// IsValidTrialType reports whether s is one of the four closed variants.
func IsValidTrialType(s string) bool {
	switch TrialType(s) {
	case TrialVis1, TrialInvis, TrialVis2, TrialPref:
		return true
	}
	return false
}

// InvalidReason explains why a stride was flagged by the anomaly detector.
type InvalidReason string

const (
	ReasonNone        InvalidReason = ""
	ReasonNonPositive InvalidReason = "non_positive_step_length"
	ReasonOutlier     InvalidReason = "step_length_outlier"
	ReasonNonNumeric  InvalidReason = "non_numeric_step_length"
)

// StrideRecord is one row of motor output: the atomic unit of raw data.
// Validity is a tagged state, never row removal, so provenance survives
// into diagnostics and re-analysis with different thresholds.
type StrideRecord struct {
	StrideNumber    int     `json:"stride_number"`
	OriginalNumber  int     `json:"original_number"` // number before splice renumbering
	Success         bool    `json:"success"`
	Constant        float64 `json:"constant"`
	UpperBound      float64 `json:"upper_bound"`
	LowerBound      float64 `json:"lower_bound"`
	PrimaryOutcome  float64 `json:"primary_outcome"` // sum of gains and steps
	RightStepLength float64 `json:"right_step_length"`
	LeftStepLength  float64 `json:"left_step_length"`

	IsValid       bool          `json:"is_valid"`
	InvalidReason InvalidReason `json:"invalid_reason,omitempty"`
}

// StepLengthsUsable reports whether both step lengths parsed as finite numbers.
func (s StrideRecord) StepLengthsUsable() bool {
	return !math.IsNaN(s.RightStepLength) && !math.IsInf(s.RightStepLength, 0) &&
		!math.IsNaN(s.LeftStepLength) && !math.IsInf(s.LeftStepLength, 0)
}

// Trial is one behavioral block for one subject. Created by the normalizer
// and splicer; mutated only by the anomaly detector (validity flags) and the
// filter engine (inclusion), never deleted.
type Trial struct {
	SubjectID core.SubjectID `json:"subject_id"`
	Type      TrialType      `json:"trial_type"`
	Strides   []StrideRecord `json:"strides"`

	// Source fragments, in splice order. Single-fragment trials have one entry.
	Fragments []string `json:"fragments,omitempty"`

	Excluded bool `json:"excluded"`
}

// TargetSize is the narrowest target window (upper - lower) seen in the trial.
func (t *Trial) TargetSize() float64 {
	size := math.Inf(1)
	for _, s := range t.Strides {
		if w := s.UpperBound - s.LowerBound; w < size {
			size = w
		}
	}
	if math.IsInf(size, 1) {
		return 0
	}
	return size
}

// MaxConstant returns the largest target constant appearing in the trial.
func (t *Trial) MaxConstant() float64 {
	c := math.Inf(-1)
	for _, s := range t.Strides {
		if s.Constant > c {
			c = s.Constant
		}
	}
	if math.IsInf(c, -1) {
		return 0
	}
	return c
}

// MinConstant returns the smallest target constant appearing in the trial.
func (t *Trial) MinConstant() float64 {
	c := math.Inf(1)
	for _, s := range t.Strides {
		if s.Constant < c {
			c = s.Constant
		}
	}
	if math.IsInf(c, 1) {
		return 0
	}
	return c
}

// TrialOrder reports which constant family came first in stride order:
// "max_first" or "min_first". Trials with a single constant report "max_first".
func (t *Trial) TrialOrder() string {
	if len(t.Strides) == 0 {
		return ""
	}
	if t.Strides[0].Constant >= t.MaxConstant() {
		return "max_first"
	}
	return "min_first"
}

// ValidStrides returns the strides that survived anomaly masking.
func (t *Trial) ValidStrides() []StrideRecord {
	out := make([]StrideRecord, 0, len(t.Strides))
	for _, s := range t.Strides {
		if s.IsValid {
			out = append(out, s)
		}
	}
	return out
}

// ValidStrideCount counts strides with is_valid set.
func (t *Trial) ValidStrideCount() int {
	n := 0
	for _, s := range t.Strides {
		if s.IsValid {
			n++
		}
	}
	return n
}

// Subject holds identity and demographics for one participant.
// Created once per metadata row at load time; immutable thereafter.
type Subject struct {
	ID          core.SubjectID       `json:"id"`
	DateOfBirth time.Time            `json:"date_of_birth"`
	SessionDate time.Time            `json:"session_date"`
	AgeYears    float64              `json:"age_years"`
	AgeMonths   int                  `json:"age_months"`
	Trials      map[TrialType]*Trial `json:"trials"`
}

// NewSubject builds a subject, deriving ages from DOB and session date when
// the metadata table did not carry them.
func NewSubject(id core.SubjectID, dob, session time.Time, ageYears float64, ageMonths int) *Subject {
	if ageMonths == 0 && !dob.IsZero() && !session.IsZero() {
		_, ageMonths = core.AgeAt(dob, session)
	}
	if ageYears == 0 && ageMonths > 0 {
		ageYears = float64(ageMonths) / 12.0
	}
	return &Subject{
		ID:          id,
		DateOfBirth: dob,
		SessionDate: session,
		AgeYears:    ageYears,
		AgeMonths:   ageMonths,
		Trials:      make(map[TrialType]*Trial),
	}
}

// HasTrialTypes reports whether the subject has a non-excluded trial for
// every type in the required set.
func (s *Subject) HasTrialTypes(required []TrialType) bool {
	for _, tt := range required {
		trial, ok := s.Trials[tt]
		if !ok || trial.Excluded {
			return false
		}
	}
	return true
}

// TrialKey identifies one trial within a cohort.
type TrialKey struct {
	SubjectID core.SubjectID
	Type      TrialType
}

func (k TrialKey) String() string {
	return fmt.Sprintf("%s/%s", k.SubjectID, k.Type)
}
