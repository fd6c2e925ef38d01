// Package filter applies subject- and trial-level inclusion predicates,
// producing a reduced view over the cohort. Predicates are conjunctive and
// commute: applying criteria A then B equals applying their conjunction in
// either order. An empty view is a valid, reportable outcome, never an error.
package filter

import (
	"sort"

	"gaitlab/domain/core"
	"gaitlab/domain/gait"
)

// Criteria holds the recognized inclusion predicates. Zero values disable the
// corresponding bound.
type Criteria struct {
	MinAge        float64 // inclusive lower bound on age_years
	MaxAge        float64 // inclusive upper bound on age_years
	MaxTargetSize float64 // upper bound on a trial's target window
	MinStrides    int     // inclusive lower bound on valid-stride count
	MaxStrides    int     // inclusive upper bound on valid-stride count
	RequiredTypes []gait.TrialType
}

// And returns the conjunction of two criteria sets. The tighter bound wins
// for each predicate; required type sets are unioned.
func (c Criteria) And(other Criteria) Criteria {
	out := c
	if other.MinAge > out.MinAge {
		out.MinAge = other.MinAge
	}
	if other.MaxAge > 0 && (out.MaxAge == 0 || other.MaxAge < out.MaxAge) {
		out.MaxAge = other.MaxAge
	}
	if other.MaxTargetSize > 0 && (out.MaxTargetSize == 0 || other.MaxTargetSize < out.MaxTargetSize) {
		out.MaxTargetSize = other.MaxTargetSize
	}
	if other.MinStrides > out.MinStrides {
		out.MinStrides = other.MinStrides
	}
	if other.MaxStrides > 0 && (out.MaxStrides == 0 || other.MaxStrides < out.MaxStrides) {
		out.MaxStrides = other.MaxStrides
	}
	seen := make(map[gait.TrialType]bool)
	var types []gait.TrialType
	for _, tt := range append(append([]gait.TrialType{}, c.RequiredTypes...), other.RequiredTypes...) {
		if !seen[tt] {
			seen[tt] = true
			types = append(types, tt)
		}
	}
	out.RequiredTypes = types
	return out
}

// View is the read-only result of filtering: the retained subjects in stable
// ID order. Trials excluded at the trial level carry Excluded=true but are
// never deleted.
type View struct {
	Subjects []*gait.Subject
}

// IsEmpty reports whether no subject satisfied all predicates.
func (v *View) IsEmpty() bool {
	return len(v.Subjects) == 0
}

// SubjectIDs lists the retained subject IDs.
func (v *View) SubjectIDs() []core.SubjectID {
	out := make([]core.SubjectID, len(v.Subjects))
	for i, s := range v.Subjects {
		out[i] = s.ID
	}
	return out
}

// Engine evaluates one criteria set against a cohort.
type Engine struct {
	criteria Criteria
}

// NewEngine creates a filter engine for the given criteria.
func NewEngine(criteria Criteria) *Engine {
	return &Engine{criteria: criteria}
}

// Apply marks excluded trials in place and returns the view of retained
// subjects. Trial-level predicates run before subject-level ones; because all
// predicates are conjunctive the result is order-independent.
func (e *Engine) Apply(subjects map[core.SubjectID]*gait.Subject) *View {
	ids := make([]core.SubjectID, 0, len(subjects))
	for id := range subjects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	view := &View{}
	for _, id := range ids {
		subj := subjects[id]
		for _, trial := range subj.Trials {
			if !e.trialIncluded(trial) {
				trial.Excluded = true
			}
		}
		if e.subjectIncluded(subj) {
			view.Subjects = append(view.Subjects, subj)
		}
	}
	return view
}

func (e *Engine) trialIncluded(t *gait.Trial) bool {
	if e.criteria.MaxTargetSize > 0 && t.TargetSize() > e.criteria.MaxTargetSize {
		return false
	}
	valid := t.ValidStrideCount()
	if e.criteria.MinStrides > 0 && valid < e.criteria.MinStrides {
		return false
	}
	if e.criteria.MaxStrides > 0 && valid > e.criteria.MaxStrides {
		return false
	}
	return true
}

func (e *Engine) subjectIncluded(s *gait.Subject) bool {
	if e.criteria.MinAge > 0 && s.AgeYears < e.criteria.MinAge {
		return false
	}
	if e.criteria.MaxAge > 0 && s.AgeYears > e.criteria.MaxAge {
		return false
	}
	// Partial presence of the required set excludes the whole subject.
	if len(e.criteria.RequiredTypes) > 0 && !s.HasTrialTypes(e.criteria.RequiredTypes) {
		return false
	}
	return true
}
