package filter

import (
	"testing"
	"time"

	"gaitlab/domain/core"
	"gaitlab/domain/gait"
)

func subjectWithAge(id string, age float64, types ...gait.TrialType) *gait.Subject {
	// Dates are unused in these tests.
	s := gait.NewSubject(core.SubjectID(id), time.Time{}, time.Time{}, age, int(age*12))
	for _, tt := range types {
		trial := &gait.Trial{SubjectID: s.ID, Type: tt}
		for n := 1; n <= 20; n++ {
			trial.Strides = append(trial.Strides, gait.StrideRecord{
				StrideNumber: n,
				Constant:     50,
				UpperBound:   55,
				LowerBound:   45,
				IsValid:      true,
			})
		}
		s.Trials[tt] = trial
	}
	return s
}

// TestAgeBounds verifies inclusive min/max age filtering.
func TestAgeBounds(t *testing.T) {
	subjects := map[core.SubjectID]*gait.Subject{
		"S07": subjectWithAge("S07", 7, gait.TrialInvis),
		"S12": subjectWithAge("S12", 12, gait.TrialInvis),
		"S17": subjectWithAge("S17", 17, gait.TrialInvis),
	}

	view := NewEngine(Criteria{MinAge: 8, MaxAge: 16}).Apply(subjects)

	if len(view.Subjects) != 1 || view.Subjects[0].ID != "S12" {
		t.Fatalf("expected only S12 retained, got %v", view.SubjectIDs())
	}
}

// TestRequiredTrialTypes verifies partial presence excludes the whole subject.
func TestRequiredTrialTypes(t *testing.T) {
	subjects := map[core.SubjectID]*gait.Subject{
		"S01": subjectWithAge("S01", 10, gait.TrialInvis, gait.TrialVis1, gait.TrialVis2),
		"S02": subjectWithAge("S02", 10, gait.TrialInvis, gait.TrialPref),
	}

	view := NewEngine(Criteria{
		RequiredTypes: []gait.TrialType{gait.TrialPref, gait.TrialInvis},
	}).Apply(subjects)

	if len(view.Subjects) != 1 || view.Subjects[0].ID != "S02" {
		t.Fatalf("expected only S02 retained, got %v", view.SubjectIDs())
	}
}

// TestStrideCountBounds verifies valid-stride bounds mark trials excluded and
// interact with required types.
func TestStrideCountBounds(t *testing.T) {
	short := subjectWithAge("S01", 10, gait.TrialInvis)
	short.Trials[gait.TrialInvis].Strides = short.Trials[gait.TrialInvis].Strides[:5]

	subjects := map[core.SubjectID]*gait.Subject{
		"S01": short,
		"S02": subjectWithAge("S02", 10, gait.TrialInvis),
	}

	view := NewEngine(Criteria{
		MinStrides:    10,
		RequiredTypes: []gait.TrialType{gait.TrialInvis},
	}).Apply(subjects)

	if len(view.Subjects) != 1 || view.Subjects[0].ID != "S02" {
		t.Fatalf("expected only S02 retained, got %v", view.SubjectIDs())
	}
	if !short.Trials[gait.TrialInvis].Excluded {
		t.Error("short trial should be marked excluded, not deleted")
	}
	if len(short.Trials[gait.TrialInvis].Strides) != 5 {
		t.Error("filtering must not remove strides")
	}
}

// TestMaxTargetSize verifies the trial-level target window bound.
func TestMaxTargetSize(t *testing.T) {
	wide := subjectWithAge("S01", 10, gait.TrialInvis)
	for i := range wide.Trials[gait.TrialInvis].Strides {
		wide.Trials[gait.TrialInvis].Strides[i].UpperBound = 70
		wide.Trials[gait.TrialInvis].Strides[i].LowerBound = 30
	}

	subjects := map[core.SubjectID]*gait.Subject{"S01": wide}
	view := NewEngine(Criteria{MaxTargetSize: 12}).Apply(subjects)

	// Subject survives (no subject-level predicate) but the trial is excluded.
	if view.IsEmpty() {
		t.Fatal("subject should be retained without a required-types predicate")
	}
	if !wide.Trials[gait.TrialInvis].Excluded {
		t.Error("wide-window trial should be excluded")
	}
}

// TestFiltersCommute verifies A-then-B equals the conjunction in either order.
func TestFiltersCommute(t *testing.T) {
	build := func() map[core.SubjectID]*gait.Subject {
		return map[core.SubjectID]*gait.Subject{
			"S07": subjectWithAge("S07", 7, gait.TrialInvis, gait.TrialPref),
			"S12": subjectWithAge("S12", 12, gait.TrialInvis, gait.TrialPref),
			"S14": subjectWithAge("S14", 14, gait.TrialInvis),
		}
	}
	a := Criteria{MinAge: 8}
	b := Criteria{RequiredTypes: []gait.TrialType{gait.TrialPref}}

	// Sequential: apply a, then b over the survivors.
	sequential := func(first, second Criteria) []core.SubjectID {
		cohort := build()
		v := NewEngine(first).Apply(cohort)
		survivors := make(map[core.SubjectID]*gait.Subject)
		for _, s := range v.Subjects {
			survivors[s.ID] = s
		}
		return NewEngine(second).Apply(survivors).SubjectIDs()
	}

	ab := sequential(a, b)
	ba := sequential(b, a)
	conj := NewEngine(a.And(b)).Apply(build()).SubjectIDs()

	if len(ab) != len(conj) || len(ba) != len(conj) {
		t.Fatalf("filter orders disagree: a,b=%v b,a=%v conjunction=%v", ab, ba, conj)
	}
	for i := range conj {
		if ab[i] != conj[i] || ba[i] != conj[i] {
			t.Fatalf("filter orders disagree at %d: a,b=%v b,a=%v conjunction=%v", i, ab, ba, conj)
		}
	}
	if len(conj) != 1 || conj[0] != "S12" {
		t.Errorf("expected only S12 to satisfy both, got %v", conj)
	}
}

// TestEmptyViewIsNotError verifies an empty result is returned, not an error.
func TestEmptyViewIsNotError(t *testing.T) {
	subjects := map[core.SubjectID]*gait.Subject{
		"S05": subjectWithAge("S05", 5, gait.TrialInvis),
	}
	view := NewEngine(Criteria{MinAge: 18}).Apply(subjects)
	if !view.IsEmpty() {
		t.Errorf("expected empty view, got %v", view.SubjectIDs())
	}
}
