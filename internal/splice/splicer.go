// Package splice reconciles fragmented trial recordings into one contiguous
// stride sequence. Fragments are merged as intervals keyed by their embedded
// stride-number range, never by filename or discovery order: a trial that was
// physically interrupted resumes in a new file, and the embedded numbers are
// the only reliable chronology.
package splice

import (
	"fmt"
	"sort"

	"gaitlab/domain/core"
	"gaitlab/domain/gait"
)

// OverlapPolicy decides which fragment is authoritative when two fragments'
// stride-number ranges overlap. FirstWins is the default: later fragments are
// assumed continuations, not corrections.
type OverlapPolicy string

const (
	FirstWins   OverlapPolicy = "first_wins"
	LongestWins OverlapPolicy = "longest_wins"
	LatestWins  OverlapPolicy = "latest_wins"
)

// WarningKind classifies a splice diagnostic.
type WarningKind string

const (
	WarnOverlap WarningKind = "overlap"
	WarnGap     WarningKind = "gap"
)

// Warning is a non-fatal diagnostic emitted when fragment ranges overlap or
// leave a gap. It names the trial and the affected stride-number range.
type Warning struct {
	SubjectID core.SubjectID `json:"subject_id"`
	TrialType gait.TrialType `json:"trial_type"`
	Kind      WarningKind    `json:"kind"`
	FromNum   int            `json:"from"`
	ToNum     int            `json:"to"`
	Fragments []string       `json:"fragments"`
}

func (w Warning) String() string {
	return fmt.Sprintf("splice %s on %s/%s strides %d-%d (%v)",
		w.Kind, w.SubjectID, w.TrialType, w.FromNum, w.ToNum, w.Fragments)
}

// Splicer merges trial fragments under a configured overlap policy.
type Splicer struct {
	policy OverlapPolicy
}

// NewSplicer creates a splicer. An unrecognized policy falls back to FirstWins.
func NewSplicer(policy OverlapPolicy) *Splicer {
	switch policy {
	case FirstWins, LongestWins, LatestWins:
	default:
		policy = FirstWins
	}
	return &Splicer{policy: policy}
}

// mergedStride tracks the source fragment for each merged row so that the
// longest-wins policy can arbitrate overlaps after the fact.
type mergedStride struct {
	rec      gait.StrideRecord
	fragIdx  int
	fragLen  int
	fragName string
}

// Splice merges the fragments of one (subject, trial type) into a single
// trial. The merged sequence is renumbered to be strictly sequential starting
// at 1; original stride numbers survive in OriginalNumber as provenance.
// Returned warnings are diagnostics, never errors.
func (s *Splicer) Splice(subjectID core.SubjectID, trialType gait.TrialType, fragments []gait.Fragment) (*gait.Trial, []Warning) {
	frags := make([]gait.Fragment, 0, len(fragments))
	for _, f := range fragments {
		if len(f.Strides) > 0 {
			frags = append(frags, f)
		}
	}

	// Order by embedded stride-number range, filename as a deterministic
	// tie-break only.
	sort.SliceStable(frags, func(i, j int) bool {
		if frags[i].FirstStride() != frags[j].FirstStride() {
			return frags[i].FirstStride() < frags[j].FirstStride()
		}
		return frags[i].Filename < frags[j].Filename
	})

	var merged []mergedStride
	var warnings []Warning
	names := make([]string, 0, len(frags))

	for idx, f := range frags {
		names = append(names, f.Filename)
		if len(merged) == 0 {
			merged = appendFragment(merged, f, idx)
			continue
		}

		last := merged[len(merged)-1].rec.StrideNumber
		first := f.FirstStride()

		switch {
		case first > last+1:
			warnings = append(warnings, Warning{
				SubjectID: subjectID,
				TrialType: trialType,
				Kind:      WarnGap,
				FromNum:   last + 1,
				ToNum:     first - 1,
				Fragments: []string{merged[len(merged)-1].fragName, f.Filename},
			})
			merged = appendFragment(merged, f, idx)

		case first <= last:
			overlapEnd := f.LastStride()
			if overlapEnd > last {
				overlapEnd = last
			}
			warnings = append(warnings, Warning{
				SubjectID: subjectID,
				TrialType: trialType,
				Kind:      WarnOverlap,
				FromNum:   first,
				ToNum:     overlapEnd,
				Fragments: []string{merged[len(merged)-1].fragName, f.Filename},
			})
			merged = s.resolveOverlap(merged, f, idx)

		default:
			merged = appendFragment(merged, f, idx)
		}
	}

	trial := &gait.Trial{
		SubjectID: subjectID,
		Type:      trialType,
		Strides:   renumber(merged),
		Fragments: names,
	}
	return trial, warnings
}

func appendFragment(merged []mergedStride, f gait.Fragment, idx int) []mergedStride {
	for _, rec := range f.Strides {
		merged = append(merged, mergedStride{
			rec:      rec,
			fragIdx:  idx,
			fragLen:  len(f.Strides),
			fragName: f.Filename,
		})
	}
	return merged
}

// resolveOverlap merges an incoming fragment whose range intersects the
// already-merged tail, under the configured policy.
func (s *Splicer) resolveOverlap(merged []mergedStride, f gait.Fragment, idx int) []mergedStride {
	first := f.FirstStride()

	incomingWins := false
	switch s.policy {
	case LatestWins:
		incomingWins = true
	case LongestWins:
		// Compare against the fragment that produced the overlapping tail.
		tail := merged[len(merged)-1]
		incomingWins = len(f.Strides) > tail.fragLen
	case FirstWins:
		incomingWins = false
	}

	if incomingWins {
		// Drop previously merged rows inside the incoming range, then take
		// the incoming fragment whole.
		kept := merged[:0]
		for _, m := range merged {
			if m.rec.StrideNumber < first {
				kept = append(kept, m)
			}
		}
		return appendFragment(kept, f, idx)
	}

	// Existing rows are authoritative: drop the incoming fragment's entries
	// for stride numbers already covered.
	last := merged[len(merged)-1].rec.StrideNumber
	trimmed := gait.Fragment{Filename: f.Filename, SubjectID: f.SubjectID, Type: f.Type}
	for _, rec := range f.Strides {
		if rec.StrideNumber > last {
			trimmed.Strides = append(trimmed.Strides, rec)
		}
	}
	return appendFragment(merged, trimmed, idx)
}

// renumber rewrites stride numbers to be strictly sequential from 1,
// preserving relative order and keeping the raw numbers as provenance.
func renumber(merged []mergedStride) []gait.StrideRecord {
	out := make([]gait.StrideRecord, len(merged))
	for i, m := range merged {
		rec := m.rec
		rec.OriginalNumber = m.rec.StrideNumber
		rec.StrideNumber = i + 1
		out[i] = rec
	}
	return out
}
