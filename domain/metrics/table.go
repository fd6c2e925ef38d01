package metrics

import (
	"sort"
	"sync"

	"gaitlab/domain/core"
	"gaitlab/domain/gait"
)

// Metric catalogue. Every calculator output uses one of these names.
const (
	SuccessRate           core.MetricName = "success_rate"
	MeanStrideLength      core.MetricName = "mean_stride_length"
	StrideVariability     core.MetricName = "stride_variability"
	Error                 core.MetricName = "error"
	Asymmetry             core.MetricName = "asymmetry"
	MotorNoise            core.MetricName = "motor_noise"
	StridesBetweenSuccess core.MetricName = "strides_between_success"
)

// Condition stratifies metrics by which constant family the strides used.
type Condition string

const (
	ConditionAll Condition = "all"
	ConditionMax Condition = "max_constant"
	ConditionMin Condition = "min_constant"
)

// Key uniquely identifies one computed scalar in the table.
type Key struct {
	SubjectID core.SubjectID  `json:"subject_id"`
	TrialType gait.TrialType  `json:"trial_type"`
	Metric    core.MetricName `json:"metric"`
	Condition Condition       `json:"condition"`
}

// Record is one computed scalar plus its provenance.
// Missing reports an undefined metric (zero valid strides, or a metric whose
// definition yields no value); missing records never feed models.
type Record struct {
	Key     Key     `json:"key"`
	Value   float64 `json:"value"`
	Missing bool    `json:"missing"`

	// Provenance
	StridesUsed     int          `json:"strides_used"`
	StridesExcluded int          `json:"strides_excluded"`
	BatchID         core.BatchID `json:"batch_id,omitempty"`
}

// Table is the shared append-only keyed store for computed metrics.
// Writes are last-write-wins per key and committed transactionally per
// subject: a subject's entire metric set lands atomically, or not at all.
type Table struct {
	mu   sync.RWMutex
	rows map[Key]Record
}

// NewTable creates an empty metric table.
func NewTable() *Table {
	return &Table{rows: make(map[Key]Record)}
}

// CommitSubject atomically replaces all records for one subject.
// Every record must belong to subjectID or the whole batch is rejected.
func (t *Table) CommitSubject(subjectID core.SubjectID, records []Record) error {
	for _, r := range records {
		if r.Key.SubjectID != subjectID {
			return core.ErrPartialCommit
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range records {
		t.rows[r.Key] = r
	}
	return nil
}

// Get returns the record for a key, if present.
func (t *Table) Get(key Key) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rows[key]
	return r, ok
}

// Value returns a present, non-missing value for a key.
func (t *Table) Value(key Key) (float64, bool) {
	r, ok := t.Get(key)
	if !ok || r.Missing {
		return 0, false
	}
	return r.Value, true
}

// Len reports the number of stored records.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Subjects returns the distinct subject IDs present, sorted for stable output.
func (t *Table) Subjects() []core.SubjectID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := make(map[core.SubjectID]bool)
	for k := range t.rows {
		seen[k.SubjectID] = true
	}
	out := make([]core.SubjectID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Records returns a snapshot of all records, sorted by key for stable output.
func (t *Table) Records() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Record, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		if a.TrialType != b.TrialType {
			return a.TrialType < b.TrialType
		}
		if a.Metric != b.Metric {
			return a.Metric < b.Metric
		}
		return a.Condition < b.Condition
	})
	return out
}

// SubjectRecords returns the records belonging to one subject.
func (t *Table) SubjectRecords(id core.SubjectID) []Record {
	var out []Record
	for _, r := range t.Records() {
		if r.Key.SubjectID == id {
			out = append(out, r)
		}
	}
	return out
}

// CompleteCases gathers, for one trial type and condition, the subjects that
// have non-missing values for every requested metric. Rows align with the
// returned subject order; column j holds metric names[j].
func (t *Table) CompleteCases(trialType gait.TrialType, cond Condition, names []core.MetricName) ([]core.SubjectID, [][]float64) {
	var subjects []core.SubjectID
	var rows [][]float64
	for _, id := range t.Subjects() {
		row := make([]float64, len(names))
		complete := true
		for j, name := range names {
			v, ok := t.Value(Key{SubjectID: id, TrialType: trialType, Metric: name, Condition: cond})
			if !ok {
				complete = false
				break
			}
			row[j] = v
		}
		if complete {
			subjects = append(subjects, id)
			rows = append(rows, row)
		}
	}
	return subjects, rows
}
