package gait

// Fragment is a partial recording of a trial, produced when recording was
// interrupted and resumed in a separate file. Strides keep the numbers
// embedded in the raw file; the splicer renumbers after merging.
type Fragment struct {
	Filename  string
	SubjectID string
	Type      TrialType
	Strides   []StrideRecord
}

// FirstStride returns the embedded stride number of the fragment's first row.
// Fragments are ordered by this value, not by filename.
func (f Fragment) FirstStride() int {
	if len(f.Strides) == 0 {
		return 0
	}
	return f.Strides[0].StrideNumber
}

// LastStride returns the embedded stride number of the fragment's last row.
func (f Fragment) LastStride() int {
	if len(f.Strides) == 0 {
		return 0
	}
	return f.Strides[len(f.Strides)-1].StrideNumber
}
