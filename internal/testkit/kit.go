// Package testkit provides synthetic cohort fixtures for tests: on-disk
// fragment files and metadata tables shaped exactly like the lab exports the
// ingestion adapters read, plus deterministic stride generators.
package testkit

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

// fragmentHeader matches the required trial columns in export order.
var fragmentHeader = []string{
	"Stride Number",
	"Success",
	"Constant",
	"Upper bound success",
	"Lower bound success",
	"Sum of gains and steps",
	"Right step length",
	"Left step length",
}

// FragmentSpec describes one synthetic fragment file.
type FragmentSpec struct {
	Filename    string  // e.g. "primer01.txt", prefix picks the trial type
	Start       int     // embedded stride number of the first row
	Count       int     // number of stride rows
	Constant    float64 // target distance for every row
	BoundWidth  float64 // upper-lower window around the constant
	BaseStep    float64 // nominal step length for both legs
	FailEvery   int     // every Nth stride is marked unsuccessful (0 = all succeed)
	OutlierRow  int     // 1-based row index given a gross step length (0 = none)
	OutlierStep float64 // step length for the outlier row
	Seed        int64   // jitter seed; same seed, same file
}

// WriteFragment writes a tab-delimited fragment file under dir.
func WriteFragment(dir string, spec FragmentSpec) (string, error) {
	rng := rand.New(rand.NewSource(spec.Seed))

	var b strings.Builder
	b.WriteString(strings.Join(fragmentHeader, "\t"))
	b.WriteString("\n")

	for i := 0; i < spec.Count; i++ {
		num := spec.Start + i
		success := 1
		if spec.FailEvery > 0 && (i+1)%spec.FailEvery == 0 {
			success = 0
		}

		jitter := (rng.Float64() - 0.5) * 0.5
		outcome := spec.Constant + jitter
		right := spec.BaseStep + jitter
		left := spec.BaseStep - jitter
		if spec.OutlierRow == i+1 {
			right = spec.OutlierStep
			left = spec.OutlierStep
		}

		fmt.Fprintf(&b, "%d\t%d\t%.2f\t%.2f\t%.2f\t%.3f\t%.3f\t%.3f\n",
			num, success, spec.Constant,
			spec.Constant+spec.BoundWidth/2, spec.Constant-spec.BoundWidth/2,
			outcome, right, left)
	}

	path := filepath.Join(dir, spec.Filename)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// SubjectRow is one metadata table entry.
type SubjectRow struct {
	ID          string
	DOB         string // e.g. "2015-03-01"
	SessionDate string // e.g. "2024-03-01"
	AgeYears    float64
	AgeMonths   int
}

// WriteMetadataCSV writes a metadata table the ingest reader accepts.
func WriteMetadataCSV(path string, rows []SubjectRow) error {
	var b strings.Builder
	b.WriteString("ID,DOB,Session Date,age_years,age_months\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%s,%s,%s,%.2f,%d\n", r.ID, r.DOB, r.SessionDate, r.AgeYears, r.AgeMonths)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// CohortSpec describes an on-disk synthetic cohort.
type CohortSpec struct {
	Subjects map[string][]FragmentSpec // subject ID -> fragment files
	Rows     []SubjectRow
}

// WriteCohort lays out a full data directory plus metadata file under root.
// It returns the data directory and the metadata path.
func WriteCohort(root string, spec CohortSpec) (dataDir, metadataPath string, err error) {
	dataDir = filepath.Join(root, "data")
	for id, fragments := range spec.Subjects {
		subjectDir := filepath.Join(dataDir, id)
		if err := os.MkdirAll(subjectDir, 0o755); err != nil {
			return "", "", err
		}
		for _, f := range fragments {
			if _, err := WriteFragment(subjectDir, f); err != nil {
				return "", "", err
			}
		}
	}
	metadataPath = filepath.Join(root, "subjects.csv")
	if err := WriteMetadataCSV(metadataPath, spec.Rows); err != nil {
		return "", "", err
	}
	return dataDir, metadataPath, nil
}
