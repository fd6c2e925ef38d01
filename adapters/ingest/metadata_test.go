package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gaitlab/domain/core"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "subjects.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing csv: %v", err)
	}
	return path
}

func TestReadSubjects_CSV(t *testing.T) {
	path := writeCSV(t, `ID,DOB,Session Date,age_years,age_months
S01,2015-03-01,2024-03-01,9,108
S02,2010-06-15,2024-03-01,,
`)
	subjects, err := NewMetadataReader(path).ReadSubjects()
	if err != nil {
		t.Fatalf("ReadSubjects failed: %v", err)
	}
	if len(subjects) != 2 {
		t.Fatalf("expected 2 subjects, got %d", len(subjects))
	}

	s1 := subjects["S01"]
	if s1.AgeYears != 9 || s1.AgeMonths != 108 {
		t.Errorf("explicit ages should be kept, got %f/%d", s1.AgeYears, s1.AgeMonths)
	}

	// S02 has no age columns: derived from DOB and session date.
	s2 := subjects["S02"]
	if s2.AgeMonths != 164 {
		t.Errorf("expected 164 derived months for S02, got %d", s2.AgeMonths)
	}
	if s2.AgeYears < 13.6 || s2.AgeYears > 13.7 {
		t.Errorf("expected derived age near 13.67, got %f", s2.AgeYears)
	}
}

func TestReadSubjects_DuplicateIDRejected(t *testing.T) {
	path := writeCSV(t, `ID,DOB,Session Date,age_years,age_months
S01,2015-03-01,2024-03-01,9,108
S01,2015-03-01,2024-03-01,9,108
`)
	_, err := NewMetadataReader(path).ReadSubjects()
	if !errors.Is(err, core.ErrDuplicateSubject) {
		t.Fatalf("expected duplicate subject rejection, got %v", err)
	}
}

func TestReadSubjects_MissingIDColumn(t *testing.T) {
	path := writeCSV(t, `Name,DOB
Alice,2015-03-01
`)
	_, err := NewMetadataReader(path).ReadSubjects()
	if !core.IsSchemaError(err) {
		t.Fatalf("expected schema error for missing ID column, got %v", err)
	}
}

func TestReadSubjects_BlankRowsSkipped(t *testing.T) {
	path := writeCSV(t, `ID,DOB,Session Date,age_years,age_months
S01,2015-03-01,2024-03-01,9,108
,,,,
`)
	subjects, err := NewMetadataReader(path).ReadSubjects()
	if err != nil {
		t.Fatalf("ReadSubjects failed: %v", err)
	}
	if len(subjects) != 1 {
		t.Errorf("expected the blank row skipped, got %d subjects", len(subjects))
	}
}
