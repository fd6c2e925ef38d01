package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TrialReader reads tab-delimited trial fragment files from a subject-keyed
// directory tree. It is a thin wrapper: all typing and validation happens in
// the normalizer.
type TrialReader struct {
	dataDir string
}

// NewTrialReader creates a reader rooted at the cohort data directory.
func NewTrialReader(dataDir string) *TrialReader {
	return &TrialReader{dataDir: dataDir}
}

// SubjectDirs lists the per-subject directories under the data root. The
// directory name is the subject ID.
func (r *TrialReader) SubjectDirs() ([]string, error) {
	entries, err := os.ReadDir(r.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory %s: %w", r.dataDir, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, nil
}

// FragmentFiles lists the candidate trial files for one subject.
func (r *TrialReader) FragmentFiles(subjectID string) ([]string, error) {
	dir := filepath.Join(r.dataDir, subjectID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read subject directory %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".txt", ".tsv", ".tab":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// ReadTable reads one tab-delimited file into a raw header/row table.
func (r *TrialReader) ReadTable(path string) (*RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trial file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1 // ragged rows are handled row by row

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read trial file %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("trial file %s must have a header row and at least one data row", path)
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	rows := make([]RawRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(RawRow, len(headers))
		for j, cell := range rec {
			if j < len(headers) {
				row[headers[j]] = strings.TrimSpace(cell)
			}
		}
		rows = append(rows, row)
	}

	return &RawTable{
		Filename: filepath.Base(path),
		Headers:  headers,
		Rows:     rows,
	}, nil
}
