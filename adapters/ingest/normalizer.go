package ingest

import (
	"math"
	"strconv"
	"strings"

	"gaitlab/domain/core"
	"gaitlab/domain/gait"
)

// Normalize converts one raw trial table into a typed, ordered fragment.
// The trial type is inferred from the filename prefix; a missing required
// column fails the whole file with a schema error naming every absent column.
// Pure transform: no side effects beyond object construction.
func Normalize(subjectID string, table *RawTable) (*gait.Fragment, error) {
	trialType, err := gait.ParseTrialType(table.Filename)
	if err != nil {
		return nil, err
	}

	if missing := missingColumns(table.Headers); len(missing) > 0 {
		return nil, core.NewSchemaError(table.Filename, missing)
	}

	strides := make([]gait.StrideRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		if isBlank(row) {
			continue
		}
		num, err := strconv.Atoi(row["Stride Number"])
		if err != nil {
			// A row without a parseable stride number cannot be ordered;
			// it is dropped rather than failing the file.
			continue
		}
		s := gait.StrideRecord{
			StrideNumber:    num,
			OriginalNumber:  num,
			Success:         parseBool(row["Success"]),
			Constant:        parseFloat(row["Constant"]),
			UpperBound:      parseFloat(row["Upper bound success"]),
			LowerBound:      parseFloat(row["Lower bound success"]),
			PrimaryOutcome:  parseFloat(row["Sum of gains and steps"]),
			RightStepLength: parseFloat(row["Right step length"]),
			LeftStepLength:  parseFloat(row["Left step length"]),
			IsValid:         true,
		}
		strides = append(strides, s)
	}

	return &gait.Fragment{
		Filename:  table.Filename,
		SubjectID: subjectID,
		Type:      trialType,
		Strides:   strides,
	}, nil
}

func missingColumns(headers []string) []string {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	var missing []string
	for _, col := range RequiredTrialColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

func isBlank(row RawRow) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

// parseFloat returns NaN for empty or non-numeric cells. NaN step lengths are
// flagged by the anomaly detector rather than failing ingestion.
func parseFloat(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y":
		return true
	}
	// Numeric truthiness: any non-zero value counts as success.
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v != 0
	}
	return false
}
