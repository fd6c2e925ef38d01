package ingest

// RawRow maps a trimmed header name to the cell value for one record.
type RawRow map[string]string

// RawTable is one raw tabular file after delimiter handling, before typing.
type RawTable struct {
	Filename string
	Headers  []string
	Rows     []RawRow
}

// Required columns for a trial fragment file. Normalization fails with a
// schema error naming every absent column.
var RequiredTrialColumns = []string{
	"Stride Number",
	"Success",
	"Constant",
	"Upper bound success",
	"Lower bound success",
	"Sum of gains and steps",
	"Right step length",
	"Left step length",
}

// Metadata table columns. ID must be unique across rows.
const (
	ColSubjectID   = "ID"
	ColDOB         = "DOB"
	ColSessionDate = "Session Date"
	ColAgeYears    = "age_years"
	ColAgeMonths   = "age_months"
)
