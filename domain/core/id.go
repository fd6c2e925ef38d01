package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Falls back to v4 if v7 is not available (for compatibility)
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	// SubjectID is the unique participant key from the metadata table.
	SubjectID string
	// BatchID identifies one complete pipeline run over a cohort.
	BatchID ID
	// MetricName names one scalar in the metric catalogue.
	MetricName string
)

func (id SubjectID) String() string { return string(id) }
func (id BatchID) String() string   { return ID(id).String() }
func (m MetricName) String() string { return string(m) }

// NewBatchID mints an identifier for one pipeline run.
func NewBatchID() BatchID {
	return BatchID(NewID())
}

// ParseSubjectID parses a string into SubjectID
func ParseSubjectID(s string) (SubjectID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("subject ID cannot be empty")
	}
	return SubjectID(strings.TrimSpace(s)), nil
}
