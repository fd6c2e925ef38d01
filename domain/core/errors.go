package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Ingestion errors
	ErrSchema           = errors.New("required column missing")
	ErrTrialTypeUnknown = errors.New("unknown trial type")
	ErrDuplicateSubject = errors.New("duplicate subject ID")
	ErrSubjectNotFound  = errors.New("subject not found")

	// Modeling errors
	ErrInsufficientData = errors.New("insufficient data for model fit")
	ErrClassImbalance   = errors.New("class imbalance below minimum group size")
	ErrUnknownPredictor = errors.New("unknown predictor metric")

	// Metric table errors
	ErrPartialCommit = errors.New("partial metric commit rejected")
)

// NewSchemaError reports the file and the columns that were absent.
func NewSchemaError(file string, missing []string) error {
	return fmt.Errorf("%w: file %s missing %v", ErrSchema, file, missing)
}

// NewTrialTypeError reports a filename whose prefix matches no known trial type.
func NewTrialTypeError(file string) error {
	return fmt.Errorf("%w: filename %s matches no known prefix", ErrTrialTypeUnknown, file)
}

// NewInsufficientDataError carries the predictor set and sample size that caused the failure.
func NewInsufficientDataError(predictors []string, complete, required int) error {
	return fmt.Errorf("%w: predictors %v, %d complete cases, need %d",
		ErrInsufficientData, predictors, complete, required)
}

// NewClassImbalanceError reports the offending class sizes.
func NewClassImbalanceError(positive, negative int) error {
	return fmt.Errorf("%w: %d positive, %d negative, need at least 2 each",
		ErrClassImbalance, positive, negative)
}

// Error checking helpers
func IsSchemaError(err error) bool {
	return errors.Is(err, ErrSchema)
}

func IsTrialTypeError(err error) bool {
	return errors.Is(err, ErrTrialTypeUnknown)
}

func IsModelError(err error) bool {
	return errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrClassImbalance) ||
		errors.Is(err, ErrUnknownPredictor)
}
