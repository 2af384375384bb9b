package logging

import (
	"errors"
	"fmt"
)

// OperationError annotates an error with the operation that produced it and,
// when known, the analysis it belongs to.
type OperationError struct {
	Operation  string
	AnalysisID string
	Err        error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.AnalysisID != "" {
		return fmt.Sprintf("%s (analysis_id=%s): %v", e.Operation, e.AnalysisID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps err with the operation and analysis id. A nil err
// stays nil, and an err that already carries the same operation is returned
// as is so retries do not stack identical frames.
func NewOperationError(operation, analysisID string, err error) error {
	if err == nil {
		return nil
	}
	var existing *OperationError
	if errors.As(err, &existing) && existing.Operation == operation {
		return err
	}
	return &OperationError{Operation: operation, AnalysisID: analysisID, Err: err}
}

// OperationOf reports the outermost operation recorded on err, if any.
func OperationOf(err error) string {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Operation
	}
	return ""
}
