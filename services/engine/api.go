package engine

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the engine, the pipeline and the transports.

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

const (
	CodeInsufficientData = "INSUFFICIENT_DATA"
	CodeMissingSelection = "MISSING_SELECTION"
	CodeInvalidConfig    = "INVALID_CONFIG"
	CodeNotFound         = "NOT_FOUND"
)

var (
	ErrInsufficientData = &APIError{Code: CodeInsufficientData, Message: "Not enough data to run"}
	ErrMissingSelection = &APIError{Code: CodeMissingSelection, Message: "No symbol selected or no data for symbol"}
	ErrInvalidConfig    = &APIError{Code: CodeInvalidConfig, Message: "Invalid configuration"}
	ErrNotFound         = &APIError{Code: CodeNotFound, Message: "Resource not found"}
)

func (e *APIError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Details)
}

// Is matches on Code so detailed copies still match the sentinels.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// WithDetails returns a copy of e carrying details.
func (e *APIError) WithDetails(format string, args ...any) *APIError {
	c := *e
	c.Details = fmt.Sprintf(format, args...)
	return &c
}

// AsAPIError extracts the APIError from err, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
