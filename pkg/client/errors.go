package client

import (
	"fmt"
)

// BackendCallError is returned when the backend could not be reached or did
// not answer. Responses with error status codes are not errors.
type BackendCallError struct {
	Method string
	URL    string
	Class  ErrorClass
	Err    error
}

// Error implements the error interface.
func (e *BackendCallError) Error() string {
	if e.Class != "" {
		return fmt.Sprintf("backend %s error: %s %s: %v", e.Class, e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("backend error: %s %s: %v", e.Method, e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *BackendCallError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call was cut off by a deadline or cancellation.
func (e *BackendCallError) Timeout() bool {
	return e.Class == ErrorClassTimeout
}
