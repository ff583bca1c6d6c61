package fingerprint

import "fmt"

// UnsupportedMethodError is returned when a request uses an HTTP method the
// proxy cannot replay.
type UnsupportedMethodError struct {
	Method string
}

// Error implements the error interface.
func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("http method %q is currently unsupported", e.Method)
}
