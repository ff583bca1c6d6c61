package client

import (
	"errors"
	"testing"
)

func TestBackendCallError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *BackendCallError
		expected string
	}{
		{
			name: "with class",
			err: &BackendCallError{
				Method: "GET",
				URL:    "http://localhost:8080/x",
				Class:  ErrorClassNetwork,
				Err:    errors.New("connection refused"),
			},
			expected: "backend network error: GET http://localhost:8080/x: connection refused",
		},
		{
			name: "without class",
			err: &BackendCallError{
				Method: "POST",
				URL:    "http://localhost:8080/y",
				Err:    errors.New("boom"),
			},
			expected: "backend error: POST http://localhost:8080/y: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestBackendCallError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := &BackendCallError{Method: "GET", URL: "http://x", Err: underlying}

	if !errors.Is(err, underlying) {
		t.Error("errors.Is should find the wrapped error")
	}
	if err.Unwrap() != underlying {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), underlying)
	}
}

func TestBackendCallError_Timeout(t *testing.T) {
	if (&BackendCallError{Class: ErrorClassTimeout}).Timeout() != true {
		t.Error("timeout class should report Timeout()")
	}
	if (&BackendCallError{Class: ErrorClassNetwork}).Timeout() != false {
		t.Error("network class should not report Timeout()")
	}
}
