package client

import (
	"fmt"
)

// ErrorKind classifies dependency errors.
type ErrorKind int

const (
	// KindRefused indicates a connection-level failure (refused, DNS, reset).
	KindRefused ErrorKind = iota
	// KindTimeout indicates the call exceeded its deadline.
	KindTimeout
	// KindRemote indicates a non-2xx response from a reachable dependency.
	KindRemote
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindRefused:
		return "refused"
	case KindTimeout:
		return "timeout"
	case KindRemote:
		return "remoteError"
	default:
		return "unknown"
	}
}

// DependencyError is a normalized failure from a downstream dependency.
type DependencyError struct {
	// Kind classifies the failure.
	Kind ErrorKind
	// Dependency is the logical dependency name.
	Dependency string
	// StatusCode is the HTTP status (0 for connection-level failures).
	StatusCode int
	// Message describes the error.
	Message string
	// Retryable indicates whether the operation may be retried by the caller.
	Retryable bool
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *DependencyError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("client: %s: %s (HTTP %d): %s", e.Dependency, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("client: %s: %s: %s", e.Dependency, e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *DependencyError) Unwrap() error { return e.Err }

// NewRefusedError creates a connection-level dependency error.
func NewRefusedError(dependency string, err error) *DependencyError {
	return &DependencyError{
		Kind:       KindRefused,
		Dependency: dependency,
		Message:    err.Error(),
		Retryable:  true,
		Err:        err,
	}
}

// NewTimeoutError creates a timeout dependency error.
func NewTimeoutError(dependency string, err error) *DependencyError {
	return &DependencyError{
		Kind:       KindTimeout,
		Dependency: dependency,
		Message:    err.Error(),
		Retryable:  true,
		Err:        err,
	}
}

// NewRemoteError creates a dependency error for a non-2xx response.
// 5xx and 429 responses are marked retryable; other statuses are not.
func NewRemoteError(dependency string, statusCode int, body []byte) *DependencyError {
	msg := fmt.Sprintf("unexpected status %d", statusCode)
	if len(body) > 0 {
		const maxBody = 256
		if len(body) > maxBody {
			body = body[:maxBody]
		}
		msg = fmt.Sprintf("unexpected status %d: %s", statusCode, body)
	}
	return &DependencyError{
		Kind:       KindRemote,
		Dependency: dependency,
		StatusCode: statusCode,
		Message:    msg,
		Retryable:  statusCode >= 500 || statusCode == 429,
	}
}
