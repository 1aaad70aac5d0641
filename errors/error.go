package errors

import (
	"fmt"
)

// ParameterError occurs when a selector, option or argument is malformed
type ParameterError struct{ Message string }

// Error returns a textual representation of this ParameterError
func (e ParameterError) Error() string {
	return e.Message
}

// NewParameterError builds a ParameterError from a format string
func NewParameterError(format string, args ...interface{}) ParameterError {
	return ParameterError{Message: fmt.Sprintf(format, args...)}
}

// NoConnectionError occurs when a table's session is absent or has been released
type NoConnectionError struct{}

// Error returns a textual representation of this NoConnectionError
func (e NoConnectionError) Error() string {
	return "No connection is currently registered"
}

// RemoteOperationError occurs when a remote action completes but reports failure
type RemoteOperationError struct {
	Action     string
	Status     string
	Reason     string
	Severity   int
	StatusCode int
}

// Error returns the status text reported by the server
func (e RemoteOperationError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("%s failed with severity %d", e.Action, e.Severity)
	}
	return e.Status
}

// KeyNotFoundError occurs when a parameter, column or row label does not exist
type KeyNotFoundError struct{ Key string }

// Error returns a textual representation of this KeyNotFoundError
func (e KeyNotFoundError) Error() string {
	return fmt.Sprintf("Key %q does not exist", e.Key)
}

// IndexError occurs when a position falls outside of a table or frame
type IndexError struct {
	Index int
	Size  int
}

// Error returns a textual representation of this IndexError
func (e IndexError) Error() string {
	return fmt.Sprintf("Index %d is out of bounds for size %d", e.Index, e.Size)
}

// IncompatibleTypeError occurs when an operator is applied to a column of an unsupported type
type IncompatibleTypeError struct {
	Op    string
	Dtype string
}

// Error returns a textual representation of this IncompatibleTypeError
func (e IncompatibleTypeError) Error() string {
	return fmt.Sprintf("Operation %s is not supported for %s columns", e.Op, e.Dtype)
}
