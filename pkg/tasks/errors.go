// Package tasks provides the task registry and the runner that executes
// tasks across host sets.
package tasks

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a task failure for reporting.
type ErrorClass string

const (
	// ErrorClassTransient indicates a failure that may succeed on a later
	// run. Examples: connection timeouts, temporary remote unavailability.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates a non-recoverable failure.
	// Examples: unknown task, invalid parameters, command rejected.
	ErrorClassPermanent ErrorClass = "permanent"
)

// TaskError is a classified error with host and task context.
type TaskError struct {
	// Class is the error classification.
	Class ErrorClass

	// Message is the human-readable error message.
	Message string

	// Task is the task name, if applicable.
	Task string

	// Host is the host the failure occurred on, if applicable.
	Host string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	switch {
	case e.Task != "" && e.Host != "":
		return fmt.Sprintf("[%s] %s (task=%s, host=%s): %s", e.Class, e.Message, e.Task, e.Host, e.unwrapMessage())
	case e.Host != "":
		return fmt.Sprintf("[%s] %s (host=%s): %s", e.Class, e.Message, e.Host, e.unwrapMessage())
	default:
		return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
	}
}

// Unwrap returns the underlying error for error chain inspection.
func (e *TaskError) Unwrap() error {
	return e.Err
}

func (e *TaskError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *TaskError {
	return &TaskError{Class: ErrorClassTransient, Message: message, Err: err}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *TaskError {
	return &TaskError{Class: ErrorClassPermanent, Message: message, Err: err}
}

// WithTask adds task context to the error.
func (e *TaskError) WithTask(task string) *TaskError {
	e.Task = task
	return e
}

// WithHost adds host context to the error.
func (e *TaskError) WithHost(host string) *TaskError {
	e.Host = host
	return e
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *TaskError
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	var e *TaskError
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}
