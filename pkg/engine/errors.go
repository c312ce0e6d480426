package engine

import (
	"errors"
	"fmt"
)

// Class classifies an engine error for recovery logic.
type Class string

const (
	// ClassHardware indicates a device access failure (open, describe,
	// read). Sampling failures substitute a zero value and continue;
	// open failures at worker start and access-denied reopen failures
	// abandon the worker.
	ClassHardware Class = "hardware"

	// ClassConfig indicates an unusable rule: an unparsable filter
	// pattern, a failed condition-pattern compile, a missing field.
	// The offending rule is dropped and matching continues.
	ClassConfig Class = "config"

	// ClassConcurrency indicates a synchronization primitive failure.
	// This should never occur in correct operation; the enclosing
	// operation aborts.
	ClassConcurrency Class = "concurrency"

	// ClassHandler indicates a handler spawn or wait failure. The
	// handler is treated as "did not run"; the engine clears the
	// active flag and resumes polling.
	ClassHandler Class = "handler"
)

// Error is a classified engine error with device and option context.
type Error struct {
	// Class is the error classification.
	Class Class

	// Message is the human-readable error message.
	Message string

	// Device is the device name the error concerns, if applicable.
	Device string

	// Option is the option index the error concerns, or -1.
	Option int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Device != "" {
		msg += fmt.Sprintf(" (device=%s", e.Device)
		if e.Option >= 0 {
			msg += fmt.Sprintf(", option=%d", e.Option)
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// WithDevice attaches the device name.
func (e *Error) WithDevice(name string) *Error {
	e.Device = name
	return e
}

// WithOption attaches the option index.
func (e *Error) WithOption(index int) *Error {
	e.Option = index
	return e
}

// NewHardwareError creates a hardware-class error.
func NewHardwareError(message string, err error) *Error {
	return &Error{Class: ClassHardware, Message: message, Option: -1, Err: err}
}

// NewConfigError creates a config-class error.
func NewConfigError(message string, err error) *Error {
	return &Error{Class: ClassConfig, Message: message, Option: -1, Err: err}
}

// NewHandlerError creates a handler-class error.
func NewHandlerError(message string, err error) *Error {
	return &Error{Class: ClassHandler, Message: message, Option: -1, Err: err}
}

// IsClass reports whether err is an engine error of the given class.
func IsClass(err error, class Class) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// Trigger request validation errors.
var (
	// ErrNoDevices reports a trigger request while no devices are known.
	ErrNoDevices = errors.New("engine: no devices")

	// ErrNoSuchDevice reports a trigger request for a device index out
	// of range.
	ErrNoSuchDevice = errors.New("engine: no such device")

	// ErrNoSuchAction reports a trigger request for an action index the
	// addressed device has no binding for.
	ErrNoSuchAction = errors.New("engine: no such action")
)
