package fedds

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection means a connection could not be opened.
	ErrConnection = errors.New("connection failed")

	// ErrFederationSwitch means the USE FEDERATION statement failed.
	ErrFederationSwitch = errors.New("federation switch failed")

	// ErrCommandExecution means a command failed.
	ErrCommandExecution = errors.New("command execution failed")

	// ErrDiscovery means the fan-out member probe failed. Errors of this
	// kind also match ErrCommandExecution.
	ErrDiscovery = errors.New("federation member discovery failed")
)

// Error reports a failed operation together with the statement it ran
// and the last driver error.
type Error struct {
	Kind      error
	Statement string
	Err       error
}

func (e *Error) Error() string {
	if e.Statement == "" {
		return fmt.Sprintf("fedds: %v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("fedds: %v: %q: %v", e.Kind, e.Statement, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Kind == ErrDiscovery {
		return []error{ErrDiscovery, ErrCommandExecution, e.Err}
	}
	return []error{e.Kind, e.Err}
}

// ExhaustedError is returned by Policy when every allowed attempt failed
// with a transient error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }
