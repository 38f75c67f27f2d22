package incremental

import (
	"errors"
	"fmt"
)

var (
	// ErrContractViolation marks a caller breaking a builder or strategy contract.
	ErrContractViolation = errors.New("contract violation")

	// ErrWalkStopped is returned when the shared stop flag ended a walk early.
	ErrWalkStopped = errors.New("walk stopped before completion")

	// ErrStrategyMismatch is returned when two fingerprints were produced by different strategies.
	ErrStrategyMismatch = errors.New("fingerprinting strategies differ")
)

// TraversalError reports a directory whose children could not be listed.
// It aborts the whole walk.
type TraversalError struct {
	Path       string
	Unreadable bool
	Err        error
}

func (e *TraversalError) Error() string {
	if e.Unreadable {
		return fmt.Sprintf("could not list contents of directory '%s' as it is not readable", e.Path)
	}
	return fmt.Sprintf("could not list contents of '%s': %v", e.Path, e.Err)
}

func (e *TraversalError) Unwrap() error {
	return e.Err
}

// ContractError describes a specific contract violation.
type ContractError struct {
	Message string
}

func (e *ContractError) Error() string {
	return e.Message
}

func (e *ContractError) Unwrap() error {
	return ErrContractViolation
}

func contractErrorf(format string, args ...interface{}) error {
	return &ContractError{Message: fmt.Sprintf(format, args...)}
}
