package vm

import (
	"errors"
	"fmt"
)

// Failure signals shared by every fallible VM operation. Callers test them
// with errors.Is; operations wrap them with context.
var (
	// ErrAllocation reports that backing storage could not be acquired,
	// either because a configured limit was reached or growth failed.
	ErrAllocation = errors.New("allocation failed")

	// ErrInvalidArgument reports a nil operand, a wrong kind, or an object
	// that does not belong to the VM performing the operation.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTypeMismatch is the ErrInvalidArgument raised when an operation
	// is not defined for the kinds of its operands.
	ErrTypeMismatch = fmt.Errorf("%w: type mismatch", ErrInvalidArgument)

	// ErrFreed is the ErrInvalidArgument raised when an operation touches
	// an object that the collector has already reclaimed.
	ErrFreed = fmt.Errorf("%w: object already freed", ErrInvalidArgument)

	// ErrOutOfBounds reports an index outside [0, size).
	ErrOutOfBounds = errors.New("index out of bounds")

	// ErrEmptyStack reports a pop or peek on an empty stack.
	ErrEmptyStack = errors.New("empty stack")
)
