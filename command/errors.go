package command

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrLatched matches a PredicateFault. A command that reported one never
	// executes again.
	ErrLatched = errors.New("command is latched closed")

	// ErrBodyPanic matches a BodyFault produced by a panicking body.
	ErrBodyPanic = errors.New("command body panicked")
)

// PredicateFault reports that the can-execute source of a command failed.
type PredicateFault struct {
	Err error
}

func (e *PredicateFault) Error() string {
	return "command: can-execute source failed: " + e.Err.Error()
}

func (e *PredicateFault) Unwrap() error {
	return e.Err
}

func (e *PredicateFault) Is(target error) bool {
	return target == ErrLatched
}

// BodyFault reports one failed execution. The command stays usable.
type BodyFault struct {
	ExecutionID uuid.UUID

	// Err is the error the body returned, or ErrBodyPanic.
	Err error

	// Value and Stack are set when the body panicked.
	Value any
	Stack string
}

func (e *BodyFault) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("command: execution %s panicked: %v", e.ExecutionID, e.Value)
	}
	return fmt.Sprintf("command: execution %s failed: %v", e.ExecutionID, e.Err)
}

func (e *BodyFault) Unwrap() []error {
	errs := []error{e.Err}
	if err, ok := e.Value.(error); ok {
		errs = append(errs, err)
	}
	return errs
}
