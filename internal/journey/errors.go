package journey

import (
	"errors"
	"fmt"
)

// ErrHalted is returned by every step called after a step has failed.
var ErrHalted = errors.New("journey halted by an earlier failure")

// ErrLoginRejected reports that the store answered the login with a dialog.
var ErrLoginRejected = errors.New("login rejected")

// StepFailure names the step, the condition it expected and what went wrong.
type StepFailure struct {
	Step        Step
	Expectation string
	Cause       error
	// Screenshot is the path of the failure capture, if one was taken.
	Screenshot string
}

func (e *StepFailure) Error() string {
	return fmt.Sprintf("step %s failed (expected %s): %v", e.Step, e.Expectation, e.Cause)
}

func (e *StepFailure) Unwrap() error { return e.Cause }

// OutOfOrderError is returned when a step is called from the wrong state.
type OutOfOrderError struct {
	Step Step
	Want State
	Have State
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("step %s requires state %s, journey is in %s", e.Step, e.Want, e.Have)
}
