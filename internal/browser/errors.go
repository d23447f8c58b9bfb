// internal/browser/errors.go
package browser

import (
	"fmt"

	"github.com/xkilldash9x/shopflow/internal/oneshot"
)

// ErrSignalTimeout reports that an armed dialog or exchange never arrived.
var ErrSignalTimeout = oneshot.ErrTimeout

// ActionFailure is returned when a single automation primitive does not complete.
type ActionFailure struct {
	Operation string
	Cause     string
	Err       error
}

func (e *ActionFailure) Error() string {
	return fmt.Sprintf("action %s failed: %s", e.Operation, e.Cause)
}

func (e *ActionFailure) Unwrap() error { return e.Err }

// UnexpectedSignal is returned when a dialog was required but absent, or its
// message did not contain the expected text.
type UnexpectedSignal struct {
	Got               string
	ExpectedSubstring string
	Err               error
}

func (e *UnexpectedSignal) Error() string {
	if e.Err != nil && e.Got == "" {
		return fmt.Sprintf("expected a dialog containing %q, none arrived: %v", e.ExpectedSubstring, e.Err)
	}
	return fmt.Sprintf("expected a dialog containing %q, got %q", e.ExpectedSubstring, e.Got)
}

func (e *UnexpectedSignal) Unwrap() error { return e.Err }

// InterceptionTimeout is returned when no response matched an armed exchange in time.
type InterceptionTimeout struct {
	URLFragment    string
	ExpectedStatus int
	Err            error
}

func (e *InterceptionTimeout) Error() string {
	return fmt.Sprintf("no response matching %q with status %d arrived in time", e.URLFragment, e.ExpectedStatus)
}

func (e *InterceptionTimeout) Unwrap() error { return e.Err }

// ResourceLifecycleFailure is returned when a link of the engine/context/page chain cannot be created.
type ResourceLifecycleFailure struct {
	Stage string
	Cause error
}

func (e *ResourceLifecycleFailure) Error() string {
	return fmt.Sprintf("failed to acquire %s: %v", e.Stage, e.Cause)
}

func (e *ResourceLifecycleFailure) Unwrap() error { return e.Cause }

// ValidationFailure is returned when observed data does not meet an expectation.
type ValidationFailure struct {
	Subject string
	Reason  string
	Err     error
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("%s: %s", e.Subject, e.Reason)
}

func (e *ValidationFailure) Unwrap() error { return e.Err }
