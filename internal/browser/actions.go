// internal/browser/actions.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/shopflow/internal/observability"
)

// ActionKind is an automation primitive.
type ActionKind string

const (
	ActionClick              ActionKind = "click"
	ActionFill               ActionKind = "fill"
	ActionAssertVisible      ActionKind = "assert_visible"
	ActionAssertHidden       ActionKind = "assert_hidden"
	ActionAssertContainsText ActionKind = "assert_contains_text"
	ActionReadText           ActionKind = "read_text"
	ActionCount              ActionKind = "count"
)

// Action is one primitive to perform against a Target.
type Action struct {
	Kind ActionKind
	// Value is the fill value or the expected text, depending on Kind.
	Value string
	// Timeout overrides the default wait. Zero means the default.
	Timeout time.Duration
}

// Outcome carries what a read-type action observed.
type Outcome struct {
	Text    string
	Count   int
	Elapsed time.Duration
}

// Actions wraps automation primitives with bounded waits and a uniform failure contract.
type Actions struct {
	logger         *zap.Logger
	defaultTimeout time.Duration
}

// NewActions creates an action wrapper whose waits default to defaultTimeout.
func NewActions(logger *zap.Logger, defaultTimeout time.Duration) *Actions {
	return &Actions{
		logger:         logger.Named(observability.ComponentActions),
		defaultTimeout: defaultTimeout,
	}
}

// Perform executes a against target on page. Any failure is an *ActionFailure.
func (a *Actions) Perform(ctx context.Context, page Page, target Target, act Action) (Outcome, error) {
	start := time.Now()
	op := fmt.Sprintf("%s(%s)", act.Kind, target)

	timeout, err := a.effectiveTimeout(ctx, act.Timeout)
	if err != nil {
		return Outcome{}, &ActionFailure{Operation: op, Cause: "context ended before the action started", Err: err}
	}

	a.logger.Debug("Performing action.",
		zap.String("kind", string(act.Kind)),
		zap.Stringer("target", target),
		zap.Duration("timeout", timeout))

	el := page.Element(target)
	var out Outcome

	switch act.Kind {
	case ActionClick:
		err = el.Click(timeout)
		if err != nil {
			err = a.fail(op, fmt.Sprintf("element %q was not clickable within %s", target, timeout), err)
		}
	case ActionFill:
		err = el.Fill(act.Value, timeout)
		if err != nil {
			err = a.fail(op, fmt.Sprintf("element %q was not editable within %s", target, timeout), err)
		}
	case ActionAssertVisible:
		err = el.WaitVisible(timeout)
		if err != nil {
			err = a.fail(op, fmt.Sprintf("element %q did not become visible within %s", target, timeout), err)
		}
	case ActionAssertHidden:
		err = el.WaitHidden(timeout)
		if err != nil {
			err = a.fail(op, fmt.Sprintf("element %q was still visible after %s", target, timeout), err)
		}
	case ActionAssertContainsText:
		err = el.WaitText(act.Value, timeout)
		if err != nil {
			err = a.fail(op, fmt.Sprintf("element %q did not contain %q within %s", target, act.Value, timeout), err)
		}
	case ActionReadText:
		var text string
		text, err = el.Text(timeout)
		switch {
		case err != nil:
			err = a.fail(op, fmt.Sprintf("could not read text of %q within %s", target, timeout), err)
		case strings.TrimSpace(text) == "":
			err = a.fail(op, fmt.Sprintf("element %q has no text content", target), nil)
		default:
			out.Text = text
		}
	case ActionCount:
		var n int
		n, err = el.Count()
		if err != nil {
			err = a.fail(op, fmt.Sprintf("could not count %q", target), err)
		}
		out.Count = n
	default:
		err = a.fail(op, fmt.Sprintf("unsupported action kind %q", act.Kind), nil)
	}

	out.Elapsed = time.Since(start)
	if err != nil {
		return out, err
	}
	a.logger.Debug("Action completed.", zap.String("operation", op), zap.Duration("elapsed", out.Elapsed))
	return out, nil
}

func (a *Actions) fail(op, cause string, err error) error {
	a.logger.Warn("Action failed.", zap.String("operation", op), zap.String("cause", cause), zap.Error(err))
	return &ActionFailure{Operation: op, Cause: cause, Err: err}
}

// effectiveTimeout is the requested timeout (or the default) capped by the context deadline.
func (a *Actions) effectiveTimeout(ctx context.Context, requested time.Duration) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	timeout := requested
	if timeout <= 0 {
		timeout = a.defaultTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return 0, context.DeadlineExceeded
	}
	return timeout, nil
}

// Click waits for target to be clickable and clicks it.
func (a *Actions) Click(ctx context.Context, page Page, target Target, timeout time.Duration) error {
	_, err := a.Perform(ctx, page, target, Action{Kind: ActionClick, Timeout: timeout})
	return err
}

// Fill waits for target to be editable and replaces its value.
func (a *Actions) Fill(ctx context.Context, page Page, target Target, value string, timeout time.Duration) error {
	_, err := a.Perform(ctx, page, target, Action{Kind: ActionFill, Value: value, Timeout: timeout})
	return err
}

// AssertVisible waits for target to become visible.
func (a *Actions) AssertVisible(ctx context.Context, page Page, target Target, timeout time.Duration) error {
	_, err := a.Perform(ctx, page, target, Action{Kind: ActionAssertVisible, Timeout: timeout})
	return err
}

// AssertHidden waits for target to be hidden or detached.
func (a *Actions) AssertHidden(ctx context.Context, page Page, target Target, timeout time.Duration) error {
	_, err := a.Perform(ctx, page, target, Action{Kind: ActionAssertHidden, Timeout: timeout})
	return err
}

// AssertContainsText waits for target to contain text.
func (a *Actions) AssertContainsText(ctx context.Context, page Page, target Target, text string, timeout time.Duration) error {
	_, err := a.Perform(ctx, page, target, Action{Kind: ActionAssertContainsText, Value: text, Timeout: timeout})
	return err
}

// ReadText returns the rendered text of target. Empty text is a failure.
func (a *Actions) ReadText(ctx context.Context, page Page, target Target, timeout time.Duration) (string, error) {
	out, err := a.Perform(ctx, page, target, Action{Kind: ActionReadText, Timeout: timeout})
	return out.Text, err
}

// Count returns how many elements match target. Zero is not a failure.
func (a *Actions) Count(ctx context.Context, page Page, target Target) (int, error) {
	out, err := a.Perform(ctx, page, target, Action{Kind: ActionCount})
	return out.Count, err
}
