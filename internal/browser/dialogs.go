// internal/browser/dialogs.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/shopflow/internal/observability"
	"github.com/xkilldash9x/shopflow/internal/oneshot"
)

// DialogExpectation decides what a missing dialog means to the caller.
type DialogExpectation int

const (
	// DialogOptional treats a missing dialog as a normal outcome.
	DialogOptional DialogExpectation = iota
	// DialogRequired treats a missing dialog as a failure.
	DialogRequired
)

func (e DialogExpectation) String() string {
	if e == DialogRequired {
		return "required"
	}
	return "optional"
}

// DialogMessage is a dialog captured and acknowledged by an armed listener.
type DialogMessage struct {
	Type       string
	Message    string
	ReceivedAt time.Time

	acceptErr error
}

// PendingDialog is the one-shot token returned by ArmDialog.
type PendingDialog struct {
	signal  *oneshot.Signal[DialogMessage]
	claimed atomic.Bool
	armedAt time.Time
}

// Synchronizer arms and resolves native dialogs.
type Synchronizer struct {
	logger *zap.Logger
}

// NewSynchronizer creates a dialog synchronizer.
func NewSynchronizer(logger *zap.Logger) *Synchronizer {
	return &Synchronizer{logger: logger.Named(observability.ComponentDialogs)}
}

// ArmDialog registers a listener for the next dialog on page. It must be called
// before the action that raises the dialog. The first dialog is accepted inside
// the listener; any further dialog seen by this arm is dismissed. The listener
// is detached when the token settles.
func (s *Synchronizer) ArmDialog(page Page, timeout time.Duration) *PendingDialog {
	p := &PendingDialog{
		signal:  oneshot.New[DialogMessage](timeout),
		armedAt: time.Now(),
	}

	remove := page.OnDialog(func(d Dialog) {
		select {
		case <-p.signal.Done():
			s.dismiss(d, "dialog arrived after the listener settled")
			return
		default:
		}
		if !p.claimed.CompareAndSwap(false, true) {
			s.dismiss(d, "dialog already captured by this listener")
			return
		}

		msg := DialogMessage{Type: d.Type(), Message: d.Message(), ReceivedAt: time.Now()}
		// An open native dialog blocks the page, so acknowledge before handing off.
		msg.acceptErr = d.Accept()
		s.logger.Debug("Dialog captured and accepted.",
			zap.String("type", msg.Type),
			zap.String("message", msg.Message),
			zap.Error(msg.acceptErr))
		p.signal.Fire(msg)
	})
	p.signal.OnSettle(remove)

	return p
}

func (s *Synchronizer) dismiss(d Dialog, reason string) {
	if err := d.Dismiss(); err != nil {
		s.logger.Warn("Failed to dismiss dialog.", zap.String("reason", reason), zap.Error(err))
		return
	}
	s.logger.Debug("Dialog dismissed.", zap.String("reason", reason), zap.String("message", d.Message()))
}

// Resolve waits for the armed dialog. A captured dialog whose message does not
// contain expectedSubstring (case-insensitive) fails with *UnexpectedSignal. An
// empty substring accepts any message. With no dialog in time, DialogOptional
// returns (nil, nil) and DialogRequired fails with *UnexpectedSignal wrapping
// ErrSignalTimeout.
func (s *Synchronizer) Resolve(ctx context.Context, p *PendingDialog, expectation DialogExpectation, expectedSubstring string) (*DialogMessage, error) {
	msg, err := p.signal.Await(ctx)
	p.signal.Cancel()

	switch {
	case errors.Is(err, oneshot.ErrTimeout):
		if expectation == DialogOptional {
			s.logger.Debug("No dialog arrived (optional).", zap.Duration("waited", time.Since(p.armedAt)))
			return nil, nil
		}
		s.logger.Warn("Required dialog did not arrive.", zap.String("expected", expectedSubstring))
		return nil, &UnexpectedSignal{ExpectedSubstring: expectedSubstring, Err: ErrSignalTimeout}
	case err != nil:
		return nil, fmt.Errorf("waiting for dialog: %w", err)
	}

	if msg.acceptErr != nil {
		return &msg, &ActionFailure{
			Operation: "accept_dialog",
			Cause:     fmt.Sprintf("dialog %q could not be accepted", msg.Message),
			Err:       msg.acceptErr,
		}
	}

	if !strings.Contains(strings.ToLower(msg.Message), strings.ToLower(expectedSubstring)) {
		s.logger.Warn("Dialog message mismatch.", zap.String("got", msg.Message), zap.String("expected", expectedSubstring))
		return &msg, &UnexpectedSignal{Got: msg.Message, ExpectedSubstring: expectedSubstring}
	}
	return &msg, nil
}

// Cancel releases the listener without waiting.
func (p *PendingDialog) Cancel() {
	p.signal.Cancel()
}
