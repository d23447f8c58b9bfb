// internal/browser/interception.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shopflow/internal/observability"
	"github.com/xkilldash9x/shopflow/internal/oneshot"
)

// Exchange is a response captured by an armed gate, with its body decoded.
type Exchange struct {
	URL         string
	Status      int
	ContentType string
	// Raw is the undecoded body. Field order is preserved here and lost in Body.
	Raw  []byte
	Body any
}

// PendingExchange is the one-shot token returned by ArmExchange.
type PendingExchange struct {
	gate     *Gate
	fragment string
	status   int
	signal   *oneshot.Signal[Response]
}

// Gate awaits and observes network traffic.
type Gate struct {
	logger *zap.Logger
}

// NewGate creates a network interception gate.
func NewGate(logger *zap.Logger) *Gate {
	return &Gate{logger: logger.Named(observability.ComponentInterception)}
}

// ArmExchange registers a response listener before navigation. The first
// response whose URL contains fragment and whose status equals status wins;
// later matches are ignored. The listener is detached when the token settles.
func (g *Gate) ArmExchange(page Page, fragment string, status int, timeout time.Duration) *PendingExchange {
	p := &PendingExchange{
		gate:     g,
		fragment: fragment,
		status:   status,
		signal:   oneshot.New[Response](timeout),
	}

	remove := page.OnResponse(func(r Response) {
		if !strings.Contains(r.URL(), fragment) || r.Status() != status {
			return
		}
		if p.signal.Fire(r) {
			g.logger.Debug("Matched response.", zap.String("url", r.URL()), zap.Int("status", r.Status()))
		}
	})
	p.signal.OnSettle(remove)

	g.logger.Debug("Exchange armed.", zap.String("fragment", fragment), zap.Int("status", status), zap.Duration("timeout", timeout))
	return p
}

// Await blocks until the armed response arrives and decodes its body as JSON.
// A non-JSON content type is logged and decoded anyway.
func (p *PendingExchange) Await(ctx context.Context) (*Exchange, error) {
	resp, err := p.signal.Await(ctx)
	p.signal.Cancel()

	switch {
	case errors.Is(err, oneshot.ErrTimeout):
		return nil, &InterceptionTimeout{URLFragment: p.fragment, ExpectedStatus: p.status, Err: ErrSignalTimeout}
	case err != nil:
		return nil, fmt.Errorf("waiting for response matching %q: %w", p.fragment, err)
	}

	ex := &Exchange{URL: resp.URL(), Status: resp.Status(), ContentType: resp.ContentType()}
	if !strings.Contains(strings.ToLower(ex.ContentType), "json") {
		p.gate.logger.Warn("Response is not declared as JSON; decoding anyway.",
			zap.String("url", ex.URL),
			zap.String("content_type", ex.ContentType))
	}

	raw, err := resp.Body()
	if err != nil {
		return nil, &ValidationFailure{Subject: "response " + ex.URL, Reason: "body could not be read", Err: err}
	}
	if !gjson.ValidBytes(raw) {
		return nil, &ValidationFailure{Subject: "response " + ex.URL, Reason: "body is not valid JSON"}
	}
	ex.Raw = raw
	ex.Body = gjson.ParseBytes(raw).Value()
	return ex, nil
}

// Cancel releases the listener without waiting.
func (p *PendingExchange) Cancel() {
	p.signal.Cancel()
}

// Observe installs a pass-through observer that logs every request whose URL
// contains fragment. Requests are continued unchanged. The returned func removes it.
func (g *Gate) Observe(page Page, fragment string) (stop func() error, err error) {
	stop, err = page.Observe(fragment, func(r Request) {
		g.logger.Info("Observed request.", zap.String("method", r.Method()), zap.String("url", r.URL()))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to install request observer for %q: %w", fragment, err)
	}
	return stop, nil
}
