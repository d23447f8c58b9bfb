// internal/browser/surface.go
package browser

import (
	"context"
	"time"
)

// Target identifies one element on the page. Exactly one of Selector, Role,
// Text or TestID is expected to be set; HasText narrows any of them.
type Target struct {
	// Description is the human name used in logs and failure messages.
	Description string

	Selector string
	Role     string
	RoleName string
	Text     string
	TestID   string
	HasText  string
	Exact    bool
}

// CSS targets an element by CSS selector.
func CSS(description, selector string) Target {
	return Target{Description: description, Selector: selector}
}

// Role targets an element by its ARIA role and accessible name.
func Role(description, role, name string) Target {
	return Target{Description: description, Role: role, RoleName: name}
}

// Text targets an element by its visible text.
func Text(description, text string) Target {
	return Target{Description: description, Text: text}
}

// Containing returns a copy of t narrowed to elements containing text.
func (t Target) Containing(text string) Target {
	t.HasText = text
	return t
}

// String returns the description, or the raw locator when none was given.
func (t Target) String() string {
	switch {
	case t.Description != "":
		return t.Description
	case t.Selector != "":
		return t.Selector
	case t.Role != "":
		return t.Role + "[" + t.RoleName + "]"
	case t.TestID != "":
		return "testid=" + t.TestID
	default:
		return "text=" + t.Text
	}
}

// Page is the automation surface of one browser tab.
type Page interface {
	Goto(ctx context.Context, url string, timeout time.Duration) error
	URL() string
	Element(target Target) Element

	// OnDialog registers fn for every native dialog raised by the page. The
	// returned func detaches it. A dialog with no handler is dismissed.
	OnDialog(fn func(Dialog)) (remove func())
	// OnResponse registers fn for every network response. The returned func detaches it.
	OnResponse(fn func(Response)) (remove func())
	// Observe routes requests whose URL contains fragment through fn and continues
	// them unchanged.
	Observe(fragment string, fn func(Request)) (stop func() error, err error)

	Screenshot(path string) error
	Close() error
}

// Element is a lazily resolved handle for a Target. Every method waits at most timeout.
type Element interface {
	Click(timeout time.Duration) error
	Fill(value string, timeout time.Duration) error
	WaitVisible(timeout time.Duration) error
	WaitHidden(timeout time.Duration) error
	WaitText(text string, timeout time.Duration) error
	Text(timeout time.Duration) (string, error)
	Count() (int, error)
}

// Dialog is a native alert, confirm or prompt raised by the page.
type Dialog interface {
	Type() string
	Message() string
	Accept() error
	Dismiss() error
}

// Response is a completed network response.
type Response interface {
	URL() string
	Status() int
	ContentType() string
	Body() ([]byte, error)
}

// Request is an outgoing network request.
type Request interface {
	URL() string
	Method() string
}

// LaunchOptions configures the browser process.
type LaunchOptions struct {
	Engine   EngineKind
	Channel  string
	Headless bool
	SlowMo   time.Duration
	Args     []string
}

// ContextOptions configures an isolated browser context.
type ContextOptions struct {
	BaseURL           string
	ViewportWidth     int
	ViewportHeight    int
	VideoDir          string
	IgnoreHTTPSErrors bool
}

// Launcher starts a browser engine.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Engine, error)
}

// Engine is a running browser process.
type Engine interface {
	Name() string
	Version() string
	NewContext(opts ContextOptions) (BrowserContext, error)
	Close() error
}

// BrowserContext is an isolated cookie/storage jar inside an Engine.
type BrowserContext interface {
	NewPage() (Page, error)
	Close() error
}
