// Package browsertest provides an in-memory implementation of the browser
// automation surface for tests. Elements are registered by Target and resolved
// lazily, so a test can make them appear or vanish while an action is waiting.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xkilldash9x/shopflow/internal/browser"
)

// ErrTimeout is returned by element waits that run out of time.
var ErrTimeout = errors.New("browsertest: timeout exceeded")

const pollInterval = 5 * time.Millisecond

// ElementState is the observable state of a registered element.
type ElementState struct {
	Visible bool
	Text    string
	// Count is the number of matches. Zero means 1 when Visible, else 0.
	Count int
	// OnClick runs on the clicking goroutine after the element becomes visible.
	OnClick  func()
	ClickErr error
	FillErr  error
}

func (s ElementState) count() int {
	if s.Count > 0 {
		return s.Count
	}
	if s.Visible {
		return 1
	}
	return 0
}

type observer struct {
	fragment string
	fn       func(browser.Request)
}

// Page is a fake browser.Page.
type Page struct {
	mu        sync.Mutex
	url       string
	elements  map[string]ElementState
	values    map[string]string
	clicks    []string
	nextID    int
	dialogs   map[int]func(browser.Dialog)
	responses map[int]func(browser.Response)
	observers map[int]observer

	// GotoFunc replaces the default navigation, which just records the URL.
	GotoFunc      func(ctx context.Context, url string) error
	ScreenshotErr error
	ObserveErr    error
	CloseErr      error

	screenshots []string
	closed      bool
	onClose     func()
}

// NewPage creates an empty fake page.
func NewPage() *Page {
	return &Page{
		elements:  make(map[string]ElementState),
		values:    make(map[string]string),
		dialogs:   make(map[int]func(browser.Dialog)),
		responses: make(map[int]func(browser.Response)),
		observers: make(map[int]observer),
	}
}

var _ browser.Page = (*Page)(nil)

// Key is the lookup key for a target. The description is not part of it.
func Key(t browser.Target) string {
	return strings.Join([]string{t.Selector, t.Role, t.RoleName, t.Text, t.TestID, t.HasText}, "|")
}

// Set registers or replaces the state of target.
func (p *Page) Set(t browser.Target, s ElementState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[Key(t)] = s
}

// Show registers target as visible with text.
func (p *Page) Show(t browser.Target, text string) {
	p.Update(t, func(s *ElementState) {
		s.Visible = true
		s.Text = text
	})
}

// Hide marks target as not visible.
func (p *Page) Hide(t browser.Target) {
	p.Update(t, func(s *ElementState) { s.Visible = false })
}

// Remove detaches target.
func (p *Page) Remove(t browser.Target) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, Key(t))
}

// Update mutates the state of target, registering it if needed.
func (p *Page) Update(t browser.Target, fn func(*ElementState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.elements[Key(t)]
	fn(&s)
	p.elements[Key(t)] = s
}

// Value returns what was last filled into target.
func (p *Page) Value(t browser.Target) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[Key(t)]
}

// Clicks returns the keys of every successfully clicked target, in order.
func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Screenshots returns the paths passed to Screenshot.
func (p *Page) Screenshots() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.screenshots...)
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// ListenerCount reports how many dialog and response handlers are attached.
func (p *Page) ListenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dialogs) + len(p.responses)
}

// ObserverCount reports how many request observers are installed.
func (p *Page) ObserverCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.observers)
}

func (p *Page) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	gotoFn := p.GotoFunc
	p.mu.Unlock()

	if gotoFn != nil {
		if err := gotoFn(ctx, url); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Element(t browser.Target) browser.Element {
	return &element{page: p, target: t, key: Key(t)}
}

func (p *Page) OnDialog(fn func(browser.Dialog)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.dialogs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.dialogs, id)
	}
}

func (p *Page) OnResponse(fn func(browser.Response)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.responses[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.responses, id)
	}
}

func (p *Page) Observe(fragment string, fn func(browser.Request)) (func() error, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ObserveErr != nil {
		return nil, p.ObserveErr
	}
	id := p.nextID
	p.nextID++
	p.observers[id] = observer{fragment: fragment, fn: fn}
	return func() error {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.observers, id)
		return nil
	}, nil
}

func (p *Page) Screenshot(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ScreenshotErr != nil {
		return p.ScreenshotErr
	}
	p.screenshots = append(p.screenshots, path)
	return nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	p.closed = true
	onClose := p.onClose
	err := p.CloseErr
	p.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	return err
}

// EmitDialog raises a dialog and delivers it to every attached handler on the
// calling goroutine. With no handler attached the dialog is dismissed.
func (p *Page) EmitDialog(typ, message string) *Dialog {
	d := NewDialog(typ, message)
	p.Deliver(d)
	return d
}

// Deliver raises a prepared dialog the same way EmitDialog does.
func (p *Page) Deliver(d *Dialog) {
	handlers := p.dialogHandlers()
	if len(handlers) == 0 {
		_ = d.Dismiss()
		return
	}
	for _, fn := range handlers {
		fn(d)
	}
}

// EmitResponse delivers r to every attached response handler on the calling goroutine.
func (p *Page) EmitResponse(r *Response) {
	p.mu.Lock()
	ids := sortedIDs(p.responses)
	handlers := make([]func(browser.Response), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, p.responses[id])
	}
	p.mu.Unlock()

	for _, fn := range handlers {
		fn(r)
	}
}

// EmitRequest delivers a request to every observer whose fragment the URL contains.
func (p *Page) EmitRequest(method, url string) {
	p.mu.Lock()
	var matched []func(browser.Request)
	for _, id := range sortedIDs(p.observers) {
		if o := p.observers[id]; strings.Contains(url, o.fragment) {
			matched = append(matched, o.fn)
		}
	}
	p.mu.Unlock()

	req := &Request{method: method, url: url}
	for _, fn := range matched {
		fn(req)
	}
}

func (p *Page) dialogHandlers() []func(browser.Dialog) {
	p.mu.Lock()
	defer p.mu.Unlock()
	handlers := make([]func(browser.Dialog), 0, len(p.dialogs))
	for _, id := range sortedIDs(p.dialogs) {
		handlers = append(handlers, p.dialogs[id])
	}
	return handlers
}

func (p *Page) state(key string) (ElementState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.elements[key]
	return s, ok
}

func sortedIDs[V any](m map[int]V) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// element is a lazily resolved handle; every call re-reads the page.
type element struct {
	page   *Page
	target browser.Target
	key    string
}

// waitFor polls until cond holds for the current state or timeout passes.
func (e *element) waitFor(timeout time.Duration, what string, cond func(ElementState, bool) bool) (ElementState, error) {
	deadline := time.Now().Add(timeout)
	for {
		s, ok := e.page.state(e.key)
		if cond(s, ok) {
			return s, nil
		}
		if !time.Now().Before(deadline) {
			return s, fmt.Errorf("%w: %s waiting for %s", ErrTimeout, timeout, what)
		}
		time.Sleep(pollInterval)
	}
}

func visible(s ElementState, ok bool) bool { return ok && s.Visible }

func (e *element) Click(timeout time.Duration) error {
	s, err := e.waitFor(timeout, e.target.String()+" to be visible", visible)
	if err != nil {
		return err
	}
	if s.ClickErr != nil {
		return s.ClickErr
	}
	e.page.mu.Lock()
	e.page.clicks = append(e.page.clicks, e.key)
	e.page.mu.Unlock()
	if s.OnClick != nil {
		s.OnClick()
	}
	return nil
}

func (e *element) Fill(value string, timeout time.Duration) error {
	s, err := e.waitFor(timeout, e.target.String()+" to be editable", visible)
	if err != nil {
		return err
	}
	if s.FillErr != nil {
		return s.FillErr
	}
	e.page.mu.Lock()
	e.page.values[e.key] = value
	e.page.mu.Unlock()
	return nil
}

func (e *element) WaitVisible(timeout time.Duration) error {
	_, err := e.waitFor(timeout, e.target.String()+" to be visible", visible)
	return err
}

func (e *element) WaitHidden(timeout time.Duration) error {
	_, err := e.waitFor(timeout, e.target.String()+" to be hidden", func(s ElementState, ok bool) bool {
		return !ok || !s.Visible
	})
	return err
}

func (e *element) WaitText(text string, timeout time.Duration) error {
	_, err := e.waitFor(timeout, fmt.Sprintf("%s to contain %q", e.target, text), func(s ElementState, ok bool) bool {
		return ok && s.Visible && strings.Contains(s.Text, text)
	})
	return err
}

func (e *element) Text(timeout time.Duration) (string, error) {
	s, err := e.waitFor(timeout, e.target.String()+" to be attached", visible)
	if err != nil {
		return "", err
	}
	return s.Text, nil
}

func (e *element) Count() (int, error) {
	s, ok := e.page.state(e.key)
	if !ok {
		return 0, nil
	}
	return s.count(), nil
}
