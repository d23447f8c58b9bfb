package browsertest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/xkilldash9x/shopflow/internal/browser"
)

// Launcher is a fake browser.Launcher that records every link it creates.
// Error fields may be changed between calls to simulate partial failures.
type Launcher struct {
	mu sync.Mutex

	LaunchErr  error
	ContextErr error
	PageErr    error
	// CloseErr is returned by every engine and context Close.
	CloseErr error
	// PageFactory builds the pages handed out. Defaults to NewPage.
	PageFactory func() *Page

	launches []browser.LaunchOptions
	contexts []browser.ContextOptions
	pages    []*Page

	closedEngines  atomic.Int32
	closedContexts atomic.Int32
	closedPages    atomic.Int32
}

var _ browser.Launcher = (*Launcher)(nil)

// NewLauncher creates a launcher whose pages come from factory (nil for NewPage).
func NewLauncher(factory func() *Page) *Launcher {
	return &Launcher{PageFactory: factory}
}

func (l *Launcher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	l.launches = append(l.launches, opts)
	return &engine{l: l, name: string(opts.Engine)}, nil
}

// Launches returns the options of every successful launch.
func (l *Launcher) Launches() []browser.LaunchOptions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]browser.LaunchOptions(nil), l.launches...)
}

// Contexts returns the options of every context created.
func (l *Launcher) Contexts() []browser.ContextOptions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]browser.ContextOptions(nil), l.contexts...)
}

// Pages returns every page handed out.
func (l *Launcher) Pages() []*Page {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Page(nil), l.pages...)
}

// Closed returns how many engines, contexts and pages were closed.
func (l *Launcher) Closed() (engines, contexts, pages int) {
	return int(l.closedEngines.Load()), int(l.closedContexts.Load()), int(l.closedPages.Load())
}

type engine struct {
	l    *Launcher
	name string
}

func (e *engine) Name() string    { return e.name }
func (e *engine) Version() string { return "fake" }

func (e *engine) NewContext(opts browser.ContextOptions) (browser.BrowserContext, error) {
	e.l.mu.Lock()
	defer e.l.mu.Unlock()
	if e.l.ContextErr != nil {
		return nil, e.l.ContextErr
	}
	e.l.contexts = append(e.l.contexts, opts)
	return &browserContext{l: e.l}, nil
}

func (e *engine) Close() error {
	e.l.closedEngines.Add(1)
	e.l.mu.Lock()
	defer e.l.mu.Unlock()
	return e.l.CloseErr
}

type browserContext struct {
	l *Launcher
}

func (c *browserContext) NewPage() (browser.Page, error) {
	c.l.mu.Lock()
	defer c.l.mu.Unlock()
	if c.l.PageErr != nil {
		return nil, c.l.PageErr
	}
	factory := c.l.PageFactory
	if factory == nil {
		factory = NewPage
	}
	p := factory()
	p.mu.Lock()
	p.onClose = func() { c.l.closedPages.Add(1) }
	p.mu.Unlock()
	c.l.pages = append(c.l.pages, p)
	return p, nil
}

func (c *browserContext) Close() error {
	c.l.closedContexts.Add(1)
	c.l.mu.Lock()
	defer c.l.mu.Unlock()
	return c.l.CloseErr
}
