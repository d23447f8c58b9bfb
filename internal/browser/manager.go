// internal/browser/manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/shopflow/internal/config"
	"github.com/xkilldash9x/shopflow/internal/observability"
)

// State is the position of the Manager in its engine -> context -> page chain.
type State int

const (
	StateUnstarted State = iota
	StateEngineReady
	StateContextReady
	StatePageReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateEngineReady:
		return "engine_ready"
	case StateContextReady:
		return "context_ready"
	case StatePageReady:
		return "page_ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// shutdownGracePeriod bounds each teardown step when the caller's context carries no deadline.
const shutdownGracePeriod = 15 * time.Second

// Manager owns the single engine, context and page used by a run. Links are
// created lazily and only when missing; Release tears them down in reverse order.
type Manager struct {
	launcher Launcher
	cfg      *config.Config
	logger   *zap.Logger

	mu     sync.Mutex
	state  State
	engine Engine
	bctx   BrowserContext
	page   Page
}

// NewManager creates a manager. Nothing is launched until AcquirePage is called.
func NewManager(cfg *config.Config, launcher Launcher, logger *zap.Logger) *Manager {
	m := &Manager{
		launcher: launcher,
		cfg:      cfg,
		logger:   logger.Named(observability.ComponentBrowserManager),
	}
	m.logger.Debug("Browser manager created (initialization deferred).")
	return m
}

// State reports the current chain state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AcquirePage returns the active page, creating only the links that are missing.
// Repeated calls return the same page. After Release a fresh chain is started.
func (m *Manager) AcquirePage(ctx context.Context) (Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateClosed {
		m.logger.Debug("Restarting browser chain after release.")
		m.state = StateUnstarted
	}

	// 1. Engine.
	if m.engine == nil {
		opts := m.launchOptions()
		m.logger.Info("Launching browser...",
			zap.String("engine", string(opts.Engine)),
			zap.String("channel", opts.Channel),
			zap.Bool("headless", opts.Headless))

		engine, err := m.launcher.Launch(ctx, opts)
		if err != nil {
			return nil, &ResourceLifecycleFailure{Stage: "engine", Cause: err}
		}
		m.engine = engine
		m.state = StateEngineReady
		m.logger.Info("Browser launched.", zap.String("name", engine.Name()), zap.String("version", engine.Version()))
	}

	// 2. Isolated context.
	if m.bctx == nil {
		if err := ctx.Err(); err != nil {
			return nil, &ResourceLifecycleFailure{Stage: "context", Cause: err}
		}
		bctx, err := m.engine.NewContext(m.contextOptions())
		if err != nil {
			return nil, &ResourceLifecycleFailure{Stage: "context", Cause: err}
		}
		m.bctx = bctx
		m.state = StateContextReady
	}

	// 3. Page.
	if m.page == nil {
		if err := ctx.Err(); err != nil {
			return nil, &ResourceLifecycleFailure{Stage: "page", Cause: err}
		}
		page, err := m.bctx.NewPage()
		if err != nil {
			return nil, &ResourceLifecycleFailure{Stage: "page", Cause: err}
		}
		m.page = page
		m.state = StatePageReady
		m.logger.Debug("Page ready.")
	}

	return m.page, nil
}

// Release closes page, context and engine in that order. Every step is
// attempted; failures are logged and never returned. Releasing an unstarted or
// closed manager does nothing.
func (m *Manager) Release(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateUnstarted || m.state == StateClosed {
		return
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, shutdownGracePeriod)
		defer cancel()
	}

	m.logger.Info("Releasing browser resources...")
	if m.page != nil {
		m.closeWithin(ctx, "page", m.page.Close)
		m.page = nil
	}
	if m.bctx != nil {
		m.closeWithin(ctx, "context", m.bctx.Close)
		m.bctx = nil
	}
	if m.engine != nil {
		m.closeWithin(ctx, "engine", m.engine.Close)
		m.engine = nil
	}
	m.state = StateClosed
	m.logger.Info("Browser resources released.")
}

// closeWithin runs closeFn and waits for it until ctx ends.
func (m *Manager) closeWithin(ctx context.Context, stage string, closeFn func() error) {
	done := make(chan error, 1)
	go func() {
		done <- closeFn()
	}()

	select {
	case err := <-done:
		if err != nil {
			m.logger.Warn("Error during teardown.", zap.String("stage", stage), zap.Error(err))
		}
	case <-ctx.Done():
		m.logger.Warn("Teardown step did not finish in time.", zap.String("stage", stage), zap.Error(ctx.Err()))
	}
}

func (m *Manager) launchOptions() LaunchOptions {
	sel := ResolveChannel(m.cfg.Browser.Channel)
	if sel.Fallback {
		m.logger.Warn("Unknown browser channel, falling back to chromium.", zap.String("channel", m.cfg.Browser.Channel))
	}
	return LaunchOptions{
		Engine:   sel.Engine,
		Channel:  sel.Channel,
		Headless: m.cfg.Browser.Headless,
		SlowMo:   m.cfg.Browser.SlowMo,
		Args:     m.cfg.Browser.Args,
	}
}

func (m *Manager) contextOptions() ContextOptions {
	opts := ContextOptions{
		BaseURL:           m.cfg.Target.BaseURL,
		ViewportWidth:     m.cfg.Browser.Viewport["width"],
		ViewportHeight:    m.cfg.Browser.Viewport["height"],
		IgnoreHTTPSErrors: m.cfg.Browser.IgnoreTLSErrors,
	}
	if m.cfg.Capture.Video {
		opts.VideoDir = m.cfg.Capture.VideoDir
	}
	return opts
}

// IsLifecycleFailure reports whether err came from acquiring the browser chain.
func IsLifecycleFailure(err error) bool {
	var lf *ResourceLifecycleFailure
	return errors.As(err, &lf)
}
