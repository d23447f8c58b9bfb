// internal/browser/pwadapter/launcher.go
package pwadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shopflow/internal/browser"
	"github.com/xkilldash9x/shopflow/internal/observability"
)

const (
	playwrightInstallTimeout = 5 * time.Minute
	launchTimeout            = 60 * time.Second
)

// chromiumArgs are added to every Chromium launch; they keep the browser stable in containers.
var chromiumArgs = []string{
	"--disable-gpu",
	"--no-sandbox",
	"--disable-dev-shm-usage",
}

// Launcher starts browsers through the Playwright driver.
type Launcher struct {
	logger *zap.Logger
}

var _ browser.Launcher = (*Launcher)(nil)

// New creates a Playwright-backed launcher.
func New(logger *zap.Logger) *Launcher {
	return &Launcher{logger: logger.Named(observability.ComponentPlaywright)}
}

// Launch starts the Playwright driver and a browser of the requested engine.
func (l *Launcher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Engine, error) {
	// 1. Start the driver. It blocks, so it runs under ctx in a goroutine.
	type started struct {
		pw  *playwright.Playwright
		err error
	}
	startCh := make(chan started, 1)
	go func() {
		pw, err := playwright.Run()
		startCh <- started{pw: pw, err: err}
	}()

	var pw *playwright.Playwright
	select {
	case s := <-startCh:
		if s.err != nil {
			return nil, fmt.Errorf("failed to start playwright driver: %w", s.err)
		}
		pw = s.pw
	case <-ctx.Done():
		// Reap the driver if it comes up after we gave up on it.
		go func() {
			if s := <-startCh; s.err == nil {
				_ = s.pw.Stop()
			}
		}()
		return nil, fmt.Errorf("timeout waiting for playwright driver: %w", ctx.Err())
	}

	// 2. Launch the browser on the selected engine.
	var bt playwright.BrowserType
	switch opts.Engine {
	case browser.Firefox:
		bt = pw.Firefox
	case browser.WebKit:
		bt = pw.WebKit
	default:
		bt = pw.Chromium
	}

	b, err := bt.Launch(launchOptions(opts))
	if err != nil {
		if stopErr := pw.Stop(); stopErr != nil {
			l.logger.Warn("Failed to stop playwright driver after launch failure.", zap.Error(stopErr))
		}
		return nil, fmt.Errorf("failed to launch %s: %w", opts.Engine, err)
	}

	return &engine{pw: pw, browser: b, name: bt.Name(), logger: l.logger}, nil
}

// launchOptions converts launch settings to Playwright options.
func launchOptions(opts browser.LaunchOptions) playwright.BrowserTypeLaunchOptions {
	lo := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Timeout:  playwright.Float(float64(launchTimeout.Milliseconds())),
		Args:     opts.Args,
	}
	if opts.Engine == browser.Chromium || opts.Engine == "" {
		lo.Args = append(append([]string{}, chromiumArgs...), opts.Args...)
	}
	if opts.Channel != "" {
		lo.Channel = playwright.String(opts.Channel)
	}
	if opts.SlowMo > 0 {
		lo.SlowMo = playwright.Float(float64(opts.SlowMo.Milliseconds()))
	}
	return lo
}

// contextOptions converts context settings to Playwright options.
func contextOptions(opts browser.ContextOptions) playwright.BrowserNewContextOptions {
	co := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(opts.IgnoreHTTPSErrors),
	}
	if opts.BaseURL != "" {
		co.BaseURL = playwright.String(opts.BaseURL)
	}
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		co.Viewport = &playwright.Size{Width: opts.ViewportWidth, Height: opts.ViewportHeight}
	}
	if opts.VideoDir != "" {
		co.RecordVideo = &playwright.RecordVideo{Dir: opts.VideoDir}
	}
	return co
}

// Install downloads the given browsers (all when empty), bounded by ctx.
func Install(ctx context.Context, browsers []string, logger *zap.Logger) error {
	logger.Info("Installing Playwright browsers...", zap.Strings("browsers", browsers))
	installCtx, cancel := context.WithTimeout(ctx, playwrightInstallTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- playwright.Install(&playwright.RunOptions{Browsers: browsers})
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to install playwright browsers: %w", err)
		}
		logger.Info("Playwright browsers installed.")
		return nil
	case <-installCtx.Done():
		return fmt.Errorf("timeout waiting for Playwright installation: %w", installCtx.Err())
	}
}

type engine struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	name    string
	logger  *zap.Logger
}

func (e *engine) Name() string    { return e.name }
func (e *engine) Version() string { return e.browser.Version() }

func (e *engine) NewContext(opts browser.ContextOptions) (browser.BrowserContext, error) {
	c, err := e.browser.NewContext(contextOptions(opts))
	if err != nil {
		return nil, err
	}
	return &browserContext{ctx: c, logger: e.logger}, nil
}

// Close closes the browser and then stops the driver, returning the first error.
func (e *engine) Close() error {
	browserErr := e.browser.Close()
	stopErr := e.pw.Stop()
	if browserErr != nil {
		return fmt.Errorf("failed to close browser: %w", browserErr)
	}
	if stopErr != nil {
		return fmt.Errorf("failed to stop playwright driver: %w", stopErr)
	}
	return nil
}

type browserContext struct {
	ctx    playwright.BrowserContext
	logger *zap.Logger
}

func (c *browserContext) NewPage() (browser.Page, error) {
	p, err := c.ctx.NewPage()
	if err != nil {
		return nil, err
	}
	return newPage(p, c.logger), nil
}

func (c *browserContext) Close() error {
	return c.ctx.Close()
}
