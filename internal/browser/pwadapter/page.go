// internal/browser/pwadapter/page.go
package pwadapter

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shopflow/internal/browser"
)

// page adapts a playwright.Page. One dialog and one response listener are
// attached per page; handlers registered through OnDialog and OnResponse are
// multiplexed from them so they can be detached individually.
type page struct {
	p      playwright.Page
	logger *zap.Logger

	mu        sync.Mutex
	nextID    int
	dialogs   map[int]func(browser.Dialog)
	responses map[int]func(browser.Response)
}

var _ browser.Page = (*page)(nil)

func newPage(p playwright.Page, logger *zap.Logger) *page {
	pg := &page{
		p:         p,
		logger:    logger,
		dialogs:   make(map[int]func(browser.Dialog)),
		responses: make(map[int]func(browser.Response)),
	}
	p.OnDialog(pg.dispatchDialog)
	p.OnResponse(pg.dispatchResponse)
	return pg
}

func (pg *page) dispatchDialog(d playwright.Dialog) {
	handlers := snapshot(&pg.mu, pg.dialogs)
	wrapped := &dialog{d: d}
	if len(handlers) == 0 {
		// Nobody is waiting for it; an open dialog would block the page.
		if err := d.Dismiss(); err != nil {
			pg.logger.Warn("Failed to dismiss unexpected dialog.", zap.Error(err))
		}
		pg.logger.Debug("Dismissed unexpected dialog.", zap.String("message", d.Message()))
		return
	}
	for _, fn := range handlers {
		fn(wrapped)
	}
}

func (pg *page) dispatchResponse(r playwright.Response) {
	handlers := snapshot(&pg.mu, pg.responses)
	wrapped := &response{r: r}
	for _, fn := range handlers {
		fn(wrapped)
	}
}

func snapshot[F any](mu *sync.Mutex, m map[int]F) []F {
	mu.Lock()
	defer mu.Unlock()
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]F, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func (pg *page) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := pg.p.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(millis(timeout)),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return err
}

func (pg *page) URL() string { return pg.p.URL() }

func (pg *page) Element(t browser.Target) browser.Element {
	return &element{loc: pg.locate(t)}
}

// locate builds the locator for t: role, test id, text or CSS, optionally narrowed by HasText.
func (pg *page) locate(t browser.Target) playwright.Locator {
	var loc playwright.Locator
	switch {
	case t.Role != "":
		opts := playwright.PageGetByRoleOptions{Exact: playwright.Bool(t.Exact)}
		if t.RoleName != "" {
			opts.Name = t.RoleName
		}
		loc = pg.p.GetByRole(playwright.AriaRole(t.Role), opts)
	case t.TestID != "":
		loc = pg.p.GetByTestId(t.TestID)
	case t.Text != "":
		loc = pg.p.GetByText(t.Text, playwright.PageGetByTextOptions{Exact: playwright.Bool(t.Exact)})
	default:
		loc = pg.p.Locator(t.Selector)
	}
	if t.HasText != "" {
		loc = loc.Filter(playwright.LocatorFilterOptions{HasText: t.HasText})
	}
	return loc
}

func (pg *page) OnDialog(fn func(browser.Dialog)) func() {
	return register(pg, pg.dialogs, fn)
}

func (pg *page) OnResponse(fn func(browser.Response)) func() {
	return register(pg, pg.responses, fn)
}

func register[F any](pg *page, m map[int]F, fn F) func() {
	pg.mu.Lock()
	defer pg.mu.Unlock()
	id := pg.nextID
	pg.nextID++
	m[id] = fn
	return func() {
		pg.mu.Lock()
		defer pg.mu.Unlock()
		delete(m, id)
	}
}

// Observe routes matching requests through fn and continues them unchanged.
func (pg *page) Observe(fragment string, fn func(browser.Request)) (func() error, error) {
	pattern := regexp.MustCompile(regexp.QuoteMeta(fragment))
	handler := func(route playwright.Route) {
		fn(route.Request())
		if err := route.Continue(); err != nil {
			pg.logger.Warn("Failed to continue observed request.", zap.String("url", route.Request().URL()), zap.Error(err))
		}
	}
	if err := pg.p.Route(pattern, handler); err != nil {
		return nil, err
	}
	return func() error { return pg.p.Unroute(pattern) }, nil
}

func (pg *page) Screenshot(path string) error {
	_, err := pg.p.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

func (pg *page) Close() error {
	return pg.p.Close()
}

type element struct {
	loc playwright.Locator
}

func (e *element) Click(timeout time.Duration) error {
	return e.loc.First().Click(playwright.LocatorClickOptions{Timeout: playwright.Float(millis(timeout))})
}

func (e *element) Fill(value string, timeout time.Duration) error {
	return e.loc.First().Fill(value, playwright.LocatorFillOptions{Timeout: playwright.Float(millis(timeout))})
}

func (e *element) WaitVisible(timeout time.Duration) error {
	return e.loc.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(millis(timeout)),
	})
}

func (e *element) WaitHidden(timeout time.Duration) error {
	return e.loc.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateHidden,
		Timeout: playwright.Float(millis(timeout)),
	})
}

func (e *element) WaitText(text string, timeout time.Duration) error {
	return e.loc.Filter(playwright.LocatorFilterOptions{HasText: text}).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(millis(timeout)),
	})
}

func (e *element) Text(timeout time.Duration) (string, error) {
	return e.loc.First().InnerText(playwright.LocatorInnerTextOptions{Timeout: playwright.Float(millis(timeout))})
}

func (e *element) Count() (int, error) {
	return e.loc.Count()
}

type dialog struct {
	d playwright.Dialog
}

func (d *dialog) Type() string    { return d.d.Type() }
func (d *dialog) Message() string { return d.d.Message() }
func (d *dialog) Accept() error   { return d.d.Accept() }
func (d *dialog) Dismiss() error  { return d.d.Dismiss() }

type response struct {
	r playwright.Response
}

func (r *response) URL() string { return r.r.URL() }
func (r *response) Status() int { return r.r.Status() }

func (r *response) ContentType() string {
	return r.r.Headers()["content-type"]
}

// Body must not be called from inside a Playwright event handler; the driver
// delivers the reply on the same dispatch loop.
func (r *response) Body() ([]byte, error) {
	body, err := r.r.Body()
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", r.r.URL(), err)
	}
	return body, nil
}

// millis converts a wait budget to playwright milliseconds. Playwright reads 0
// as "no timeout", so any positive budget rounds up to at least 1ms.
func millis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return math.Max(1, math.Ceil(float64(d)/float64(time.Millisecond)))
}
