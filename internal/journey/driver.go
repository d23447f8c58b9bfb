// Package journey drives the purchase workflow of the store: login, product
// selection, cart, checkout and confirmation. Steps run strictly in order and
// each one checks the observable outcome of its actions before the journey
// advances. The first failing step halts the driver.
package journey

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/shopflow/internal/browser"
	"github.com/xkilldash9x/shopflow/internal/config"
	"github.com/xkilldash9x/shopflow/internal/observability"
)

// State is a position in the purchase journey. States only move forward.
type State int

const (
	StateStart State = iota
	StateAuthenticated
	StateProductSelected
	StateInCart
	StateCheckoutFormFilled
	StateOrderSubmitted
	StateConfirmed
)

var stateNames = [...]string{
	"start",
	"authenticated",
	"product_selected",
	"in_cart",
	"checkout_form_filled",
	"order_submitted",
	"confirmed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Step names one transition of the journey.
type Step string

const (
	StepValidateCatalog Step = "validate_catalog"
	StepAuthenticate    Step = "authenticate"
	StepSelectProduct   Step = "select_product"
	StepAddToCart       Step = "add_to_cart"
	StepFillCheckout    Step = "fill_checkout"
	StepSubmitOrder     Step = "submit_order"
	StepConfirmOrder    Step = "confirm_order"
)

// PageSource hands out the active page. *browser.Manager implements it.
type PageSource interface {
	AcquirePage(ctx context.Context) (browser.Page, error)
}

// Driver runs the journey steps against one page. It is not safe for concurrent use.
type Driver struct {
	pages   PageSource
	actions *browser.Actions
	dialogs *browser.Synchronizer
	gate    *browser.Gate
	nav     *browser.Navigator
	loc     Locators

	target   config.TargetConfig
	timeouts config.TimeoutConfig
	capture  config.CaptureConfig
	// artifactPrefix is prepended to failure capture file names.
	artifactPrefix string
	logger         *zap.Logger

	state   State
	product string
	halted  *StepFailure
}

// Option customizes a Driver.
type Option func(*Driver)

// WithLocators replaces the default selectors.
func WithLocators(loc Locators) Option {
	return func(d *Driver) { d.loc = loc }
}

// WithArtifactPrefix sets the prefix of failure screenshot names, usually the run id.
func WithArtifactPrefix(prefix string) Option {
	return func(d *Driver) { d.artifactPrefix = prefix }
}

// NewDriver creates a driver in StateStart.
func NewDriver(cfg *config.Config, pages PageSource, logger *zap.Logger, opts ...Option) *Driver {
	logger = logger.Named(observability.ComponentJourney)
	d := &Driver{
		pages:    pages,
		actions:  browser.NewActions(logger, cfg.Timeouts.Medium),
		dialogs:  browser.NewSynchronizer(logger),
		gate:     browser.NewGate(logger),
		nav:      browser.NewNavigator(logger, cfg.Retry),
		loc:      DefaultLocators(),
		target:   cfg.Target,
		timeouts: cfg.Timeouts,
		capture:  cfg.Capture,
		logger:   logger,
		state:    StateStart,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State reports where the journey stands.
func (d *Driver) State() State {
	return d.state
}

// Failure returns the step failure that halted the driver, or nil.
func (d *Driver) Failure() *StepFailure {
	return d.halted
}

// ValidateCatalog loads the store and checks that the product listing request
// returns at least min products. It may only run from StateStart and does not
// change the state.
func (d *Driver) ValidateCatalog(ctx context.Context, min int) ([]any, error) {
	var products []any
	expectation := fmt.Sprintf("a %d response from %q listing at least %d products",
		d.target.CatalogStatus, d.target.CatalogFragment, min)

	err := d.run(ctx, StepValidateCatalog, StateStart, StateStart, expectation, func(ctx context.Context, page browser.Page) error {
		// Arm before navigating; the listing request fires during page load.
		pending := d.gate.ArmExchange(page, d.target.CatalogFragment, d.target.CatalogStatus, d.timeouts.Long)
		defer pending.Cancel()

		stop, err := d.gate.Observe(page, d.target.CatalogFragment)
		if err != nil {
			return err
		}
		defer func() {
			if err := stop(); err != nil {
				d.logger.Debug("Failed to remove request observer.", zap.Error(err))
			}
		}()

		if err := d.nav.Goto(ctx, page, d.target.BaseURL, d.timeouts.ExtraLong); err != nil {
			return err
		}
		exchange, err := pending.Await(ctx)
		if err != nil {
			return err
		}
		products, err = browser.ValidateProductCollection(exchange.Raw, min)
		if err == nil {
			d.logger.Info("Catalog validated.", zap.Int("products", len(products)), zap.String("url", exchange.URL))
		}
		return err
	})
	return products, err
}

// Authenticate logs in. A dialog raised by the login is a rejection; the
// welcome banner greeting the user is success.
func (d *Driver) Authenticate(ctx context.Context, creds Credentials) error {
	expectation := fmt.Sprintf("welcome banner greeting %q", creds.Username)

	return d.run(ctx, StepAuthenticate, StateStart, StateAuthenticated, expectation, func(ctx context.Context, page browser.Page) error {
		if err := d.nav.Goto(ctx, page, d.target.BaseURL, d.timeouts.ExtraLong); err != nil {
			return err
		}
		if err := d.actions.Click(ctx, page, d.loc.LoginLink, d.timeouts.Medium); err != nil {
			return err
		}
		if err := d.actions.Fill(ctx, page, d.loc.Username, creds.Username, d.timeouts.Medium); err != nil {
			return err
		}
		if err := d.actions.Fill(ctx, page, d.loc.Password, creds.Password, d.timeouts.Medium); err != nil {
			return err
		}

		pending := d.dialogs.ArmDialog(page, d.timeouts.Short)
		if err := d.actions.Click(ctx, page, d.loc.LoginButton, d.timeouts.Medium); err != nil {
			pending.Cancel()
			return err
		}

		welcomeErr := d.actions.AssertContainsText(ctx, page, d.loc.Welcome, "Welcome "+creds.Username, d.timeouts.Medium)
		if welcomeErr == nil {
			// Only a dialog that already arrived can still count against the login.
			pending.Cancel()
		}
		msg, err := d.dialogs.Resolve(ctx, pending, browser.DialogOptional, "")
		if err != nil {
			return err
		}
		if msg != nil {
			return fmt.Errorf("%w: store answered with dialog %q", ErrLoginRejected, msg.Message)
		}
		return welcomeErr
	})
}

// SelectProduct opens the product page of product.
func (d *Driver) SelectProduct(ctx context.Context, product string) error {
	expectation := fmt.Sprintf("product page titled %q", product)

	return d.run(ctx, StepSelectProduct, StateAuthenticated, StateProductSelected, expectation, func(ctx context.Context, page browser.Page) error {
		if err := d.actions.Click(ctx, page, d.loc.ProductLink(product), d.timeouts.Medium); err != nil {
			return err
		}
		if err := d.actions.AssertContainsText(ctx, page, d.loc.ProductTitle, product, d.timeouts.Medium); err != nil {
			return err
		}
		d.product = product
		return nil
	})
}

// AddToCart adds the selected product. The store must confirm with a dialog
// containing addedMessage, and the cart must then hold exactly one row for the product.
func (d *Driver) AddToCart(ctx context.Context, addedMessage string) error {
	expectation := fmt.Sprintf("a dialog containing %q and one cart row for %q", addedMessage, d.product)

	return d.run(ctx, StepAddToCart, StateProductSelected, StateInCart, expectation, func(ctx context.Context, page browser.Page) error {
		pending := d.dialogs.ArmDialog(page, d.timeouts.Medium)
		if err := d.actions.Click(ctx, page, d.loc.AddToCart, d.timeouts.Medium); err != nil {
			pending.Cancel()
			return err
		}
		if _, err := d.dialogs.Resolve(ctx, pending, browser.DialogRequired, addedMessage); err != nil {
			return err
		}

		if err := d.actions.Click(ctx, page, d.loc.CartLink, d.timeouts.Medium); err != nil {
			return err
		}
		rows := d.loc.CartRows.Containing(d.product)
		if err := d.actions.AssertVisible(ctx, page, rows, d.timeouts.Long); err != nil {
			return err
		}
		n, err := d.actions.Count(ctx, page, rows)
		if err != nil {
			return err
		}
		if n != 1 {
			return &browser.ValidationFailure{
				Subject: "cart",
				Reason:  fmt.Sprintf("found %d rows for %q, expected exactly 1", n, d.product),
			}
		}
		return nil
	})
}

// FillCheckout opens the order form and fills it with details.
func (d *Driver) FillCheckout(ctx context.Context, details CheckoutDetails) error {
	return d.run(ctx, StepFillCheckout, StateInCart, StateCheckoutFormFilled, "an editable order form", func(ctx context.Context, page browser.Page) error {
		if err := d.actions.Click(ctx, page, d.loc.PlaceOrder, d.timeouts.Medium); err != nil {
			return err
		}
		fields := []struct {
			target browser.Target
			value  string
		}{
			{d.loc.Name, details.Name},
			{d.loc.Country, details.Country},
			{d.loc.City, details.City},
			{d.loc.Card, details.Card},
			{d.loc.Month, details.Month},
			{d.loc.Year, details.Year},
		}
		for _, f := range fields {
			if err := d.actions.Fill(ctx, page, f.target, f.value, d.timeouts.Medium); err != nil {
				return err
			}
		}
		return nil
	})
}

// SubmitOrder sends the order and waits for the confirmation to appear.
func (d *Driver) SubmitOrder(ctx context.Context) error {
	return d.run(ctx, StepSubmitOrder, StateCheckoutFormFilled, StateOrderSubmitted, "an order confirmation", func(ctx context.Context, page browser.Page) error {
		if err := d.actions.Click(ctx, page, d.loc.Purchase, d.timeouts.Medium); err != nil {
			return err
		}
		return d.actions.AssertVisible(ctx, page, d.loc.ConfirmationTitle, d.timeouts.Long)
	})
}

// Confirm checks that the confirmation title equals title and dismisses it.
func (d *Driver) Confirm(ctx context.Context, title string) error {
	expectation := fmt.Sprintf("confirmation titled %q", title)

	return d.run(ctx, StepConfirmOrder, StateOrderSubmitted, StateConfirmed, expectation, func(ctx context.Context, page browser.Page) error {
		got, err := d.actions.ReadText(ctx, page, d.loc.ConfirmationTitle, d.timeouts.Medium)
		if err != nil {
			return err
		}
		if strings.TrimSpace(got) != title {
			return &browser.ValidationFailure{
				Subject: "confirmation title",
				Reason:  fmt.Sprintf("got %q, expected %q", got, title),
			}
		}
		if err := d.actions.Click(ctx, page, d.loc.ConfirmOK, d.timeouts.Medium); err != nil {
			return err
		}
		return d.actions.AssertHidden(ctx, page, d.loc.ConfirmationTitle, d.timeouts.Medium)
	})
}

// run checks the precondition, executes fn and records the outcome.
func (d *Driver) run(ctx context.Context, step Step, from, to State, expectation string, fn func(context.Context, browser.Page) error) error {
	if d.halted != nil {
		return fmt.Errorf("step %s: %w", step, ErrHalted)
	}
	if d.state != from {
		return &OutOfOrderError{Step: step, Want: from, Have: d.state}
	}

	start := time.Now()
	d.logger.Info("Step started.", zap.String("step", string(step)), zap.Stringer("state", d.state))

	page, err := d.pages.AcquirePage(ctx)
	if err == nil {
		err = fn(ctx, page)
	}
	if err != nil {
		failure := &StepFailure{Step: step, Expectation: expectation, Cause: err}
		if page != nil {
			failure.Screenshot = d.captureFailure(page, step)
		}
		d.halted = failure
		d.logger.Error("Step failed.",
			zap.String("step", string(step)),
			zap.String("expected", expectation),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return failure
	}

	d.state = to
	d.logger.Info("Step passed.",
		zap.String("step", string(step)),
		zap.Stringer("state", d.state),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// captureFailure saves a screenshot when capture is on. It returns the path or "".
func (d *Driver) captureFailure(page browser.Page, step Step) string {
	if !d.capture.Screenshots {
		return ""
	}
	if err := os.MkdirAll(d.capture.ScreenshotDir, 0o755); err != nil {
		d.logger.Warn("Could not create screenshot directory.", zap.String("dir", d.capture.ScreenshotDir), zap.Error(err))
		return ""
	}

	name := string(step) + ".png"
	if d.artifactPrefix != "" {
		name = d.artifactPrefix + "-" + name
	}
	path := filepath.Join(d.capture.ScreenshotDir, name)
	if err := page.Screenshot(path); err != nil {
		d.logger.Warn("Failed to capture failure screenshot.", zap.String("path", path), zap.Error(err))
		return ""
	}
	d.logger.Info("Failure screenshot saved.", zap.String("path", path))
	return path
}
