// internal/browser/navigation.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shopflow/internal/config"
	"github.com/xkilldash9x/shopflow/internal/observability"
)

// Navigator loads pages, retrying transient load failures a bounded number of times.
type Navigator struct {
	logger *zap.Logger
	retry  config.RetryConfig

	// backoffFactory is swapped in tests.
	backoffFactory func() backoff.BackOff
}

// NewNavigator creates a navigator using the configured retry budget.
func NewNavigator(logger *zap.Logger, retry config.RetryConfig) *Navigator {
	n := &Navigator{
		logger: logger.Named(observability.ComponentNavigation),
		retry:  retry,
	}
	n.backoffFactory = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(n.retry.Delay), uint64(n.retry.MaxRetries))
	}
	return n
}

// Goto navigates page to url. Each attempt waits at most timeout. A cancelled
// context stops retrying at once.
func (n *Navigator) Goto(ctx context.Context, page Page, url string, timeout time.Duration) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := page.Goto(ctx, url, timeout)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		n.logger.Warn("Navigation failed, retrying.",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(n.backoffFactory(), ctx), notify); err != nil {
		return &ActionFailure{
			Operation: fmt.Sprintf("goto(%s)", url),
			Cause:     fmt.Sprintf("page did not load after %d attempt(s)", attempt),
			Err:       err,
		}
	}
	n.logger.Debug("Navigated.", zap.String("url", url), zap.Int("attempts", attempt))
	return nil
}
