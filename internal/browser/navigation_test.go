// internal/browser/navigation_test.go
package browser_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/shopflow/internal/browser"
	"github.com/xkilldash9x/shopflow/internal/browser/browsertest"
	"github.com/xkilldash9x/shopflow/internal/config"
)

func flakyPage(failures int32) (*browsertest.Page, *atomic.Int32) {
	var calls atomic.Int32
	page := browsertest.NewPage()
	page.GotoFunc = func(ctx context.Context, url string) error {
		if calls.Add(1) <= failures {
			return errors.New("net::ERR_CONNECTION_RESET")
		}
		return nil
	}
	return page, &calls
}

func TestNavigator_RetriesTransientFailures(t *testing.T) {
	nav := browser.NewNavigator(zaptest.NewLogger(t), config.RetryConfig{MaxRetries: 2, Delay: time.Millisecond})
	page, calls := flakyPage(2)

	require.NoError(t, nav.Goto(context.Background(), page, "https://shop.example.com/", time.Second))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "https://shop.example.com/", page.URL())
}

func TestNavigator_GivesUpAfterBudget(t *testing.T) {
	nav := browser.NewNavigator(zaptest.NewLogger(t), config.RetryConfig{MaxRetries: 1, Delay: time.Millisecond})
	page, calls := flakyPage(5)

	err := nav.Goto(context.Background(), page, "https://shop.example.com/", time.Second)
	var af *browser.ActionFailure
	require.ErrorAs(t, err, &af)
	assert.Contains(t, af.Cause, "after 2 attempt(s)")
	assert.Equal(t, int32(2), calls.Load())
}

func TestNavigator_ZeroRetries(t *testing.T) {
	nav := browser.NewNavigator(zaptest.NewLogger(t), config.RetryConfig{})
	page, calls := flakyPage(1)

	require.Error(t, nav.Goto(context.Background(), page, "https://shop.example.com/", time.Second))
	assert.Equal(t, int32(1), calls.Load())
}

func TestNavigator_CancelledContextStops(t *testing.T) {
	nav := browser.NewNavigator(zaptest.NewLogger(t), config.RetryConfig{MaxRetries: 5, Delay: time.Millisecond})
	page := browsertest.NewPage()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := nav.Goto(ctx, page, "https://shop.example.com/", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, page.URL())
}
