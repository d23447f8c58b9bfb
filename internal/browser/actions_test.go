// internal/browser/actions_test.go
package browser_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/shopflow/internal/browser"
	"github.com/xkilldash9x/shopflow/internal/browser/browsertest"
)

var (
	loginButton = browser.Role("login button", "button", "Log in")
	usernameBox = browser.CSS("username field", "#loginusername")
	welcome     = browser.CSS("welcome banner", "#nameofuser")
	cartRows    = browser.CSS("cart rows", "#tbodyid tr")
)

func newTestActions(t *testing.T) *browser.Actions {
	return browser.NewActions(zaptest.NewLogger(t), 200*time.Millisecond)
}

func TestActions_Click(t *testing.T) {
	a := newTestActions(t)
	page := browsertest.NewPage()
	clicked := false
	page.Set(loginButton, browsertest.ElementState{Visible: true, OnClick: func() { clicked = true }})

	require.NoError(t, a.Click(context.Background(), page, loginButton, 0))
	assert.True(t, clicked)
}

func TestActions_ClickWaitsForElement(t *testing.T) {
	a := newTestActions(t)
	page := browsertest.NewPage()
	go func() {
		time.Sleep(30 * time.Millisecond)
		page.Show(loginButton, "Log in")
	}()

	require.NoError(t, a.Click(context.Background(), page, loginButton, time.Second))
	assert.Len(t, page.Clicks(), 1)
}

func TestActions_FailureContract(t *testing.T) {
	a := newTestActions(t)
	page := browsertest.NewPage()

	err := a.Click(context.Background(), page, loginButton, 20*time.Millisecond)

	var af *browser.ActionFailure
	require.ErrorAs(t, err, &af)
	assert.Contains(t, af.Operation, "click")
	assert.Contains(t, af.Operation, "login button")
	assert.Contains(t, af.Cause, "not clickable within 20ms")
	assert.ErrorIs(t, err, browsertest.ErrTimeout, "the engine error stays reachable")
}

func TestActions_EngineErrorIsWrapped(t *testing.T) {
	a := newTestActions(t)
	page := browsertest.NewPage()
	detached := errors.New("element is detached")
	page.Set(loginButton, browsertest.ElementState{Visible: true, ClickErr: detached})

	err := a.Click(context.Background(), page, loginButton, 0)
	assert.ErrorIs(t, err, detached)
}

func TestActions_Fill(t *testing.T) {
	a := newTestActions(t)
	page := browsertest.NewPage()
	page.Show(usernameBox, "")

	require.NoError(t, a.Fill(context.Background(), page, usernameBox, "test", 0))
	assert.Equal(t, "test", page.Value(usernameBox))
}

func TestActions_Assertions(t *testing.T) {
	a := newTestActions(t)
	ctx := context.Background()
	page := browsertest.NewPage()
	page.Show(welcome, "Welcome test")

	assert.NoError(t, a.AssertVisible(ctx, page, welcome, 0))
	assert.NoError(t, a.AssertContainsText(ctx, page, welcome, "Welcome test", 0))

	err := a.AssertContainsText(ctx, page, welcome, "Welcome admin", 20*time.Millisecond)
	var af *browser.ActionFailure
	require.ErrorAs(t, err, &af)
	assert.Contains(t, af.Cause, `did not contain "Welcome admin"`)

	assert.Error(t, a.AssertHidden(ctx, page, welcome, 20*time.Millisecond))
	page.Hide(welcome)
	assert.NoError(t, a.AssertHidden(ctx, page, welcome, 0))

	assert.NoError(t, a.AssertHidden(ctx, page, browser.CSS("never rendered", "#nope"), 0), "absent counts as hidden")
}

func TestActions_ReadText(t *testing.T) {
	a := newTestActions(t)
	ctx := context.Background()
	page := browsertest.NewPage()
	page.Show(welcome, "Welcome test")

	text, err := a.ReadText(ctx, page, welcome, 0)
	require.NoError(t, err)
	assert.Equal(t, "Welcome test", text)

	page.Show(welcome, "   ")
	_, err = a.ReadText(ctx, page, welcome, 0)
	var af *browser.ActionFailure
	require.ErrorAs(t, err, &af)
	assert.Contains(t, af.Cause, "has no text content")
}

func TestActions_CountNeverFailsOnZero(t *testing.T) {
	a := newTestActions(t)
	ctx := context.Background()
	page := browsertest.NewPage()

	n, err := a.Count(ctx, page, cartRows)
	require.NoError(t, err)
	assert.Zero(t, n)

	page.Set(cartRows, browsertest.ElementState{Visible: true, Count: 3})
	n, err = a.Count(ctx, page, cartRows)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestActions_TimeoutCappedByContext(t *testing.T) {
	a := browser.NewActions(zaptest.NewLogger(t), time.Minute)
	page := browsertest.NewPage()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := a.Click(ctx, page, loginButton, 0)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestActions_CancelledContext(t *testing.T) {
	a := newTestActions(t)
	page := browsertest.NewPage()
	page.Show(loginButton, "Log in")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.Click(ctx, page, loginButton, 0)
	var af *browser.ActionFailure
	require.ErrorAs(t, err, &af)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, page.Clicks())
}

func TestActions_UnsupportedKind(t *testing.T) {
	a := newTestActions(t)
	_, err := a.Perform(context.Background(), browsertest.NewPage(), loginButton, browser.Action{Kind: "hover"})
	var af *browser.ActionFailure
	require.ErrorAs(t, err, &af)
	assert.Contains(t, af.Cause, "unsupported action kind")
}
