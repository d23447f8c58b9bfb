package oneshot

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSignal_FireBeforeAwait(t *testing.T) {
	s := New[string](time.Second)
	require.True(t, s.Fire("hello"))

	v, err := s.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
	assert.True(t, s.Fired())
}

func TestSignal_FireDuringAwait(t *testing.T) {
	s := New[int](time.Second)
	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Fire(42)
	}()

	v, err := s.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestSignal_AtMostOnce(t *testing.T) {
	s := New[int](time.Second)
	assert.True(t, s.Fire(1))
	assert.False(t, s.Fire(2), "second fire must be ignored")

	v, err := s.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestSignal_Timeout(t *testing.T) {
	s := New[int](20 * time.Millisecond)

	start := time.Now()
	v, err := s.Await(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Zero(t, v)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)

	assert.False(t, s.Fire(7), "an expired signal cannot fire")
}

func TestSignal_OnSettleRunsOnce(t *testing.T) {
	t.Run("on expiry without an awaiter", func(t *testing.T) {
		var calls atomic.Int32
		s := New[int](10 * time.Millisecond)
		s.OnSettle(func() { calls.Add(1) })

		select {
		case <-s.Done():
		case <-time.After(time.Second):
			t.Fatal("signal never expired")
		}
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("on fire", func(t *testing.T) {
		var calls atomic.Int32
		s := New[int](time.Second)
		s.OnSettle(func() { calls.Add(1) })
		s.Fire(1)
		s.Fire(2)
		s.Cancel()
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("registered after settle runs immediately", func(t *testing.T) {
		var calls atomic.Int32
		s := New[int](time.Second)
		s.Cancel()
		s.OnSettle(func() { calls.Add(1) })
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestSignal_CancelKeepsValue(t *testing.T) {
	s := New[string](time.Second)
	s.Fire("kept")
	s.Cancel()

	v, err := s.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "kept", v)
}

func TestSignal_CancelBeforeFire(t *testing.T) {
	s := New[string](time.Second)
	s.Cancel()

	_, err := s.Await(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSignal_ContextCancellation(t *testing.T) {
	s := New[int](time.Minute)
	defer s.Cancel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSignal_Deadline(t *testing.T) {
	before := time.Now()
	s := New[int](time.Minute)
	defer s.Cancel()

	assert.WithinDuration(t, before.Add(time.Minute), s.Deadline(), time.Second)
}

func TestSignal_SettledWinsOverFinishedContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	t.Run("fired value", func(t *testing.T) {
		s := New[string](time.Second)
		require.True(t, s.Fire("Wrong password."))
		for i := 0; i < 100; i++ {
			v, err := s.Await(ctx)
			require.NoError(t, err)
			require.Equal(t, "Wrong password.", v)
		}
	})

	t.Run("expired signal", func(t *testing.T) {
		s := New[string](time.Millisecond)
		<-s.Done()
		for i := 0; i < 100; i++ {
			_, err := s.Await(ctx)
			require.ErrorIs(t, err, ErrTimeout)
		}
	})
}
