package results_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/shopflow/internal/results"
)

func newTestBus(t *testing.T, bufferSize int) *results.Bus {
	return results.NewBus(zaptest.NewLogger(t), bufferSize)
}

func TestBus_DeliversToSubscribedKinds(t *testing.T) {
	b := newTestBus(t, 4)
	defer b.Shutdown()

	steps, unsubscribe := b.Subscribe(results.KindStepFinished)
	defer unsubscribe()

	ctx := context.Background()
	require.NoError(t, b.Post(ctx, results.KindRunStarted, results.RunStarted{RunID: "r1"}))
	require.NoError(t, b.Post(ctx, results.KindStepFinished, results.StepResult{RunID: "r1", Step: "authenticate"}))

	select {
	case msg := <-steps:
		assert.Equal(t, results.KindStepFinished, msg.Kind)
		assert.NotEmpty(t, msg.ID)
		assert.Equal(t, "authenticate", msg.Payload.(results.StepResult).Step)
		b.Acknowledge(msg)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	select {
	case msg := <-steps:
		t.Fatalf("unexpected message of kind %s", msg.Kind)
	default:
	}
}

func TestBus_PostWithoutSubscribers(t *testing.T) {
	b := newTestBus(t, 0)
	defer b.Shutdown()
	assert.NoError(t, b.Post(context.Background(), results.KindRunFinished, results.RunFinished{}))
}

func TestBus_Post_Cancellation(t *testing.T) {
	b := newTestBus(t, 0)
	defer b.Shutdown()

	msgs, unsubscribe := b.Subscribe(results.KindStepFinished)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	postDone := make(chan error)
	go func() {
		postDone <- b.Post(ctx, results.KindStepFinished, results.StepResult{})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-postDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Post did not return after cancellation")
	}

	select {
	case <-msgs:
		t.Error("message should not have been delivered after cancellation")
	default:
	}
}

func TestBus_PostAfterShutdown(t *testing.T) {
	b := newTestBus(t, 1)
	b.Shutdown()

	err := b.Post(context.Background(), results.KindRunStarted, results.RunStarted{})
	assert.Error(t, err)

	ch, unsubscribe := b.Subscribe(results.KindRunStarted)
	unsubscribe()
	_, open := <-ch
	assert.False(t, open, "subscribing after shutdown yields a closed channel")
}

func TestBus_Unsubscribe(t *testing.T) {
	b := newTestBus(t, 1)
	defer b.Shutdown()

	msgs, unsubscribe := b.Subscribe(results.KindRunStarted)
	unsubscribe()

	require.NoError(t, b.Post(context.Background(), results.KindRunStarted, results.RunStarted{}))
	select {
	case <-msgs:
		t.Error("unsubscribed channel received a message")
	default:
	}
}

func TestBus_Shutdown_UnderLoad(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := newTestBus(t, 2)

	var subscriberWg sync.WaitGroup
	for i := 0; i < 4; i++ {
		subscriberWg.Add(1)
		msgs, _ := b.Subscribe(results.KindStepFinished)
		go func() {
			defer subscriberWg.Done()
			for msg := range msgs {
				time.Sleep(time.Millisecond)
				b.Acknowledge(msg)
			}
		}()
	}

	producerCtx, producerCancel := context.WithCancel(context.Background())
	var producerWg sync.WaitGroup
	for i := 0; i < 4; i++ {
		producerWg.Add(1)
		go func(id int) {
			defer producerWg.Done()
			for j := 0; j < 25; j++ {
				_ = b.Post(producerCtx, results.KindStepFinished, results.StepResult{Step: fmt.Sprintf("step-%d-%d", id, j)})
				if producerCtx.Err() != nil {
					return
				}
			}
		}(i)
	}

	time.Sleep(30 * time.Millisecond)

	shutdownDone := make(chan struct{})
	go func() {
		b.Shutdown()
		close(shutdownDone)
	}()
	producerCancel()

	select {
	case <-shutdownDone:
	case <-time.After(10 * time.Second):
		t.Fatal("bus shutdown timed out")
	}
	producerWg.Wait()
	subscriberWg.Wait()
}
