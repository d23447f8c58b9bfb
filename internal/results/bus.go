// internal/results/bus.go
package results

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shopflow/internal/observability"
)

// Message is the envelope for data transmitted over the Bus.
type Message struct {
	ID        string
	Timestamp time.Time
	Kind      Kind
	Payload   any
}

// Bus is an in-process pub/sub channel for run events.
type Bus struct {
	logger *zap.Logger

	// Map of message kind to its subscriber channels.
	subscribers map[Kind][]chan Message
	mu          sync.RWMutex
	bufferSize  int

	// Tracks delivered messages until they are acknowledged.
	processingWg sync.WaitGroup
	// Tracks Post calls in flight.
	activePostsWg sync.WaitGroup

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	isShutdown   bool
	shutdownMu   sync.Mutex
}

var _ Publisher = (*Bus)(nil)

// NewBus initializes a bus whose subscriber channels hold bufferSize messages.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Bus{
		logger:       logger.Named(observability.ComponentResultsBus),
		subscribers:  make(map[Kind][]chan Message),
		bufferSize:   bufferSize,
		shutdownChan: make(chan struct{}),
	}
}

// Post sends a message onto the bus. Blocks while subscriber buffers are full.
func (b *Bus) Post(ctx context.Context, kind Kind, payload any) error {
	// 1. Refuse new posts once shutdown has started.
	b.shutdownMu.Lock()
	if b.isShutdown {
		b.shutdownMu.Unlock()
		return fmt.Errorf("cannot post message: results bus is shut down")
	}
	b.activePostsWg.Add(1)
	b.shutdownMu.Unlock()
	defer b.activePostsWg.Done()

	// 2. Envelope.
	msg := Message{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Payload:   payload,
	}
	b.logger.Debug("Posting message", zap.String("kind", string(msg.Kind)), zap.String("id", msg.ID))

	// 3. Copy the subscriber list so no lock is held while sending.
	b.mu.RLock()
	subs := append([]chan Message(nil), b.subscribers[kind]...)
	b.mu.RUnlock()
	if len(subs) == 0 {
		return nil
	}

	// 4. Deliver; each delivery must be acknowledged by its consumer.
	for _, ch := range subs {
		b.processingWg.Add(1)
		select {
		case ch <- msg:
		case <-ctx.Done():
			b.processingWg.Done()
			return ctx.Err()
		case <-b.shutdownChan:
			b.processingWg.Done()
			return fmt.Errorf("failed to post message: bus is shutting down")
		}
	}
	return nil
}

// Subscribe returns a channel receiving the given kinds and a func to unsubscribe.
// The channel is closed by Shutdown.
func (b *Bus) Subscribe(kinds ...Kind) (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isShutdown {
		closed := make(chan Message)
		close(closed)
		return closed, func() {}
	}
	if len(kinds) == 0 {
		panic("must subscribe to at least one message kind")
	}

	ch := make(chan Message, b.bufferSize)
	subscribed := append([]Kind(nil), kinds...)
	for _, k := range subscribed {
		b.subscribers[k] = append(b.subscribers[k], ch)
	}

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, k := range subscribed {
			subs := b.subscribers[k]
			for i, c := range subs {
				if c == ch {
					b.subscribers[k] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(b.subscribers[k]) == 0 {
				delete(b.subscribers, k)
			}
		}
	}
	return ch, unsubscribe
}

// Acknowledge marks a delivered message as processed.
func (b *Bus) Acknowledge(Message) {
	b.processingWg.Done()
}

// drainGracePeriod bounds how long Shutdown waits for buffered messages to be consumed.
const drainGracePeriod = 5 * time.Second

// Shutdown stops accepting posts, closes every subscriber channel and waits
// until delivered messages are acknowledged. Buffered messages nobody read
// within drainGracePeriod are drained and dropped.
func (b *Bus) Shutdown() {
	b.shutdownOnce.Do(func() {
		b.logger.Debug("Shutting down results bus...")

		// 1. Flag and signal.
		b.shutdownMu.Lock()
		b.isShutdown = true
		b.shutdownMu.Unlock()
		close(b.shutdownChan)

		// 2. Let in-flight posts give up or finish.
		b.activePostsWg.Wait()

		// 3. Give live consumers a bounded chance to work through their buffers.
		b.waitProcessed(drainGracePeriod)

		// 4. Close channels, then drain what was never read.
		b.mu.Lock()
		unique := make(map[chan Message]struct{})
		for _, subs := range b.subscribers {
			for _, ch := range subs {
				unique[ch] = struct{}{}
			}
		}
		for ch := range unique {
			close(ch)
		}
		drained := 0
		for ch := range unique {
			for range ch {
				drained++
				b.processingWg.Done()
			}
		}
		b.subscribers = make(map[Kind][]chan Message)
		b.mu.Unlock()

		if drained > 0 {
			b.logger.Debug("Drained buffered messages during shutdown.", zap.Int("count", drained))
		}

		// 5. Wait for consumers still working on received messages.
		b.processingWg.Wait()
		b.logger.Debug("Results bus shut down.")
	})
}

func (b *Bus) waitProcessed(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		b.processingWg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		b.logger.Warn("Consumers did not drain the bus in time; dropping buffered messages.", zap.Duration("grace", grace))
	}
}
