// File: internal/results/pipeline.go
package results

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/shopflow/internal/observability"
)

// Pipeline consumes run events from the bus, aggregates them per run and hands
// every finished run to the configured sinks.
type Pipeline struct {
	bus    *Bus
	sinks  []Sink
	logger *zap.Logger

	mu        sync.Mutex
	open      map[string]*RunSummary
	finished  []RunSummary
	sinkErrs  []error
	done      chan struct{}
	startOnce sync.Once
}

// NewPipeline creates a pipeline reading from bus and writing to sinks.
func NewPipeline(bus *Bus, logger *zap.Logger, sinks ...Sink) *Pipeline {
	return &Pipeline{
		bus:    bus,
		sinks:  sinks,
		logger: logger.Named(observability.ComponentResults),
		open:   make(map[string]*RunSummary),
		done:   make(chan struct{}),
	}
}

// Start subscribes before returning, so no event posted afterwards is missed,
// and consumes in the background until the bus shuts down.
func (p *Pipeline) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		msgs, unsubscribe := p.bus.Subscribe(KindRunStarted, KindStepFinished, KindRunFinished)
		go func() {
			defer close(p.done)
			defer unsubscribe()
			for msg := range msgs {
				p.handle(ctx, msg)
				p.bus.Acknowledge(msg)
			}
		}()
	})
}

// Wait blocks until the consumer has stopped and returns any sink errors.
func (p *Pipeline) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.sinkErrs...)
}

// Summaries returns every finished run in completion order.
func (p *Pipeline) Summaries() []RunSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]RunSummary(nil), p.finished...)
}

func (p *Pipeline) handle(ctx context.Context, msg Message) {
	switch payload := msg.Payload.(type) {
	case RunStarted:
		p.mu.Lock()
		p.open[payload.RunID] = &RunSummary{
			RunID:    payload.RunID,
			Scenario: payload.Scenario,
			BaseURL:  payload.BaseURL,
			Browser:  payload.Browser,
			Started:  payload.Started,
			Steps:    []StepResult{},
		}
		p.mu.Unlock()

	case StepResult:
		p.mu.Lock()
		run := p.runLocked(payload.RunID)
		run.Steps = append(run.Steps, payload)
		switch payload.Status {
		case StatusPassed:
			run.Counts.Passed++
		case StatusFailed:
			run.Counts.Failed++
		case StatusSkipped:
			run.Counts.Skipped++
		}
		p.mu.Unlock()

	case RunFinished:
		p.mu.Lock()
		run := p.runLocked(payload.RunID)
		run.Status = payload.Status
		run.Finished = payload.Finished
		summary := *run
		delete(p.open, payload.RunID)
		p.finished = append(p.finished, summary)
		p.mu.Unlock()

		p.flush(ctx, summary)

	default:
		p.logger.Warn("Ignoring message with unexpected payload.",
			zap.String("kind", string(msg.Kind)),
			zap.String("type", fmt.Sprintf("%T", msg.Payload)))
	}
}

// runLocked returns the open summary for id, creating one for events that
// arrived without a start.
func (p *Pipeline) runLocked(id string) *RunSummary {
	run, ok := p.open[id]
	if !ok {
		run = &RunSummary{RunID: id, Steps: []StepResult{}}
		p.open[id] = run
	}
	return run
}

func (p *Pipeline) flush(ctx context.Context, summary RunSummary) {
	for _, sink := range p.sinks {
		if err := sink.WriteRun(ctx, summary); err != nil {
			p.logger.Error("Failed to write run results.", observability.RunID(summary.RunID), zap.Error(err))
			p.mu.Lock()
			p.sinkErrs = append(p.sinkErrs, err)
			p.mu.Unlock()
		}
	}
	p.logger.Info("Run results recorded.",
		observability.RunID(summary.RunID),
		zap.String("status", string(summary.Status)),
		zap.Int("passed", summary.Counts.Passed),
		zap.Int("failed", summary.Counts.Failed),
		zap.Int("skipped", summary.Counts.Skipped))
}
