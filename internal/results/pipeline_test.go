package results_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/shopflow/internal/results"
)

type mockSink struct {
	mock.Mock
	mu   sync.Mutex
	runs []results.RunSummary
}

func (m *mockSink) WriteRun(ctx context.Context, summary results.RunSummary) error {
	m.mu.Lock()
	m.runs = append(m.runs, summary)
	m.mu.Unlock()
	args := m.Called(ctx, summary.RunID)
	return args.Error(0)
}

func postRun(t *testing.T, b *results.Bus, runID string, statuses ...results.Status) {
	t.Helper()
	ctx := context.Background()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, b.Post(ctx, results.KindRunStarted, results.RunStarted{RunID: runID, Scenario: "purchase", Started: start}))
	overall := results.StatusPassed
	for i, s := range statuses {
		if s == results.StatusFailed {
			overall = results.StatusFailed
		}
		require.NoError(t, b.Post(ctx, results.KindStepFinished, results.StepResult{RunID: runID, Index: i, Step: "step", Status: s}))
	}
	require.NoError(t, b.Post(ctx, results.KindRunFinished, results.RunFinished{RunID: runID, Status: overall, Finished: start.Add(time.Minute)}))
}

func TestPipeline_AggregatesRuns(t *testing.T) {
	b := newTestBus(t, 8)
	sink := &mockSink{}
	sink.On("WriteRun", mock.Anything, "run-1").Return(nil).Once()

	p := results.NewPipeline(b, zaptest.NewLogger(t), sink)
	p.Start(context.Background())

	postRun(t, b, "run-1", results.StatusPassed, results.StatusFailed, results.StatusSkipped)

	b.Shutdown()
	require.NoError(t, p.Wait())
	sink.AssertExpectations(t)

	summaries := p.Summaries()
	require.Len(t, summaries, 1)
	s := summaries[0]
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, "purchase", s.Scenario)
	assert.Equal(t, results.StatusFailed, s.Status)
	assert.Equal(t, results.Counts{Passed: 1, Failed: 1, Skipped: 1}, s.Counts)
	assert.Len(t, s.Steps, 3)
	assert.Equal(t, time.Minute, s.Finished.Sub(s.Started))
}

func TestPipeline_CollectsSinkErrors(t *testing.T) {
	b := newTestBus(t, 8)
	failing := &mockSink{}
	failing.On("WriteRun", mock.Anything, "run-1").Return(errors.New("disk full"))
	healthy := &mockSink{}
	healthy.On("WriteRun", mock.Anything, "run-1").Return(nil)

	p := results.NewPipeline(b, zaptest.NewLogger(t), failing, healthy)
	p.Start(context.Background())
	postRun(t, b, "run-1", results.StatusPassed)
	b.Shutdown()

	err := p.Wait()
	assert.ErrorContains(t, err, "disk full")
	healthy.AssertExpectations(t)
}

func TestPipeline_StepWithoutStart(t *testing.T) {
	b := newTestBus(t, 8)
	p := results.NewPipeline(b, zaptest.NewLogger(t))
	p.Start(context.Background())

	ctx := context.Background()
	require.NoError(t, b.Post(ctx, results.KindStepFinished, results.StepResult{RunID: "orphan", Status: results.StatusPassed}))
	require.NoError(t, b.Post(ctx, results.KindRunFinished, results.RunFinished{RunID: "orphan", Status: results.StatusPassed}))
	b.Shutdown()
	require.NoError(t, p.Wait())

	summaries := p.Summaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].Counts.Passed)
}
