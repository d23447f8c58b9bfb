package results

import (
	"context"
	"time"
)

// Kind classifies a message on the bus.
type Kind string

const (
	KindRunStarted   Kind = "run_started"
	KindStepFinished Kind = "step_finished"
	KindRunFinished  Kind = "run_finished"
)

// Status is the outcome of a step or a run.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// RunStarted is the payload of KindRunStarted.
type RunStarted struct {
	RunID    string    `json:"run_id"`
	Scenario string    `json:"scenario"`
	BaseURL  string    `json:"base_url"`
	Browser  string    `json:"browser"`
	Started  time.Time `json:"started"`
}

// StepResult is the payload of KindStepFinished.
type StepResult struct {
	RunID       string        `json:"run_id"`
	Index       int           `json:"index"`
	Step        string        `json:"step"`
	Status      Status        `json:"status"`
	Started     time.Time     `json:"started"`
	Duration    time.Duration `json:"duration_ns"`
	Expectation string        `json:"expectation,omitempty"`
	Error       string        `json:"error,omitempty"`
	Screenshot  string        `json:"screenshot,omitempty"`
}

// RunFinished is the payload of KindRunFinished.
type RunFinished struct {
	RunID    string    `json:"run_id"`
	Status   Status    `json:"status"`
	Finished time.Time `json:"finished"`
}

// RunSummary aggregates every event of one run.
type RunSummary struct {
	RunID    string       `json:"run_id"`
	Scenario string       `json:"scenario"`
	BaseURL  string       `json:"base_url"`
	Browser  string       `json:"browser"`
	Status   Status       `json:"status"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Steps    []StepResult `json:"steps"`
	Counts   Counts       `json:"counts"`
}

// Counts tallies step outcomes.
type Counts struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Publisher posts run events. The journey driver depends on this, not on Bus.
type Publisher interface {
	Post(ctx context.Context, kind Kind, payload any) error
}

// Sink receives completed run summaries.
type Sink interface {
	WriteRun(ctx context.Context, summary RunSummary) error
}
