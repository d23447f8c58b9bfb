// internal/reporting/json_reporter.go
package reporting

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/shopflow/internal/results"
)

// Document is the top-level JSON report.
type Document struct {
	Tool      string               `json:"tool"`
	Version   string               `json:"version"`
	Generated time.Time            `json:"generated"`
	Runs      []results.RunSummary `json:"runs"`
}

// JSONReporter collects run summaries and writes them as one JSON document on Close.
type JSONReporter struct {
	writer      io.WriteCloser
	toolVersion string

	mu     sync.Mutex
	runs   []results.RunSummary
	closed bool
}

// NewJSONReporter creates a reporter that takes ownership of writer.
func NewJSONReporter(writer io.WriteCloser, toolVersion string) *JSONReporter {
	return &JSONReporter{writer: writer, toolVersion: toolVersion, runs: []results.RunSummary{}}
}

// WriteRun buffers a finished run.
func (r *JSONReporter) WriteRun(_ context.Context, summary results.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("reporter is closed")
	}
	r.runs = append(r.runs, summary)
	return nil
}

// Close writes the document and closes the writer. Later calls are no-ops.
func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	doc := Document{
		Tool:      "shopflow",
		Version:   r.toolVersion,
		Generated: time.Now().UTC(),
		Runs:      r.runs,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		r.writer.Close()
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if _, err := r.writer.Write(append(data, '\n')); err != nil {
		r.writer.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return r.writer.Close()
}
