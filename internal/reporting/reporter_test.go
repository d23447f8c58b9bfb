// internal/reporting/reporter_test.go
package reporting_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/shopflow/internal/reporting"
	"github.com/xkilldash9x/shopflow/internal/results"
)

const testToolVersion = "v1.0.0-test"

type bufferCloser struct {
	bytes.Buffer
	closed int
}

func (b *bufferCloser) Close() error {
	b.closed++
	return nil
}

func sampleRun() results.RunSummary {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return results.RunSummary{
		RunID:    "run-1",
		Scenario: "purchase",
		Status:   results.StatusFailed,
		Started:  start,
		Finished: start.Add(42 * time.Second),
		Steps: []results.StepResult{
			{RunID: "run-1", Step: "authenticate", Status: results.StatusPassed},
			{RunID: "run-1", Step: "add_to_cart", Status: results.StatusFailed, Error: "dialog never arrived"},
			{RunID: "run-1", Step: "checkout", Status: results.StatusSkipped},
		},
		Counts: results.Counts{Passed: 1, Failed: 1, Skipped: 1},
	}
}

func TestNew_Stdout(t *testing.T) {
	r, err := reporting.New("json", "stdout", testToolVersion)
	require.NoError(t, err)
	assert.NotNil(t, r)

	r, err = reporting.New("", "", testToolVersion)
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")

	r, err := reporting.New("JSON", path, testToolVersion)
	require.NoError(t, err)
	require.NoError(t, r.WriteRun(context.Background(), sampleRun()))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc reporting.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "shopflow", doc.Tool)
	assert.Equal(t, testToolVersion, doc.Version)
	require.Len(t, doc.Runs, 1)
	assert.Equal(t, "run-1", doc.Runs[0].RunID)
	assert.Equal(t, results.StatusFailed, doc.Runs[0].Status)
	assert.Equal(t, "dialog never arrived", doc.Runs[0].Steps[1].Error)
}

func TestNew_UnsupportedFormat(t *testing.T) {
	r, err := reporting.New("junit", "stdout", testToolVersion)
	assert.Nil(t, r)
	assert.EqualError(t, err, "unsupported output format: junit")

	path := filepath.Join(t.TempDir(), "report.xml")
	r, err = reporting.New("junit", path, testToolVersion)
	assert.Error(t, err)
	assert.Nil(t, r)

	info, err := os.Stat(path)
	require.NoError(t, err, "the file is created before the format is checked")
	assert.Zero(t, info.Size())
}

func TestNew_BadPath(t *testing.T) {
	_, err := reporting.New("json", filepath.Join(t.TempDir(), "missing", "report.json"), testToolVersion)
	assert.ErrorContains(t, err, "failed to create output file")
}

func TestJSONReporter_Close(t *testing.T) {
	buf := &bufferCloser{}
	r := reporting.NewJSONReporter(buf, testToolVersion)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "closing twice is a no-op")
	assert.Equal(t, 1, buf.closed)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, []any{}, doc["runs"], "an empty report still lists runs")

	assert.Error(t, r.WriteRun(context.Background(), sampleRun()), "writes after close are rejected")
}
