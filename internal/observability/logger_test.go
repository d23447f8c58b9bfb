package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/shopflow/internal/config"
)

// lockedBuffer is a goroutine-safe sink for log output.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Sync() error { return nil }

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

var _ zapcore.WriteSyncer = (*lockedBuffer)(nil)

func TestInitialize(t *testing.T) {
	t.Run("should initialize console logger with colors", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		out := &lockedBuffer{}

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
			Colors:      config.ColorConfig{Info: "green"},
		}, out)
		GetLogger().Info("This is a test message.")

		output := out.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "This is a test message.")
		assert.Contains(t, output, colorGreen, "info level should be colorized green")
		assert.Contains(t, output, colorReset)
		assert.Contains(t, output, "[TestService]", "console names are bracketed")
	})

	t.Run("should initialize json logger", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		out := &lockedBuffer{}

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}, out)
		GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))

		var logEntry map[string]interface{}
		require.NoError(t, json.Unmarshal(out.Bytes(), &logEntry), "log output should be valid JSON")
		assert.Equal(t, "WARN", logEntry["level"])
		assert.Equal(t, "JSONTest", logEntry["logger"])
		assert.Equal(t, "This is a JSON message.", logEntry["msg"])
		assert.Equal(t, "value", logEntry["key"])
	})

	t.Run("should fall back to info on a bad level", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		out := &lockedBuffer{}

		Initialize(config.LoggerConfig{Level: "verbose", Format: "json"}, out)
		GetLogger().Debug("hidden")
		GetLogger().Info("shown")

		assert.NotContains(t, out.String(), "hidden")
		assert.Contains(t, out.String(), "shown")
	})

	t.Run("should write to a log file if configured", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		logFile := filepath.Join(t.TempDir(), "shopflow.log")

		Initialize(config.LoggerConfig{Level: "debug", Format: "json", LogFile: logFile, MaxSize: 1}, &lockedBuffer{})
		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "This should go to the file.")
	})

	t.Run("should only initialize once", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		out := &lockedBuffer{}

		Initialize(config.LoggerConfig{Level: "info", ServiceName: "First"}, out)
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, out)
		second := GetLogger()

		assert.Same(t, first, second)
		second.Info("test")
		assert.Contains(t, out.String(), "First")
		assert.NotContains(t, out.String(), "Second")
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("should return a fallback logger if not initialized", func(t *testing.T) {
		ResetForTest()
		require.NotNil(t, GetLogger())
	})

	t.Run("should return the global logger after initialization", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		Initialize(config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"}, &lockedBuffer{})
		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}

func TestInitialize_ComponentLoggersCarryRunID(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	out := &lockedBuffer{}

	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, out)
	GetLogger().Named(ComponentJourney).With(RunID("run-42")).Info("Step passed.")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, "shopflow.journey", entry["logger"], "blank service names fall back to shopflow")
	assert.Equal(t, "run-42", entry["run_id"])
}

func TestLevelPalette(t *testing.T) {
	p := levelPalette(config.ColorConfig{Info: "green", Warn: "YELLOW", Error: "chartreuse"})

	tests := []struct {
		level zapcore.Level
		want  string
	}{
		{zapcore.InfoLevel, colorGreen + "INFO" + colorReset},
		{zapcore.WarnLevel, colorYellow + "WARN" + colorReset},
		{zapcore.ErrorLevel, "ERROR"},
		{zapcore.DebugLevel, "DEBUG"},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			enc := zapcore.NewMapObjectEncoder()
			require.NoError(t, enc.AddArray("level", zapcore.ArrayMarshalerFunc(func(arr zapcore.ArrayEncoder) error {
				p.encode(tt.level, arr)
				return nil
			})))
			assert.Equal(t, []interface{}{tt.want}, enc.Fields["level"])
		})
	}
}

func TestUnsyncableTerminal(t *testing.T) {
	assert.True(t, unsyncableTerminal(&fs.PathError{Op: "sync", Path: "/dev/stderr", Err: syscall.EINVAL}))
	assert.True(t, unsyncableTerminal(fmt.Errorf("tee: %w", syscall.ENOTTY)))
	assert.False(t, unsyncableTerminal(errors.New("disk full")))
}
