// Package observability owns the process-wide zap logger every shopflow
// component derives its named child logger from.
package observability

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xkilldash9x/shopflow/internal/config"
)

// DefaultServiceName roots every logger name when the config leaves it blank.
const DefaultServiceName = "shopflow"

// Component names. Each is passed to zap.Logger.Named by the package that owns it,
// so log lines read "shopflow.journey", "shopflow.browser_manager.dialogs" and so on.
const (
	ComponentPlaywright     = "playwright"
	ComponentBrowserManager = "browser_manager"
	ComponentDialogs        = "dialogs"
	ComponentActions        = "actions"
	ComponentInterception   = "interception"
	ComponentNavigation     = "navigation"
	ComponentJourney        = "journey"
	ComponentBDD            = "bdd"
	ComponentResultsBus     = "results_bus"
	ComponentResults        = "results_pipeline"
	ComponentStore          = "store"
)

// RunID tags every entry of one purchase journey so its steps can be grepped
// out of a log shared by several runs.
func RunID(id string) zap.Field {
	return zap.String("run_id", id)
}

var (
	globalLogger atomic.Pointer[zap.Logger]
	once         sync.Once
)

const (
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorWhite   = "\x1b[37m"
	colorReset   = "\x1b[0m"
)

var ansiByName = map[string]string{
	"red":     colorRed,
	"green":   colorGreen,
	"yellow":  colorYellow,
	"blue":    colorBlue,
	"magenta": colorMagenta,
	"cyan":    colorCyan,
	"white":   colorWhite,
}

// Initialize installs the global logger. Only the first call has any effect;
// later calls keep the logger the first one built.
//
// Console output goes to consoleWriter in cfg.Format. When cfg.LogFile is set
// a rotating JSON copy of every entry is written there as well.
func Initialize(cfg config.LoggerConfig, consoleWriter zapcore.WriteSyncer) {
	once.Do(func() {
		level := zap.NewAtomicLevelAt(zap.InfoLevel)
		if cfg.Level != "" {
			if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
				level.SetLevel(zap.InfoLevel)
			}
		}

		opts := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
		if cfg.AddSource {
			opts = append(opts, zap.AddCaller())
		}

		name := cfg.ServiceName
		if name == "" {
			name = DefaultServiceName
		}

		logger := zap.New(zapcore.NewTee(newCores(cfg, consoleWriter, level)...), opts...).Named(name)
		globalLogger.Store(logger)
		zap.ReplaceGlobals(logger)
		zap.RedirectStdLog(logger)
	})
}

func newCores(cfg config.LoggerConfig, consoleWriter zapcore.WriteSyncer, level zap.AtomicLevel) []zapcore.Core {
	var console zapcore.Encoder
	if cfg.Format == "console" {
		console = consoleEncoder(cfg.Colors)
	} else {
		console = jsonEncoder()
	}
	cores := []zapcore.Core{zapcore.NewCore(console, consoleWriter, level)}

	if cfg.LogFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder(), zapcore.AddSync(rotating), level))
	}
	return cores
}

func baseEncoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	ec.EncodeDuration = zapcore.StringDurationEncoder
	return ec
}

func jsonEncoder() zapcore.Encoder {
	ec := baseEncoderConfig()
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(ec)
}

// consoleEncoder renders one line per entry with the component in brackets,
// e.g. "INFO [shopflow.journey] Purchase journey completed.".
func consoleEncoder(colors config.ColorConfig) zapcore.Encoder {
	ec := baseEncoderConfig()
	ec.EncodeLevel = levelPalette(colors).encode
	ec.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString("[" + name + "]")
	}
	return zapcore.NewConsoleEncoder(ec)
}

// palette maps each level to its ANSI prefix. Levels without one print plain.
type palette map[zapcore.Level]string

func levelPalette(colors config.ColorConfig) palette {
	named := map[zapcore.Level]string{
		zapcore.DebugLevel:  colors.Debug,
		zapcore.InfoLevel:   colors.Info,
		zapcore.WarnLevel:   colors.Warn,
		zapcore.ErrorLevel:  colors.Error,
		zapcore.DPanicLevel: colors.DPanic,
		zapcore.PanicLevel:  colors.Panic,
		zapcore.FatalLevel:  colors.Fatal,
	}
	p := make(palette, len(named))
	for level, color := range named {
		if code, ok := ansiByName[strings.ToLower(color)]; ok {
			p[level] = code
		}
	}
	return p
}

func (p palette) encode(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	text := level.CapitalString()
	if code, ok := p[level]; ok {
		text = code + text + colorReset
	}
	enc.AppendString(text)
}

// ResetForTest clears the global logger. Tests only.
func ResetForTest() {
	globalLogger.Store(nil)
	once = sync.Once{}
}

// GetLogger returns the global logger. Before Initialize it hands out a
// development logger named "unconfigured" so early callers still see output.
func GetLogger() *zap.Logger {
	if logger := globalLogger.Load(); logger != nil {
		return logger
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l.Named("unconfigured")
}

// Sync flushes buffered entries. Call it before the process exits.
func Sync() {
	logger := globalLogger.Load()
	if logger == nil {
		return
	}
	if err := logger.Sync(); err != nil && !unsyncableTerminal(err) {
		fmt.Fprintln(os.Stderr, "Error: failed to sync logger:", err)
	}
}

// unsyncableTerminal reports errors fsync returns for ttys and pipes.
func unsyncableTerminal(err error) bool {
	return errors.Is(err, syscall.EINVAL) ||
		errors.Is(err, syscall.ENOTTY) ||
		errors.Is(err, syscall.ENOTSUP)
}
