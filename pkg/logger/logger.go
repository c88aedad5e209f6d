// Package logger provides the structured logger used across sagasynth.
package logger

import (
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// Logger is the logging interface shared by every sagasynth component. It is implemented by
// zap's SugaredLogger.
//
// Loggers should be injected and usually Named after the component using them, e.g.
// lggr.Named("session").
//
// Tests should use a [Test] logger, with [New] being reserved for the CLI runtime.
//
// Levels
//   - Error: an operation failed and the failure was reported to the user.
//   - Warn: something went wrong but was recovered from, e.g. a retried RPC call.
//   - Info: state transitions a user would care about (connected, switched chain, tx mined).
//   - Debug: request level detail for forensic debugging.
type Logger interface {
	// Name returns the fully qualified name of the logger.
	Name() string
	// Named returns a child logger with name appended to the logger name.
	Named(name string) Logger
	// With returns a child logger carrying the given key value pairs on every entry.
	With(keysAndValues ...any) Logger

	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)

	Debugf(format string, values ...any)
	Infof(format string, values ...any)
	Warnf(format string, values ...any)
	Errorf(format string, values ...any)

	Debugw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)

	// Sync flushes any buffered log entries.
	Sync() error
}

// Config configures a runtime Logger.
type Config struct {
	// Level is the minimum enabled level, e.g. "debug", "info", "warn". Empty means "info".
	Level string
	// Development switches to the human readable console encoder.
	Development bool
}

// New returns a new Logger with the default configuration.
func New() (Logger, error) { return (&Config{}).New() }

// New returns a new Logger for Config.
func (c *Config) New() (Logger, error) {
	lvl, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	return NewWith(func(cfg *zap.Config) {
		if c.Development {
			dev := zap.NewDevelopmentConfig()
			*cfg = dev
		}
		cfg.Level.SetLevel(lvl)
	})
}

// NewWith returns a new Logger from a modified [zap.Config].
func NewWith(cfgFn func(*zap.Config)) (Logger, error) {
	cfg := zap.NewProductionConfig()
	cfgFn(&cfg)

	zl, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return &logger{zl.Sugar()}, nil
}

// ParseLevel converts a level name into a zap level. The empty string maps to info.
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}

	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}

	return lvl, nil
}

// Test returns a Logger writing to the output of tb at debug level.
func Test(tb testing.TB) Logger {
	tb.Helper()

	return &logger{zap.New(testCore(tb), zap.AddCaller()).Sugar()}
}

// TestObserved is Test with the entries at or above lvl also recorded in the returned
// ObservedLogs, for assertions on what was logged.
func TestObserved(tb testing.TB, lvl zapcore.Level) (Logger, *observer.ObservedLogs) {
	tb.Helper()

	observed, logs := observer.New(lvl)
	core := zapcore.NewTee(testCore(tb), observed)

	return &logger{zap.New(core, zap.AddCaller()).Sugar()}, logs
}

func testCore(tb testing.TB) zapcore.Core {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000")

	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zaptest.NewTestingWriter(tb),
		zapcore.DebugLevel,
	)
}

// Nop returns a no-op Logger.
func Nop() Logger {
	return &logger{zap.New(zapcore.NewNopCore()).Sugar()}
}

type logger struct {
	*zap.SugaredLogger
}

func (l *logger) Name() string {
	return l.Desugar().Name()
}

func (l *logger) Named(name string) Logger {
	return &logger{l.SugaredLogger.Named(name)}
}

func (l *logger) With(keysAndValues ...any) Logger {
	return &logger{l.SugaredLogger.With(keysAndValues...)}
}
