// Package logging constructs the structured loggers used throughout
// navenv.
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// Logger is the logger type accepted by all navenv components
type Logger = *zap.SugaredLogger

// NewLoggerConfig returns a new default logger config: console output,
// ISO8601 timestamps, coloured levels and no stacktraces.
func NewLoggerConfig() zap.Config {
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// NewLogger returns a new logger that outputs Info+ logs to stdout
func NewLogger(name string) Logger {
	return newLogger(name, zap.InfoLevel)
}

// NewDebugLogger returns a new logger that outputs Debug+ logs to stdout
func NewDebugLogger(name string) Logger {
	return newLogger(name, zap.DebugLevel)
}

func newLogger(name string, level zapcore.Level) Logger {
	cfg := NewLoggerConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := cfg.Build()
	if err != nil {
		// The config above only writes to stdout/stderr
		panic(err)
	}
	return logger.Named(name).Sugar()
}

// NewNop returns a logger that discards everything
func NewNop() Logger {
	return zap.NewNop().Sugar()
}

// NewTestLogger returns a new logger that writes Debug+ logs through
// tb.Log
func NewTestLogger(tb testing.TB) Logger {
	return zaptest.NewLogger(tb).Sugar()
}

// NewObservedTestLogger is like NewTestLogger but also saves logs to an
// in memory observer
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	observerCore, observedLogs := observer.New(zapcore.DebugLevel)
	testLogger := zaptest.NewLogger(tb, zaptest.WrapOptions(
		zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, observerCore)
		}),
	))
	return testLogger.Sugar(), observedLogs
}
