// Package logging provides the structured, leveled logger used across the
// depth-map estimation and fusion core.
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the leveled, structured logger every core component accepts at
// construction time. It intentionally mirrors the small surface actually
// exercised by this repository rather than a general-purpose facade.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	// Sublogger returns a logger that prefixes its name with this logger's
	// name, e.g. logger.Sublogger("patchmatch").
	Sublogger(name string) Logger

	// With returns a logger that always logs the given key/value pairs.
	With(keysAndValues ...interface{}) Logger
}

type impl struct {
	name string
	zl   *zap.SugaredLogger
}

// NewLogger returns an Info-level logger writing to stdout, named name.
func NewLogger(name string) Logger {
	return newLogger(name, zap.NewAtomicLevelAt(zapcore.InfoLevel))
}

// NewDebugLogger returns a Debug-level logger writing to stdout, named name.
func NewDebugLogger(name string) Logger {
	return newLogger(name, zap.NewAtomicLevelAt(zapcore.DebugLevel))
}

func newLogger(name string, level zap.AtomicLevel) Logger {
	cfg := zap.Config{
		Level:    level,
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			MessageKey:     "msg",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	zl, err := cfg.Build()
	if err != nil {
		// Config above is static and known-good; a build failure here would
		// indicate a broken zap install, not a runtime condition to recover.
		panic(err)
	}
	return &impl{name: name, zl: zl.Named(name).Sugar()}
}

// NewTestLogger returns a logger that writes through tb.Log, for use in
// package tests in place of a discarded logger.
func NewTestLogger(tb testing.TB) Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(testWriter{tb}),
		zapcore.DebugLevel,
	)
	return &impl{zl: zap.New(core).Sugar()}
}

type testWriter struct{ tb testing.TB }

func (w testWriter) Write(p []byte) (int, error) {
	w.tb.Log(string(p))
	return len(p), nil
}

func (l *impl) Debugw(msg string, kv ...interface{}) { l.zl.Debugw(msg, kv...) }
func (l *impl) Infow(msg string, kv ...interface{})  { l.zl.Infow(msg, kv...) }
func (l *impl) Warnw(msg string, kv ...interface{})  { l.zl.Warnw(msg, kv...) }
func (l *impl) Errorw(msg string, kv ...interface{}) { l.zl.Errorw(msg, kv...) }

func (l *impl) Sublogger(name string) Logger {
	full := name
	if l.name != "" {
		full = l.name + "." + name
	}
	return &impl{name: full, zl: l.zl.Desugar().Named(name).Sugar()}
}

func (l *impl) With(kv ...interface{}) Logger {
	return &impl{name: l.name, zl: l.zl.With(kv...)}
}
