// Package logz is the analysis's structured-logging front door, built on
// go.uber.org/zap (the pack's own logging library for
// github.com/erigontech/erigon). It replaces the classic raw
// `a.log io.Writer` debug-dump convention with leveled, structured
// logging: Debug for the per-constraint trace debug_* flags
// enable, Warn for "warning, continue" class. Fatal conditions do not go
// through this package: they panic with a *ctxanders/ctxerr.Fatal (see
// ctxerr.Raise), which cmd/ctxanders recovers and reports.
package logz

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a *zap.Logger with the handful of calls the core needs.
type Logger struct {
	z *zap.Logger
}

// New builds a Logger at the requested level. debug enables
// debug_ids/debug_fcn_names-style tracing.
func New(debug bool) *Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	z, err := cfg.Build()
	if err != nil {
		// Logger construction failing means the process environment is
		// broken beyond what this analysis can reasonably run in;
		// fall back to a no-op rather than crash on behalf of a
		// library caller.
		z = zap.NewNop()
	}
	return &Logger{z: z}
}

// Nop returns a Logger that discards everything, for tests.
func Nop() *Logger { return &Logger{z: zap.NewNop()} }

func (l *Logger) Debugf(template string, args ...any) {
	l.z.Sugar().Debugf(template, args...)
}

func (l *Logger) Warnf(template string, args ...any) {
	l.z.Sugar().Warnf(template, args...)
}

func (l *Logger) Infof(template string, args ...any) {
	l.z.Sugar().Infof(template, args...)
}

// With returns a child logger carrying the given structured fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.z.Sync()
}
