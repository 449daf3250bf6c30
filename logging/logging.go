// Package logging wraps go.uber.org/zap with a narrow structured surface
// (Infow/Warnw/Errorw/Sync). The validation engine logs only recovered
// validator panics through it, never a line per finding (findings are
// data, reported separately).
package logging

import "go.uber.org/zap"

// Logger is a thin wrapper around a sugared zap logger.
type Logger struct {
	z *zap.SugaredLogger
}

// New builds a production-configured Logger (JSON output, info level).
func New() (*Logger, error) {
	base, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &Logger{z: base.Sugar()}, nil
}

// NewNop returns a Logger that discards everything, for tests and callers
// that don't care about diagnostics.
func NewNop() *Logger {
	return &Logger{z: zap.NewNop().Sugar()}
}

// Infow logs a structured informational event, e.g. a successful signature
// mode promotion.
func (l *Logger) Infow(msg string, keysAndValues ...interface{}) {
	if l == nil || l.z == nil {
		return
	}
	l.z.Infow(msg, keysAndValues...)
}

// Warnw logs a structured warning, e.g. a structural repair or a retried
// network call.
func (l *Logger) Warnw(msg string, keysAndValues ...interface{}) {
	if l == nil || l.z == nil {
		return
	}
	l.z.Warnw(msg, keysAndValues...)
}

// Errorw logs a structured error, e.g. a recovered validator panic.
func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	if l == nil || l.z == nil {
		return
	}
	l.z.Errorw(msg, keysAndValues...)
}

// Sync flushes any buffered log entries; call before process exit.
func (l *Logger) Sync() error {
	if l == nil || l.z == nil {
		return nil
	}
	return l.z.Sync()
}
