package bpipe

import (
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

// Logger can be implemented to get informed about important states.
type Logger interface {
	LogFault(err error)
	LogWriteError(err error)
}

type zapLogger struct{ *zap.Logger }

func (l zapLogger) LogFault(err error) {
	l.Logger.Error("bpipe: pipeline fault", zap.Error(err))
}

func (l zapLogger) LogWriteError(err error) {
	l.Logger.Warn("bpipe: error while writing response", zap.Error(err))
}

// NewZapLogger reports to a zap logger.
func NewZapLogger(l *zap.Logger) Logger {
	return zapLogger{l}
}

// NewNopLogger discards everything.
func NewNopLogger() Logger {
	return zapLogger{zap.NewNop()}
}

type TestLogger struct {
	tb testing.TB

	NumLogFault      int64
	NumLogWriteError int64
}

func NewTestLogger(tb testing.TB) *TestLogger {
	return &TestLogger{tb: tb}
}

func (l *TestLogger) LogFault(err error) {
	atomic.AddInt64(&l.NumLogFault, 1)
	l.tb.Logf("bpipe: pipeline fault: %s", err)
}

func (l *TestLogger) LogWriteError(err error) {
	atomic.AddInt64(&l.NumLogWriteError, 1)
	l.tb.Logf("bpipe: error while writing response: %s", err)
}

var _ Logger = &TestLogger{}
