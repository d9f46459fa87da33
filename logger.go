package spirvc

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	nopLogger = zap.NewNop()
	logger    atomic.Pointer[zap.Logger]
)

// Logger returns the logger used by spirvc. It is a no-op logger unless
// SetLogger was called.
//
// Log levels used:
//   - Debug: per-compile timings and sizes
//   - Info: compiler lifecycle, resolved includes
//   - Warn: failed compiles and unreadable sources
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return nopLogger
}

// SetLogger configures the logger. Include resolvers created by New capture
// the logger current at that time, so call SetLogger before New or
// Initialize. Passing nil restores the silent default.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = nopLogger
	}
	logger.Store(l)
}
