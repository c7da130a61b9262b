package godb

import "go.uber.org/zap"

// Logger is the package-level structured logger used by the buffer pool to
// report evictions, lock requests, and deadlock aborts. Tests
// that don't care about log output can install a no-op logger with
// SetLogger.
var Logger *zap.SugaredLogger

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	Logger = l.Sugar()
}

// SetLogger overrides the package logger, e.g. with zap.NewNop().Sugar() in
// tests that don't want production logging overhead.
func SetLogger(l *zap.SugaredLogger) {
	Logger = l
}
