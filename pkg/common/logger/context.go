package logger

import (
	"context"
	"sync"
)

// LoggerContext accumulates attributes over the course of an operation so
// that the final log line carries everything learned along the way.
type LoggerContext struct {
	mu     sync.Mutex
	base   *Logger
	fields []any
}

// NewLoggerContext wraps the provided logger.
func NewLoggerContext(base *Logger) *LoggerContext {
	return &LoggerContext{base: base}
}

// Add appends a key/value pair to the accumulated attributes.
func (lc *LoggerContext) Add(key string, value any) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.fields = append(lc.fields, key, value)
}

func (lc *LoggerContext) logger() *Logger {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if len(lc.fields) == 0 {
		return lc.base
	}
	return lc.base.With(lc.fields...)
}

func (lc *LoggerContext) Debug(ctx context.Context, msg string, args ...any) {
	lc.logger().Debug(ctx, msg, args...)
}

func (lc *LoggerContext) Info(ctx context.Context, msg string, args ...any) {
	lc.logger().Info(ctx, msg, args...)
}

func (lc *LoggerContext) Warn(ctx context.Context, msg string, args ...any) {
	lc.logger().Warn(ctx, msg, args...)
}

func (lc *LoggerContext) Error(ctx context.Context, msg string, args ...any) {
	lc.logger().Error(ctx, msg, args...)
}
