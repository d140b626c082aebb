// Package logger provides support for initializing the log system.
package logger

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TraceIDFn represents a function that can return the trace id from
// the specified context.
type TraceIDFn func(ctx context.Context) string

// Logger represents a logger for logging information.
type Logger struct {
	core      *zap.SugaredLogger
	traceIDFn TraceIDFn
	events    Events
	attrs     []any
}

// New constructs a new log for application use.
func New(w io.Writer, minLevel Level, serviceName string, traceIDFn TraceIDFn) *Logger {
	return newLogger(w, minLevel, serviceName, traceIDFn, Events{}, nil)
}

// NewWithEvents constructs a new log for application use with events.
func NewWithEvents(w io.Writer, minLevel Level, serviceName string, traceIDFn TraceIDFn, events Events) *Logger {
	return newLogger(w, minLevel, serviceName, traceIDFn, events, nil)
}

// NewWithMetadata constructs a new log that stamps every entry with the
// provided static metadata (hostname, pod, namespace, ...).
func NewWithMetadata(
	w io.Writer,
	minLevel Level,
	serviceName string,
	traceIDFn TraceIDFn,
	events Events,
	metadata map[string]string,
) *Logger {
	return newLogger(w, minLevel, serviceName, traceIDFn, events, metadata)
}

// Noop returns a logger that discards everything. Useful for tests.
func Noop() *Logger {
	return &Logger{core: zap.NewNop().Sugar()}
}

func newLogger(
	w io.Writer,
	minLevel Level,
	serviceName string,
	traceIDFn TraceIDFn,
	events Events,
	metadata map[string]string,
) *Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encCfg.EncodeCaller = zapcore.ShortCallerEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(minLevel.zapLevel()),
	)

	fields := []zap.Field{zap.String("service", serviceName)}
	for k, v := range metadata {
		if v == "" {
			continue
		}
		fields = append(fields, zap.String(k, v))
	}

	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).With(fields...)

	return &Logger{
		core:      z.Sugar(),
		traceIDFn: traceIDFn,
		events:    events,
	}
}

// With returns a child logger that carries the provided key/value pairs on
// every subsequent entry.
func (log *Logger) With(args ...any) *Logger {
	attrs := make([]any, 0, len(log.attrs)+len(args))
	attrs = append(attrs, log.attrs...)
	attrs = append(attrs, args...)

	return &Logger{
		core:      log.core.With(args...),
		traceIDFn: log.traceIDFn,
		events:    log.events,
		attrs:     attrs,
	}
}

// Debug logs at LevelDebug with the given context.
func (log *Logger) Debug(ctx context.Context, msg string, args ...any) {
	log.write(ctx, LevelDebug, msg, args...)
}

// Info logs at LevelInfo with the given context.
func (log *Logger) Info(ctx context.Context, msg string, args ...any) {
	log.write(ctx, LevelInfo, msg, args...)
}

// Warn logs at LevelWarn with the given context.
func (log *Logger) Warn(ctx context.Context, msg string, args ...any) {
	log.write(ctx, LevelWarn, msg, args...)
}

// Error logs at LevelError with the given context.
func (log *Logger) Error(ctx context.Context, msg string, args ...any) {
	log.write(ctx, LevelError, msg, args...)
}

// Sync flushes any buffered entries.
func (log *Logger) Sync() error { return log.core.Sync() }

func (log *Logger) write(ctx context.Context, level Level, msg string, args ...any) {
	if !log.core.Desugar().Core().Enabled(level.zapLevel()) {
		return
	}

	if log.traceIDFn != nil {
		args = append(args, "trace_id", log.traceIDFn(ctx))
	}

	switch level {
	case LevelDebug:
		log.core.Debugw(msg, args...)
	case LevelInfo:
		log.core.Infow(msg, args...)
	case LevelWarn:
		log.core.Warnw(msg, args...)
	case LevelError:
		log.core.Errorw(msg, args...)
	}

	if fn := log.events.forLevel(level); fn != nil {
		fn(ctx, toRecord(level, msg, append(log.attrs, args...)))
	}
}

func toRecord(level Level, msg string, args []any) Record {
	attrs := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		attrs[fmt.Sprint(args[i])] = args[i+1]
	}

	return Record{
		Time:       time.Now(),
		Message:    msg,
		Level:      level,
		Attributes: attrs,
	}
}
