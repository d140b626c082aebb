package logger

import (
	"context"
	"time"

	"go.uber.org/zap/zapcore"
)

// Level represents the severity of a log entry.
type Level int8

// Supported logging levels.
const (
	LevelDebug Level = Level(zapcore.DebugLevel)
	LevelInfo  Level = Level(zapcore.InfoLevel)
	LevelWarn  Level = Level(zapcore.WarnLevel)
	LevelError Level = Level(zapcore.ErrorLevel)
)

// ParseLevel converts a textual level ("debug", "info", ...) into a Level.
// Unknown values fall back to LevelInfo.
func ParseLevel(s string) Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return LevelInfo
	}
	return Level(l)
}

func (l Level) zapLevel() zapcore.Level { return zapcore.Level(l) }

// Record represents the data that is being logged.
type Record struct {
	Time       time.Time
	Message    string
	Level      Level
	Attributes map[string]any
}

// EventFn is a function to be executed when configured against a log level.
type EventFn func(ctx context.Context, r Record)

// Events contains an assignment of an event function to a log level.
type Events struct {
	Debug EventFn
	Info  EventFn
	Warn  EventFn
	Error EventFn
}

func (e Events) forLevel(level Level) EventFn {
	switch level {
	case LevelDebug:
		return e.Debug
	case LevelInfo:
		return e.Info
	case LevelWarn:
		return e.Warn
	case LevelError:
		return e.Error
	}
	return nil
}
