// Package logging is the structured logging abstraction the saga
// coordination core logs through: every package holds an ILogger field
// rather than calling a package-level logger directly, so tests can
// substitute NoopLogger and production wiring can substitute a richer
// backend without touching call sites.
package logging

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Level is a logger's minimum severity; StdLogger does not currently
// filter on it; it exists so a future backend can.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ILogger is the contract every coordination-core component logs
// through.
type ILogger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)

	// WithFields returns a new ILogger with fields always attached,
	// for a handler to stamp saga_id/saga_type onto every subsequent
	// call without threading them through each one.
	WithFields(fields ...Field) ILogger
	WithField(key string, value any) ILogger
}

// Field is one structured key/value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field { return Field{Key: key, Value: value} }
func Int(key string, value int) Field { return Field{Key: key, Value: value} }
func Any(key string, value any) Field { return Field{Key: key, Value: value} }
func Error(err error) Field           { return Field{Key: "error", Value: err} }
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// StdLogger is the default ILogger: log.Println with a component/event
// prefix, suitable for local development and for the example
// participant binaries. Production wiring may substitute a different
// ILogger implementation without changing any call site.
type StdLogger struct {
	prefix string
	fields []Field
}

// NewStdLogger creates a StdLogger; prefix is typically a service name.
func NewStdLogger(prefix string) *StdLogger {
	return &StdLogger{prefix: prefix, fields: make([]Field, 0)}
}

func (l *StdLogger) format(msg string, fields ...Field) string {
	allFields := append(append([]Field{}, l.fields...), fields...)

	var component, event string
	otherFields := make([]Field, 0, len(allFields))
	for _, f := range allFields {
		switch f.Key {
		case "component":
			component = formatValue(f.Value)
		case "event":
			event = formatValue(f.Value)
		default:
			otherFields = append(otherFields, f)
		}
	}

	result := l.prefix
	if component != "" {
		if result != "" {
			result += " "
		}
		result += "[" + component + "]"
	}
	if event != "" {
		if result != "" {
			result += " "
		}
		result += "event=" + event
	}
	if msg != "" {
		if result != "" {
			result += " "
		}
		result += msg
	}
	for _, f := range otherFields {
		result += " " + f.Key + "=" + formatValue(f.Value)
	}
	return result
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case error:
		return val.Error()
	default:
		return fmt.Sprint(val)
	}
}

func (l *StdLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	log.Println("[DEBUG]", l.format(msg, fields...))
}

func (l *StdLogger) Info(ctx context.Context, msg string, fields ...Field) {
	log.Println("[INFO]", l.format(msg, fields...))
}

func (l *StdLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	log.Println("[WARN]", l.format(msg, fields...))
}

func (l *StdLogger) Error(ctx context.Context, msg string, fields ...Field) {
	log.Println("[ERROR]", l.format(msg, fields...))
}

func (l *StdLogger) WithFields(fields ...Field) ILogger {
	newFields := make([]Field, len(l.fields)+len(fields))
	copy(newFields, l.fields)
	copy(newFields[len(l.fields):], fields)
	return &StdLogger{prefix: l.prefix, fields: newFields}
}

func (l *StdLogger) WithField(key string, value any) ILogger {
	return l.WithFields(Field{Key: key, Value: value})
}

// NoopLogger discards everything; used by tests that construct a
// Coordinator/Engine/Client without caring about log output.
type NoopLogger struct{}

func NewNoopLogger() *NoopLogger { return &NoopLogger{} }

func (l *NoopLogger) Debug(ctx context.Context, msg string, fields ...Field) {}
func (l *NoopLogger) Info(ctx context.Context, msg string, fields ...Field)  {}
func (l *NoopLogger) Warn(ctx context.Context, msg string, fields ...Field)  {}
func (l *NoopLogger) Error(ctx context.Context, msg string, fields ...Field) {}
func (l *NoopLogger) WithFields(fields ...Field) ILogger                     { return l }
func (l *NoopLogger) WithField(key string, value any) ILogger                { return l }

var globalLogger ILogger = NewStdLogger("")

// SetLogger replaces the global logger ComponentLogger derives from.
func SetLogger(logger ILogger) { globalLogger = logger }

// GetLogger returns the current global logger.
func GetLogger() ILogger { return globalLogger }

// ComponentLogger builds a component-scoped logger off the global
// logger. Intended for use at construction time (participant.NewClient,
// sqlstore.Open, ...) as a fallback when no ILogger is passed in; runtime code should
// hold the logger a constructor gave it, not call ComponentLogger
// itself.
func ComponentLogger(component string) ILogger {
	return GetLogger().WithField("component", component)
}
