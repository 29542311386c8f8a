// Package logging provides the structured logger used across the pipeline.
//
// The Logger interface is what tasks, the watcher and the dev server depend
// on; the zerolog-backed PipelineLogger writes human console lines by
// default and JSON lines when configured to.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents different log levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name such as "debug" or "WARN".
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger interface for structured logging
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...interface{})
	Info(ctx context.Context, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
	Error(ctx context.Context, err error, msg string, fields ...interface{})

	With(fields ...interface{}) Logger
	WithComponent(component string) Logger
}

// PipelineLogger implements Logger on top of zerolog.
type PipelineLogger struct {
	logger    zerolog.Logger
	level     LogLevel
	component string
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      LogLevel
	Format     string // "console" or "json"
	Output     io.Writer
	TimeFormat string
	NoColor    bool
	Component  string
}

// DefaultConfig returns default logger configuration
func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:      LevelInfo,
		Format:     "console",
		Output:     os.Stderr,
		TimeFormat: time.TimeOnly,
	}
}

// NewLogger creates a new structured logger
func NewLogger(config *LoggerConfig) *PipelineLogger {
	if config == nil {
		config = DefaultConfig()
	}

	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	if config.Format != "json" {
		timeFormat := config.TimeFormat
		if timeFormat == "" {
			timeFormat = time.TimeOnly
		}
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat, NoColor: config.NoColor}
	}

	logger := zerolog.New(out).Level(config.Level.zerolog()).With().Timestamp().Logger()

	return &PipelineLogger{
		logger:    logger,
		level:     config.Level,
		component: config.Component,
	}
}

// Nop returns a logger that discards everything.
func Nop() *PipelineLogger {
	return &PipelineLogger{logger: zerolog.Nop(), level: LevelError}
}

// Debug logs a debug message
func (l *PipelineLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.log(l.logger.Debug(), nil, msg, fields)
}

// Info logs an info message
func (l *PipelineLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.log(l.logger.Info(), nil, msg, fields)
}

// Warn logs a warning message
func (l *PipelineLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.log(l.logger.Warn(), err, msg, fields)
}

// Error logs an error message
func (l *PipelineLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.log(l.logger.Error(), err, msg, fields)
}

// With creates a new logger with additional fields
func (l *PipelineLogger) With(fields ...interface{}) Logger {
	ctx := l.logger.With()
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			ctx = ctx.Interface(key, fields[i+1])
		}
	}

	return &PipelineLogger{
		logger:    ctx.Logger(),
		level:     l.level,
		component: l.component,
	}
}

// WithComponent creates a new logger with component context
func (l *PipelineLogger) WithComponent(component string) Logger {
	return &PipelineLogger{
		logger:    l.logger,
		level:     l.level,
		component: component,
	}
}

func (l *PipelineLogger) log(event *zerolog.Event, err error, msg string, fields []interface{}) {
	// nil when the level is disabled
	if event == nil {
		return
	}

	if l.component != "" {
		event = event.Str("component", l.component)
	}
	if err != nil {
		event = event.Err(err)
	}
	if len(fields) > 1 {
		event = event.Fields(evenFields(fields))
	}

	event.Msg(msg)
}

// evenFields drops a trailing key without a value and any non-string key.
func evenFields(fields []interface{}) []interface{} {
	out := make([]interface{}, 0, len(fields))
	for i := 0; i+1 < len(fields); i += 2 {
		if _, ok := fields[i].(string); ok {
			out = append(out, fields[i], fields[i+1])
		}
	}
	return out
}

// PerfLogger tracks the duration of one operation
type PerfLogger struct {
	Logger
	startTime time.Time
	operation string
}

// StartOperation begins performance tracking
func StartOperation(logger Logger, operation string) *PerfLogger {
	return &PerfLogger{
		Logger:    logger.With("operation", operation),
		startTime: time.Now(),
		operation: operation,
	}
}

// End completes performance tracking and logs the duration
func (p *PerfLogger) End(ctx context.Context, msg string, fields ...interface{}) {
	fields = append(fields, "duration", time.Since(p.startTime).Round(time.Millisecond).String())
	p.Info(ctx, msg, fields...)
}

// EndWithError completes performance tracking and logs an error
func (p *PerfLogger) EndWithError(ctx context.Context, err error, msg string, fields ...interface{}) {
	fields = append(fields, "duration", time.Since(p.startTime).Round(time.Millisecond).String())
	p.Error(ctx, err, msg, fields...)
}
