// Package observability provides structured logging, Prometheus metrics,
// and OpenTelemetry tracing shared by every subsystem.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
)

// Logger wraps slog with request/task correlation and secret redaction,
// grounded on the teacher's internal/observability/logging.go.
type Logger struct {
	logger  *slog.Logger
	redacts []*regexp.Regexp
}

// LogConfig configures logging output.
type LogConfig struct {
	Level     string // debug, info, warn, error
	Format    string // json or text
	Output    io.Writer
	AddSource bool
}

var defaultRedactPatterns = []string{
	`(?i)(api[_-]?key|token|secret|password)["':= ]+[A-Za-z0-9_\-\.]{8,}`,
}

type ctxKey string

const (
	ctxRequestID ctxKey = "request_id"
	ctxTaskID    ctxKey = "task_id"
)

// NewLogger builds a Logger from config.
func NewLogger(cfg LogConfig) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{Level: LogLevelFromString(cfg.Level), AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}

	patterns := make([]*regexp.Regexp, 0, len(defaultRedactPatterns))
	for _, p := range defaultRedactPatterns {
		if re, err := regexp.Compile(p); err == nil {
			patterns = append(patterns, re)
		}
	}
	return &Logger{logger: slog.New(handler), redacts: patterns}
}

// LogLevelFromString parses a level name, defaulting to Info.
func LogLevelFromString(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithContext attaches request/task IDs found in ctx as structured fields.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	attrs := []any{}
	if v, ok := ctx.Value(ctxRequestID).(string); ok && v != "" {
		attrs = append(attrs, "request_id", v)
	}
	if v, ok := ctx.Value(ctxTaskID).(string); ok && v != "" {
		attrs = append(attrs, "task_id", v)
	}
	if len(attrs) == 0 {
		return l
	}
	return &Logger{logger: l.logger.With(attrs...), redacts: l.redacts}
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args...)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args...)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args...)
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	l.WithContext(ctx).logger.Log(ctx, level, msg, l.redactArgs(args)...)
}

func (l *Logger) redactArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok {
			out[i] = l.redactString(s)
			continue
		}
		out[i] = a
	}
	return out
}

func (l *Logger) redactString(s string) string {
	for _, re := range l.redacts {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

// AddRequestID returns a context carrying a request correlation ID.
func AddRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

// AddTaskID returns a context carrying the current task ID being executed.
func AddTaskID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxTaskID, id)
}

// GetRequestID extracts the request ID set by AddRequestID, if any.
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxRequestID).(string)
	return v
}
