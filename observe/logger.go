package observe

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// Logger writes structured resolution and admin events.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: best-effort; a failed write never panics or reaches the caller.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)
	WithFragment(meta FragmentMeta) Logger
	With(fields ...Field) Logger
}

// Field is one key/value pair of a log line.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// LogLevel represents a logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLogLevel parses a string log level. Unknown values map to info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// jsonLogger writes one JSON object per line.
type jsonLogger struct {
	level  LogLevel
	writer io.Writer
	mu     *sync.Mutex
	attrs  map[string]any
}

// NewLogger creates a JSON logger writing to stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a JSON logger writing to w.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return &jsonLogger{
		level:  ParseLogLevel(level),
		writer: w,
		mu:     &sync.Mutex{},
		attrs:  make(map[string]any),
	}
}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger {
	return noopLogger{}
}

func (l *jsonLogger) with(extra map[string]any) *jsonLogger {
	attrs := make(map[string]any, len(l.attrs)+len(extra))
	for k, v := range l.attrs {
		attrs[k] = v
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return &jsonLogger{level: l.level, writer: l.writer, mu: l.mu, attrs: attrs}
}

// WithFragment returns a logger carrying fragment attributes.
func (l *jsonLogger) WithFragment(meta FragmentMeta) Logger {
	extra := map[string]any{
		"fragment.name":  meta.Name,
		"fragment.cache": meta.CacheName(),
	}
	if meta.Site != "" {
		extra["fragment.site"] = meta.Site
	}
	if meta.UserScoped {
		extra["fragment.user_scoped"] = true
	}
	return l.with(extra)
}

// With returns a logger carrying the given fields on every entry.
func (l *jsonLogger) With(fields ...Field) Logger {
	extra := make(map[string]any, len(fields))
	for _, f := range fields {
		extra[f.Key] = redact(f)
	}
	return l.with(extra)
}

func (l *jsonLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelInfo, msg, fields)
}

func (l *jsonLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelWarn, msg, fields)
}

func (l *jsonLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelError, msg, fields)
}

func (l *jsonLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelDebug, msg, fields)
}

func (l *jsonLogger) log(_ context.Context, level LogLevel, msg string, fields []Field) {
	if level < l.level {
		return
	}

	entry := make(map[string]any, len(l.attrs)+len(fields)+3)
	for k, v := range l.attrs {
		entry[k] = v
	}
	for _, f := range fields {
		entry[f.Key] = redact(f)
	}
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["msg"] = msg

	data, err := json.Marshal(entry)
	if err != nil {
		return // drop entries that cannot be encoded
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.writer.Write(data)
}

var redactedKeys = func() map[string]bool {
	m := make(map[string]bool, len(RedactedFields))
	for _, k := range RedactedFields {
		m[k] = true
	}
	return m
}()

func redact(f Field) any {
	if redactedKeys[f.Key] {
		return "[REDACTED]"
	}
	if err, ok := f.Value.(error); ok {
		return err.Error()
	}
	return f.Value
}

type noopLogger struct{}

func (noopLogger) Info(context.Context, string, ...Field)  {}
func (noopLogger) Warn(context.Context, string, ...Field)  {}
func (noopLogger) Error(context.Context, string, ...Field) {}
func (noopLogger) Debug(context.Context, string, ...Field) {}
func (n noopLogger) WithFragment(FragmentMeta) Logger      { return n }
func (n noopLogger) With(...Field) Logger                  { return n }

var (
	_ Logger = (*jsonLogger)(nil)
	_ Logger = noopLogger{}
)
