// Package logger provides a structured, leveled logger and bridges it to
// github.com/go-logr/logr so every component in this module (root package,
// engine adapters, download tasks) depends on the logr.Logger interface
// rather than this concrete type.
//
//	sink := logger.New(logger.LevelInfo, logger.FormatJSON, os.Stderr)
//	log := logr.New(sink)
//	log.Info("request started", "method", "GET", "url", u)
//
// A package-level convenience logger is also offered, matching the
// instance-plus-global pattern, for callers that don't want to thread a
// logr.Logger through.
//
// Log levels: DEBUG < INFO < WARN < ERROR.
// Output formats: FormatText (human-readable), FormatJSON (structured).
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// Level is the logging verbosity threshold. A threshold also emits every
// more severe level (LevelInfo also emits LevelWarn and LevelError).
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Format is the output encoding for log entries.
type Format int

const (
	// FormatText outputs human-readable log lines.
	FormatText Format = iota
	// FormatJSON outputs structured JSON log entries.
	FormatJSON
)

// Logger is a logr.LogSink implementation with configurable level, format,
// and output writer. It is safe for concurrent use.
type Logger struct {
	output io.Writer
	level  Level
	format Format
	mu     sync.Mutex
	name   string
	kv     []any
}

var _ logr.LogSink = (*Logger)(nil)

// logEntry represents a single log entry for JSON output.
type logEntry struct {
	Fields  map[string]any `json:"fields,omitempty"`
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Logger  string         `json:"logger,omitempty"`
	Message string         `json:"message"`
}

// New creates a new Logger with the specified level, format, and output
// writer. If output is nil, os.Stderr is used.
func New(level Level, format Format, output io.Writer) *Logger {
	if output == nil {
		output = os.Stderr
	}
	return &Logger{level: level, format: format, output: output}
}

// NewLogr wraps a freshly constructed Logger as a logr.Logger, the form
// every adapter-facing API in this module accepts (Session.Logger, Engine
// constructors).
func NewLogr(level Level, format Format, output io.Writer) logr.Logger {
	return logr.New(New(level, format, output))
}

// Init implements logr.LogSink. This logger needs no deferred setup.
func (l *Logger) Init(info logr.RuntimeInfo) {}

// Enabled implements logr.LogSink: a call site is enabled when its V-level
// (0 = Info, higher = more verbose) does not exceed the configured Level.
func (l *Logger) Enabled(level int) bool {
	if level > 0 {
		return l.level <= LevelDebug
	}
	return l.level <= LevelInfo
}

// Info implements logr.LogSink.
func (l *Logger) Info(level int, msg string, keysAndValues ...any) {
	lvl := LevelInfo
	if level > 0 {
		lvl = LevelDebug
	}
	l.log(lvl, msg, nil, keysAndValues)
}

// Error implements logr.LogSink.
func (l *Logger) Error(err error, msg string, keysAndValues ...any) {
	l.log(LevelError, msg, err, keysAndValues)
}

// WithValues implements logr.LogSink, returning a sink that always
// appends the given key/value pairs to subsequent log calls.
func (l *Logger) WithValues(keysAndValues ...any) logr.LogSink {
	c := l.clone()
	c.kv = append(append([]any(nil), l.kv...), keysAndValues...)
	return c
}

// WithName implements logr.LogSink, appending a dotted name segment.
func (l *Logger) WithName(name string) logr.LogSink {
	c := l.clone()
	if c.name == "" {
		c.name = name
	} else {
		c.name = c.name + "." + name
	}
	return c
}

func (l *Logger) clone() *Logger {
	return &Logger{output: l.output, level: l.level, format: l.format, name: l.name, kv: l.kv}
}

func (l *Logger) log(level Level, msg string, err error, keysAndValues []any) {
	if level < l.level {
		return
	}

	fields := kvToMap(l.kv)
	for k, v := range kvToMap(keysAndValues) {
		fields[k] = v
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == FormatJSON {
		entry := logEntry{
			Time:    time.Now().Format(time.RFC3339),
			Level:   levelToString(level),
			Logger:  l.name,
			Message: msg,
			Fields:  fields,
		}
		data, _ := json.Marshal(entry)
		fmt.Fprintln(l.output, string(data))
		return
	}

	prefix := levelToString(level)
	if l.name != "" {
		prefix = prefix + " " + l.name
	}
	if len(fields) > 0 {
		fmt.Fprintf(l.output, "[%s] %s %v\n", prefix, msg, fields)
	} else {
		fmt.Fprintf(l.output, "[%s] %s\n", prefix, msg)
	}
}

func kvToMap(kv []any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		m[key] = kv[i+1]
	}
	return m
}

func levelToString(level Level) string {
	switch level {
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

// global is a package-level convenience logger for callers that don't
// thread a logr.Logger through, mirroring the Init/Debug/Info/Warn/Error
// global functions of an instance-plus-global logging package.
var global logr.Logger = logr.Discard()

// Init installs the package-level convenience logger.
func Init(level Level, format Format, output ...io.Writer) {
	var out io.Writer
	if len(output) > 0 && output[0] != nil {
		out = output[0]
	}
	global = NewLogr(level, format, out)
}

func Debug(msg string, keysAndValues ...any) { global.V(1).Info(msg, keysAndValues...) }
func Info(msg string, keysAndValues ...any)  { global.Info(msg, keysAndValues...) }
func Warn(msg string, keysAndValues ...any) {
	global.Info(msg, append(append([]any(nil), "level", "warn"), keysAndValues...)...)
}
func Error(err error, msg string, keysAndValues ...any) { global.Error(err, msg, keysAndValues...) }
