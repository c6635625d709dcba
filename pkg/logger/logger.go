// Package logger provides leveled, structured logging in a key=value text
// format or as JSON lines, with per-component child loggers.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// Level represents log level
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // text (default) or json
	Output io.Writer
}

// Logger represents a structured logger
type Logger struct {
	level     Level
	format    string
	component string
	out       io.Writer
	logger    *log.Logger
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

// New creates a new logger
func New(cfg Config) *Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	format := strings.ToLower(cfg.Format)
	if format != "json" {
		format = "text"
	}
	return &Logger{
		level:  parseLevel(cfg.Level),
		format: format,
		out:    output,
		logger: newStdLogger(format, output, ""),
	}
}

// newStdLogger builds the underlying writer. JSON lines carry their own
// timestamp, so the stdlib prefix flags stay off in that mode.
func newStdLogger(format string, out io.Writer, component string) *log.Logger {
	if format == "json" {
		return log.New(out, "", 0)
	}
	prefix := ""
	if component != "" {
		prefix = fmt.Sprintf("[%s] ", component)
	}
	return log.New(out, prefix, log.LstdFlags)
}

// WithComponent creates a child logger tagged with a component name. In
// text mode the name becomes a line prefix, in JSON mode a field.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		level:     l.level,
		format:    l.format,
		component: component,
		out:       l.out,
		logger:    newStdLogger(l.format, l.out, component),
	}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...Field) {
	if l.level <= DebugLevel {
		l.log("DEBUG", msg, fields...)
	}
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...Field) {
	if l.level <= InfoLevel {
		l.log("INFO", msg, fields...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...Field) {
	if l.level <= WarnLevel {
		l.log("WARN", msg, fields...)
	}
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...Field) {
	if l.level <= ErrorLevel {
		l.log("ERROR", msg, fields...)
	}
}

func (l *Logger) log(level, msg string, fields ...Field) {
	if l.format == "json" {
		l.logJSON(level, msg, fields)
		return
	}
	if len(fields) == 0 {
		l.logger.Printf("[%s] %s", level, msg)
		return
	}

	fieldStrs := make([]string, 0, len(fields))
	for _, f := range fields {
		fieldStrs = append(fieldStrs, fmt.Sprintf("%s=%v", f.Key, f.Value))
	}
	l.logger.Printf("[%s] %s %s", level, msg, strings.Join(fieldStrs, " "))
}

// logJSON emits one object per line. Reserved keys (time, level, message,
// component) win over caller fields of the same name.
func (l *Logger) logJSON(level, msg string, fields []Field) {
	entry := make(map[string]interface{}, len(fields)+4)
	for _, f := range fields {
		entry[f.Key] = f.Value
	}
	entry["time"] = time.Now().Format(time.RFC3339Nano)
	entry["level"] = strings.ToLower(level)
	entry["message"] = msg
	if l.component != "" {
		entry["component"] = l.component
	}

	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf(`{"level":%q,"message":%q,"marshal_error":%q}`,
			strings.ToLower(level), msg, err.Error())
		return
	}
	l.logger.Print(string(data))
}

func parseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Field constructors

// String creates a string field
func String(key, val string) Field {
	return Field{Key: key, Value: val}
}

// Int creates an int field
func Int(key string, val int) Field {
	return Field{Key: key, Value: val}
}

// Int64 creates an int64 field
func Int64(key string, val int64) Field {
	return Field{Key: key, Value: val}
}

// Bool creates a bool field
func Bool(key string, val bool) Field {
	return Field{Key: key, Value: val}
}

// Float64 creates a float64 field
func Float64(key string, val float64) Field {
	return Field{Key: key, Value: val}
}

// Duration creates a field rendered as a Go duration string
func Duration(key string, val time.Duration) Field {
	return Field{Key: key, Value: val.String()}
}

// Error creates an error field
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "nil"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Any creates a field with any value
func Any(key string, val interface{}) Field {
	return Field{Key: key, Value: val}
}
