// Package logger writes one JSON object per line to stderr. Services log
// through the package-level functions with a "[pkg.Type] message" prefix and
// key/value pairs; long-running components take a child logger from
// Component so every line carries its name.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level represents the severity of a log entry.
type Level int32

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

func (l Level) String() string {
	if n, ok := levelNames[l]; ok {
		return n
	}
	return fmt.Sprintf("LEVEL(%d)", int32(l))
}

// ParseLevel accepts the level names in any case. An empty string is INFO.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

// sink is the shared output of a logger and all its children.
type sink struct {
	mu        sync.Mutex
	out       io.Writer
	level     int32
	redactPII int32
	now       func() time.Time
}

// Logger provides structured JSON logging with optional PII redaction.
type Logger struct {
	sink   *sink
	fields []interface{}
}

// New returns a logger writing to out.
func New(out io.Writer, level Level) *Logger {
	return &Logger{sink: &sink{out: out, level: int32(level), redactPII: 1, now: time.Now}}
}

var defaultLogger = New(os.Stderr, INFO)

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) { atomic.StoreInt32(&defaultLogger.sink.level, int32(l)) }

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) {
	var v int32
	if r {
		v = 1
	}
	atomic.StoreInt32(&defaultLogger.sink.redactPII, v)
}

// SetOutput redirects the default logger. Tests use it to capture lines.
func SetOutput(w io.Writer) {
	defaultLogger.sink.mu.Lock()
	defaultLogger.sink.out = w
	defaultLogger.sink.mu.Unlock()
}

// Default returns the package-level logger.
func Default() *Logger { return defaultLogger }

// Component returns a child of the default logger tagged with name.
func Component(name string) *Logger { return defaultLogger.With("component", name) }

// With returns a child logger that adds the key/value pairs to every line.
func (l *Logger) With(fields ...interface{}) *Logger {
	merged := make([]interface{}, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &Logger{sink: l.sink, fields: merged}
}

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.log(DEBUG, msg, fields) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.log(INFO, msg, fields) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.log(WARN, msg, fields) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields) }

func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(DEBUG, msg, fields) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.log(INFO, msg, fields) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.log(WARN, msg, fields) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(ERROR, msg, fields) }

func (l *Logger) log(level Level, msg string, fields []interface{}) {
	s := l.sink
	if int32(level) < atomic.LoadInt32(&s.level) {
		return
	}
	redact := atomic.LoadInt32(&s.redactPII) == 1

	entry := map[string]interface{}{
		"time":  s.now().UTC().Format(time.RFC3339),
		"level": levelNames[level],
		"msg":   msg,
	}
	addFields(entry, l.fields, redact)
	addFields(entry, fields, redact)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	s.mu.Lock()
	fmt.Fprintln(s.out, string(data))
	s.mu.Unlock()
}

// reservedKeys are written by log itself; fields using them are prefixed
// with "field_" instead of replacing the entry's own values.
var reservedKeys = map[string]bool{"time": true, "level": true, "msg": true}

// addFields copies key/value pairs into entry. A trailing key without a
// value is dropped.
func addFields(entry map[string]interface{}, fields []interface{}, redact bool) {
	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		if reservedKeys[key] {
			key = "field_" + key
		}
		val := fmt.Sprintf("%v", fields[i+1])
		if redact {
			val = redactPIIValue(key, val)
		}
		entry[key] = val
	}
}
