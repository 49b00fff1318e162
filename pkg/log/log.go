package log

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

const DefaultLoggerFlag = log.Ldate | log.Ltime | log.LUTC

var (
	defaultLogger *Logger
	defaultMu     sync.RWMutex
)

func init() {
	defaultLogger = New(os.Stdout, "", DefaultLoggerFlag, LogLevelDebug)
}

type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

func (level LogLevel) String() string {
	switch level {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	case LogLevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// ParseLogLevel parses a log level string into a LogLevel.
// Valid log levels are: error, warn, info, debug, trace.
func ParseLogLevel(level string) (LogLevel, error) {
	switch level {
	case "error":
		return LogLevelError, nil
	case "warn":
		return LogLevelWarn, nil
	case "info":
		return LogLevelInfo, nil
	case "debug":
		return LogLevelDebug, nil
	case "trace":
		return LogLevelTrace, nil
	default:
		return LogLevelError, fmt.Errorf("unknown log level: %s", level)
	}
}

// SetDefaultLogger replaces the logger used by the package level functions.
func SetDefaultLogger(logger *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = logger
}

// Default returns the logger used by the package level functions.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

type field struct {
	key   string
	value interface{}
}

// Logger writes one JSON object per line. Child loggers created with With
// share the parent's output and level.
type Logger struct {
	logger *log.Logger
	level  *levelVar
	fields []field
}

type levelVar struct {
	mu    sync.RWMutex
	level LogLevel
}

func (v *levelVar) get() LogLevel {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.level
}

func (v *levelVar) set(level LogLevel) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.level = level
}

func New(out io.Writer, prefix string, flag int, level LogLevel) *Logger {
	return &Logger{
		logger: log.New(out, prefix, flag),
		level:  &levelVar{level: level},
	}
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	return New(io.Discard, "", 0, LogLevelError)
}

func (l *Logger) SetLevel(level LogLevel) {
	l.level.set(level)
}

func (l *Logger) Level() LogLevel {
	return l.level.get()
}

// With returns a child logger that adds key=value to every entry.
func (l *Logger) With(key string, value interface{}) *Logger {
	fields := make([]field, len(l.fields), len(l.fields)+1)
	copy(fields, l.fields)
	return &Logger{
		logger: l.logger,
		level:  l.level,
		fields: append(fields, field{key: key, value: value}),
	}
}

func (l *Logger) logf(level LogLevel, format string, args ...interface{}) {
	if level > l.level.get() {
		return
	}
	logEntry := make(map[string]interface{}, len(l.fields)+2)
	for _, f := range l.fields {
		logEntry[f.key] = f.value
	}
	logEntry["level"] = level.String()
	logEntry["msg"] = fmt.Sprintf(format, args...)
	msgBytes, err := json.Marshal(logEntry)
	if err != nil {
		l.logger.Printf(`{"level":"error","msg":"failed to marshal log entry: %v"}`, err)
		return
	}
	l.logger.Print(string(msgBytes))
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.logf(LogLevelError, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.logf(LogLevelWarn, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.logf(LogLevelInfo, format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.logf(LogLevelDebug, format, args...)
}

func (l *Logger) Trace(format string, args ...interface{}) {
	l.logf(LogLevelTrace, format, args...)
}

func Info(format string, args ...interface{}) {
	Default().Info(format, args...)
}

func Error(format string, args ...interface{}) {
	Default().Error(format, args...)
}

func Warn(format string, args ...interface{}) {
	Default().Warn(format, args...)
}

func Debug(format string, args ...interface{}) {
	Default().Debug(format, args...)
}

func Trace(format string, args ...interface{}) {
	Default().Trace(format, args...)
}
