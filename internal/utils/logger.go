package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel represents an enumeration of log levels
type LogLevel int

const (
	Critical LogLevel = 50
	Error    LogLevel = 40
	Warning  LogLevel = 30
	Info     LogLevel = 20
	Debug    LogLevel = 10
	NotSet   LogLevel = 0
)

var (
	defaultLevel      = Info
	defaultLevelMutex sync.RWMutex
)

// SetDefaultLogLevel changes the level used by loggers created afterwards
// without an explicit level.
func SetDefaultLogLevel(level LogLevel) {
	defaultLevelMutex.Lock()
	defer defaultLevelMutex.Unlock()
	defaultLevel = level
}

func currentDefaultLevel() LogLevel {
	defaultLevelMutex.RLock()
	defer defaultLevelMutex.RUnlock()
	return defaultLevel
}

// ParseLogLevel maps a level name to a LogLevel. Unknown names yield Info.
func ParseLogLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return Debug
	case "warn", "warning":
		return Warning
	case "error":
		return Error
	case "critical", "fatal":
		return Critical
	default:
		return Info
	}
}

// Logger provides structured logging with a component prefix
type Logger struct {
	prefix   string
	logger   *log.Logger
	logLevel LogLevel
	mu       sync.Mutex
}

// NewLogger creates a new logger with a given prefix
func NewLogger(prefix string, logLevel ...LogLevel) *Logger {
	return NewLoggerTo(os.Stdout, prefix, logLevel...)
}

// NewLoggerTo creates a logger writing to w.
func NewLoggerTo(w io.Writer, prefix string, logLevel ...LogLevel) *Logger {
	level := currentDefaultLevel()
	if len(logLevel) > 0 {
		level = logLevel[0]
	}
	return &Logger{
		prefix:   prefix,
		logger:   log.New(w, fmt.Sprintf("[%s] ", prefix), log.LstdFlags),
		logLevel: level,
	}
}

// SetLogLevel sets the logging level
func (l *Logger) SetLogLevel(logLevel LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logLevel = logLevel
}

func (l *Logger) Info(msg string, keyvals ...any)  { l.emit(Info, "INFO", msg, keyvals) }
func (l *Logger) Warn(msg string, keyvals ...any)  { l.emit(Warning, "WARN", msg, keyvals) }
func (l *Logger) Error(msg string, keyvals ...any) { l.emit(Error, "ERROR", msg, keyvals) }
func (l *Logger) Debug(msg string, keyvals ...any) { l.emit(Debug, "DEBUG", msg, keyvals) }

func (l *Logger) emit(level LogLevel, tag, msg string, keyvals []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logLevel > level {
		return
	}
	l.logger.Println(formatMessage(tag, msg, keyvals...))
}

// formatMessage formats a message with key-value pairs
func formatMessage(level, msg string, keyvals ...any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", level, msg)
	for i := 0; i+1 < len(keyvals); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keyvals[i], keyvals[i+1])
	}
	if len(keyvals)%2 == 1 {
		fmt.Fprintf(&b, " %v=<missing>", keyvals[len(keyvals)-1])
	}
	return b.String()
}
