// Package logging holds the process-wide level logger and the session
// telemetry pipeline (sink, queue, archive worker, S3 writer).
package logging

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"llm_router/internal/utils"
)

// Levels mirror utils.LogLevel so one LOG_LEVEL drives both loggers.
const (
	Critical = int(utils.Critical)
	Fatal    = Critical
	Error    = int(utils.Error)
	Warning  = int(utils.Warning)
	Info     = int(utils.Info)
	Debug    = int(utils.Debug)
	NotSet   = int(utils.NotSet)
)

var (
	mu     sync.RWMutex
	level  = Warning
	output = log.New(os.Stderr, "", log.LstdFlags)
)

func init() {
	if name := os.Getenv("LOG_LEVEL"); name != "" {
		Configure(name)
	}
	if local := strings.ToLower(os.Getenv("LOCAL")); local == "true" || local == "1" {
		Configure("debug")
	}
}

// Configure sets the global level and the default level of component
// loggers from a name such as "debug" or "warn".
func Configure(name string) {
	l := utils.ParseLogLevel(name)
	SetLogLevel(int(l))
	utils.SetDefaultLogLevel(l)
}

// SetLogLevel sets the minimum level written by the package functions.
func SetLogLevel(l int) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// LogLevel reports the minimum level written by the package functions.
func LogLevel() int {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

// SetOutput redirects the package logger.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output.SetOutput(w)
}

func logf(l int, tag, format string, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if level <= l {
		output.Printf("["+tag+"] "+format, v...)
	}
}

func Debugf(format string, v ...interface{})    { logf(Debug, "DEBUG", format, v...) }
func Infof(format string, v ...interface{})     { logf(Info, "INFO", format, v...) }
func Warningf(format string, v ...interface{})  { logf(Warning, "WARN", format, v...) }
func Errorf(format string, v ...interface{})    { logf(Error, "ERROR", format, v...) }
func Criticalf(format string, v ...interface{}) { logf(Critical, "CRITICAL", format, v...) }

// Fatalf logs regardless of level and exits.
func Fatalf(format string, v ...interface{}) {
	mu.RLock()
	out := output
	mu.RUnlock()
	out.Fatalf("[FATAL] "+format, v...)
}
