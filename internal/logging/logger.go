// Package logging provides categorized file-based debug logging for the
// eval builder. Logs are written per category under
// <workspace>/.evalbuilder/logs/ and are a no-op unless debug logging is
// enabled at initialization, so production runs stay silent.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category identifies one logging stream.
type Category string

const (
	CategoryBuilder Category = "builder" // top-level build/extend flow
	CategoryGateway Category = "gateway" // browser backend calls
	CategoryCorpus  Category = "corpus"  // example store operations
	CategorySynth   Category = "synth"   // orchestrator state transitions
	CategoryOracle  Category = "oracle"  // code-generation oracle calls
	CategoryHistory Category = "history" // synthesis attempt audit log
)

// Logger wraps a standard logger bound to one category file.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	mu      sync.RWMutex
	loggers = make(map[Category]*Logger)
	logsDir string
	enabled bool
)

// Initialize sets up the logging directory. When debug is false the package
// stays a silent no-op.
func Initialize(workspace string, debug bool) error {
	mu.Lock()
	defer mu.Unlock()

	enabled = debug
	if !debug {
		return nil
	}
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}
	logsDir = filepath.Join(workspace, ".evalbuilder", "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("create logs directory: %w", err)
	}
	return nil
}

// Get returns (or creates) the logger for a category. Disabled logging
// yields a no-op logger.
func Get(category Category) *Logger {
	mu.RLock()
	if !enabled || logsDir == "" {
		mu.RUnlock()
		return &Logger{category: category}
	}
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not open %s: %v\n", logPath, err)
		return &Logger{category: category}
	}
	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[INFO] %s", fmt.Sprintf(format, args...))
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[WARN] %s", fmt.Sprintf(format, args...))
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] %s", fmt.Sprintf(format, args...))
}

// CloseAll closes all open log files. Call at shutdown.
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			_ = l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Convenience helpers, one set per category.

func Builder(format string, args ...any)     { Get(CategoryBuilder).Info(format, args...) }
func BuilderWarn(format string, args ...any) { Get(CategoryBuilder).Warn(format, args...) }
func Gateway(format string, args ...any)     { Get(CategoryGateway).Info(format, args...) }
func GatewayWarn(format string, args ...any) { Get(CategoryGateway).Warn(format, args...) }
func Corpus(format string, args ...any)      { Get(CategoryCorpus).Info(format, args...) }
func CorpusError(format string, args ...any) { Get(CategoryCorpus).Error(format, args...) }
func Synth(format string, args ...any)       { Get(CategorySynth).Info(format, args...) }
func SynthWarn(format string, args ...any)   { Get(CategorySynth).Warn(format, args...) }
func Oracle(format string, args ...any)      { Get(CategoryOracle).Info(format, args...) }
func OracleWarn(format string, args ...any)  { Get(CategoryOracle).Warn(format, args...) }
func History(format string, args ...any)     { Get(CategoryHistory).Info(format, args...) }
func HistoryWarn(format string, args ...any) { Get(CategoryHistory).Warn(format, args...) }
