// Package logging provides config-driven categorized file-based logging
// for the sidecar. Logs are written to the sidecar home's logs/
// directory with separate files per category. Logging is controlled by
// the logging section of config.yaml - when disabled, no logs are
// written and every logger method is a no-op.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Category represents a log category/subsystem
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, config, doctor checks
	CategorySession   Category = "session"   // Log tailing, event parsing
	CategoryAgent     Category = "agent"     // Agent loop, per-event cycles
	CategoryExtract   Category = "extract"   // Fact extraction, recognizers
	CategoryRetrieval Category = "retrieval" // Knowledge store queries, ingest
	CategoryProvider  Category = "provider"  // Model backends, fallback chains
	CategoryAudit     Category = "audit"     // Audit trail writes
	CategoryUI        Category = "ui"        // Terminal viewer
)

// loggingConfig mirrors the logging section of config.Config
// to avoid circular imports
type loggingConfig struct {
	Debug      bool            `yaml:"debug"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// configFile structure for reading config.yaml
type configFile struct {
	Logging loggingConfig `yaml:"logging"`
}

// StructuredLogEntry represents a JSON log line, emitted when
// json_format is set in the config.
type StructuredLogEntry struct {
	Timestamp int64                  `json:"ts"` // Unix milliseconds
	Category  string                 `json:"cat"`
	Level     string                 `json:"lvl"`
	Message   string                 `json:"msg"`
	RequestID string                 `json:"req,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger wraps a standard logger with category and file output
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	config    loggingConfig
	configMu  sync.RWMutex
	logLevel  int
)

// Log levels
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// Initialize sets up the logging directory and loads config.
// Should be called once at startup with the sidecar home directory.
func Initialize(baseDir string) error {
	if baseDir == "" {
		return fmt.Errorf("base directory required")
	}

	logsDir = filepath.Join(baseDir, "logs")

	if err := loadConfig(filepath.Join(baseDir, "config.yaml")); err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not load config: %v\n", err)
		config.Debug = false
	}

	if !config.Debug {
		return nil // Silent no-op when debug logging is off
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== sidecar logging initialized ===")
	boot.Info("Logs directory: %s", logsDir)
	boot.Info("Log level: %s", levelNames[logLevel])
	if len(config.Categories) > 0 {
		enabled := 0
		for _, on := range config.Categories {
			if on {
				enabled++
			}
		}
		boot.Info("Enabled categories: %d/%d", enabled, len(config.Categories))
	} else {
		boot.Info("All categories enabled (no category filter)")
	}

	return nil
}

// loadConfig reads the logging section from config.yaml
func loadConfig(path string) error {
	configMu.Lock()
	defer configMu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config = logging off
			config = loggingConfig{}
			return nil
		}
		return err
	}

	var cf configFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	config = cf.Logging

	switch strings.ToLower(config.Level) {
	case "debug":
		logLevel = LevelDebug
	case "info":
		logLevel = LevelInfo
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelDebug
	}

	return nil
}

// SetDebugMode overrides the config-derived setting, for the --debug
// flag. Loggers already created by Get keep their old state, so call
// this immediately after Initialize.
func SetDebugMode(enabled bool) {
	configMu.Lock()
	config.Debug = enabled
	configMu.Unlock()
	if enabled && logsDir != "" {
		os.MkdirAll(logsDir, 0755)
	}
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.Debug
}

// IsCategoryEnabled returns whether a specific category is enabled.
// Categories absent from the config default to enabled; an explicit
// false entry disables one.
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()
	if !config.Debug {
		return false
	}
	if enabled, ok := config.Categories[string(category)]; ok {
		return enabled
	}
	return true
}

// Get returns the logger for a category, opening its file on first use.
// When the category is disabled the returned logger discards everything.
func Get(category Category) *Logger {
	loggersMu.RLock()
	l, ok := loggers[category]
	loggersMu.RUnlock()
	if ok {
		return l
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	l = &Logger{category: category}
	if IsCategoryEnabled(category) {
		date := time.Now().Format("2006-01-02")
		path := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			l.file = file
			l.logger = log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds)
		}
	}
	loggers[category] = l
	return l
}

func (l *Logger) shouldLog(level int) bool {
	if l == nil || l.logger == nil {
		return false
	}
	configMu.RLock()
	defer configMu.RUnlock()
	return level >= logLevel
}

func (l *Logger) write(level int, requestID, format string, args ...interface{}) {
	if !l.shouldLog(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)

	configMu.RLock()
	asJSON := config.JSONFormat
	configMu.RUnlock()

	if asJSON {
		entry := StructuredLogEntry{
			Timestamp: time.Now().UnixMilli(),
			Category:  string(l.category),
			Level:     strings.ToLower(levelNames[level]),
			Message:   msg,
			RequestID: requestID,
		}
		if data, err := json.Marshal(entry); err == nil {
			l.logger.Println(string(data))
			return
		}
	}

	if requestID != "" {
		l.logger.Printf("[%s] [req:%s] %s", levelNames[level], requestID, msg)
		return
	}
	l.logger.Printf("[%s] %s", levelNames[level], msg)
}

// Debug logs a debug-level message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(LevelDebug, "", format, args...)
}

// Info logs an info-level message
func (l *Logger) Info(format string, args ...interface{}) {
	l.write(LevelInfo, "", format, args...)
}

// Warn logs a warning
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(LevelWarn, "", format, args...)
}

// Error logs an error
func (l *Logger) Error(format string, args ...interface{}) {
	l.write(LevelError, "", format, args...)
}

// CloseAll closes every open log file and resets the registry.
// Safe to call on shutdown even when logging never initialized.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Convenience wrappers for the common categories.

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootError(format string, args ...interface{}) { Get(CategoryBoot).Error(format, args...) }

func Session(format string, args ...interface{})      { Get(CategorySession).Info(format, args...) }
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debug(format, args...) }
func SessionWarn(format string, args ...interface{})  { Get(CategorySession).Warn(format, args...) }
func SessionError(format string, args ...interface{}) { Get(CategorySession).Error(format, args...) }

func Agent(format string, args ...interface{})      { Get(CategoryAgent).Info(format, args...) }
func AgentDebug(format string, args ...interface{}) { Get(CategoryAgent).Debug(format, args...) }
func AgentWarn(format string, args ...interface{})  { Get(CategoryAgent).Warn(format, args...) }
func AgentError(format string, args ...interface{}) { Get(CategoryAgent).Error(format, args...) }

func Extract(format string, args ...interface{})      { Get(CategoryExtract).Info(format, args...) }
func ExtractDebug(format string, args ...interface{}) { Get(CategoryExtract).Debug(format, args...) }
func ExtractError(format string, args ...interface{}) { Get(CategoryExtract).Error(format, args...) }

func Retrieval(format string, args ...interface{})      { Get(CategoryRetrieval).Info(format, args...) }
func RetrievalDebug(format string, args ...interface{}) { Get(CategoryRetrieval).Debug(format, args...) }
func RetrievalError(format string, args ...interface{}) { Get(CategoryRetrieval).Error(format, args...) }

func Provider(format string, args ...interface{})      { Get(CategoryProvider).Info(format, args...) }
func ProviderDebug(format string, args ...interface{}) { Get(CategoryProvider).Debug(format, args...) }
func ProviderWarn(format string, args ...interface{})  { Get(CategoryProvider).Warn(format, args...) }
func ProviderError(format string, args ...interface{}) { Get(CategoryProvider).Error(format, args...) }

func Audit(format string, args ...interface{})      { Get(CategoryAudit).Info(format, args...) }
func AuditError(format string, args ...interface{}) { Get(CategoryAudit).Error(format, args...) }

func UI(format string, args ...interface{})      { Get(CategoryUI).Info(format, args...) }
func UIError(format string, args ...interface{}) { Get(CategoryUI).Error(format, args...) }

// RequestLogger carries a correlation id so one agent cycle's lines can
// be picked out of a busy log.
type RequestLogger struct {
	logger    *Logger
	requestID string
	fields    map[string]interface{}
}

// WithRequestID returns a logger that tags every line with the id.
func WithRequestID(category Category, requestID string) *RequestLogger {
	return &RequestLogger{
		logger:    Get(category),
		requestID: requestID,
		fields:    make(map[string]interface{}),
	}
}

// WithField attaches a key=value pair to subsequent lines.
func (r *RequestLogger) WithField(key string, value interface{}) *RequestLogger {
	r.fields[key] = value
	return r
}

func (r *RequestLogger) message(format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	if len(r.fields) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for k, v := range r.fields {
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	return b.String()
}

func (r *RequestLogger) Debug(format string, args ...interface{}) {
	r.logger.write(LevelDebug, r.requestID, "%s", r.message(format, args...))
}

func (r *RequestLogger) Info(format string, args ...interface{}) {
	r.logger.write(LevelInfo, r.requestID, "%s", r.message(format, args...))
}

func (r *RequestLogger) Warn(format string, args ...interface{}) {
	r.logger.write(LevelWarn, r.requestID, "%s", r.message(format, args...))
}

func (r *RequestLogger) Error(format string, args ...interface{}) {
	r.logger.write(LevelError, r.requestID, "%s", r.message(format, args...))
}

// Timer measures one operation and logs the duration when stopped.
type Timer struct {
	logger    *Logger
	operation string
	start     time.Time
}

// StartTimer begins timing an operation in the given category.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{logger: Get(category), operation: operation, start: time.Now()}
}

// Stop logs the elapsed time at debug level and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	t.logger.Debug("%s took %s", t.operation, elapsed)
	return elapsed
}

// StopWithThreshold logs at warn level when the operation ran longer
// than threshold, at debug level otherwise.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		t.logger.Warn("%s took %s (threshold %s)", t.operation, elapsed, threshold)
		return elapsed
	}
	t.logger.Debug("%s took %s", t.operation, elapsed)
	return elapsed
}
