// Package logger provides structured logging with backend-specific prefixes
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Logger interface for abstracted logging
type Logger interface {
	Info(message string, fields ...Field)
	Error(message string, fields ...Field)
	Warn(message string, fields ...Field)
	Debug(message string, fields ...Field)
	Success(message string, fields ...Field)
	WithTarget(target string) Logger
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

// WithField creates a new field
func WithField(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// WithError creates an "error" field
func WithError(err error) Field {
	return Field{Key: "error", Value: err}
}

// TargetLogger implements Logger with target awareness. The target is
// usually a package manager spec or a component name.
type TargetLogger struct {
	logger     *logrus.Logger
	targetName string
	mu         sync.RWMutex
}

// CustomFormatter formats logs with colors and a target prefix
type CustomFormatter struct {
	TimestampFormat string
	DisableColors   bool
}

const prefix = "💨"

// Format implements logrus.Formatter
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format(f.TimestampFormat)

	var levelColor *color.Color
	var levelText string

	switch entry.Level {
	case logrus.ErrorLevel:
		levelColor = color.New(color.FgRed, color.Bold)
		levelText = "ERROR"
	case logrus.WarnLevel:
		levelColor = color.New(color.FgYellow, color.Bold)
		levelText = "WARN"
	case logrus.InfoLevel:
		levelColor = color.New(color.FgCyan)
		levelText = "INFO"
	case logrus.DebugLevel:
		levelColor = color.New(color.FgWhite, color.Faint)
		levelText = "DEBUG"
	default:
		levelColor = color.New(color.FgGreen)
		levelText = "SUCCESS"
	}

	data := make(logrus.Fields, len(entry.Data))
	for k, v := range entry.Data {
		data[k] = v
	}

	targetPrefix := ""
	if target, ok := data["target"]; ok {
		if f.DisableColors {
			targetPrefix = fmt.Sprintf("[%s] ", target)
		} else {
			targetPrefix = fmt.Sprintf("[%s] ", color.New(color.FgBlue).Sprint(target))
		}
		delete(data, "target")
	}

	level := levelText
	if !f.DisableColors {
		level = levelColor.Sprint(levelText)
	}
	output := fmt.Sprintf("%s [%s] %s: %s%s", prefix, timestamp, level, targetPrefix, entry.Message)

	if len(data) > 0 {
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
		}
		fields := " {" + strings.Join(parts, ", ") + "}"
		if f.DisableColors {
			output += fields
		} else {
			output += color.New(color.FgWhite, color.Faint).Sprint(fields)
		}
	}

	return []byte(output + "\n"), nil
}

func newLogrus(logLevel string, disableColors bool) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&CustomFormatter{
		TimestampFormat: "15:04:05",
		DisableColors:   disableColors,
	})
	return log
}

// CreateLogger creates a new logger writing to stderr and, optionally, a file
func CreateLogger(logFile string, logLevel string) Logger {
	log := newLogrus(logLevel, false)
	log.SetOutput(os.Stderr)

	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			log.SetOutput(io.MultiWriter(os.Stderr, file))
		}
	}

	return &TargetLogger{logger: log}
}

// CreateLoggerWithOutput creates a logger with custom output (for testing).
// A nil output discards everything.
func CreateLoggerWithOutput(logFile string, logLevel string, output io.Writer) Logger {
	log := newLogrus(logLevel, true)
	if output == nil {
		output = io.Discard
	}
	log.SetOutput(output)

	return &TargetLogger{logger: log}
}

// NewNopLogger returns a logger that discards every message
func NewNopLogger() Logger {
	return CreateLoggerWithOutput("", "error", io.Discard)
}

// WithTarget creates a new logger with target context
func (l *TargetLogger) WithTarget(target string) Logger {
	return &TargetLogger{
		logger:     l.logger,
		targetName: target,
	}
}

// convertFields converts Field slice to logrus.Fields
func (l *TargetLogger) convertFields(fields []Field) logrus.Fields {
	result := make(logrus.Fields, len(fields)+1)
	if l.targetName != "" {
		result["target"] = l.targetName
	}
	for _, f := range fields {
		result[f.Key] = f.Value
	}
	return result
}

// Info logs an info message
func (l *TargetLogger) Info(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Info(message)
}

// Error logs an error message
func (l *TargetLogger) Error(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Error(message)
}

// Warn logs a warning message
func (l *TargetLogger) Warn(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Warn(message)
}

// Debug logs a debug message
func (l *TargetLogger) Debug(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Debug(message)
}

// Success logs a success message (info level with special formatting)
func (l *TargetLogger) Success(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Info("✅ " + message)
}
