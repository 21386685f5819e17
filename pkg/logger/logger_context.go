package logger

import (
	"context"

	pcontext "github.com/smoker/smoker/pkg/context"
)

// LoggerContext extends Logger with context-aware methods that add the
// run ID, component and phase carried by ctx.
type LoggerContext interface {
	Logger
	InfoContext(ctx context.Context, message string, fields ...Field)
	ErrorContext(ctx context.Context, message string, fields ...Field)
	WarnContext(ctx context.Context, message string, fields ...Field)
	DebugContext(ctx context.Context, message string, fields ...Field)
	SuccessContext(ctx context.Context, message string, fields ...Field)
}

var _ LoggerContext = (*TargetLogger)(nil)

// InfoContext logs an info message with context tracing
func (l *TargetLogger) InfoContext(ctx context.Context, message string, fields ...Field) {
	l.Info(message, withContextFields(ctx, fields)...)
}

// ErrorContext logs an error message with context tracing
func (l *TargetLogger) ErrorContext(ctx context.Context, message string, fields ...Field) {
	l.Error(message, withContextFields(ctx, fields)...)
}

// WarnContext logs a warning message with context tracing
func (l *TargetLogger) WarnContext(ctx context.Context, message string, fields ...Field) {
	l.Warn(message, withContextFields(ctx, fields)...)
}

// DebugContext logs a debug message with context tracing
func (l *TargetLogger) DebugContext(ctx context.Context, message string, fields ...Field) {
	l.Debug(message, withContextFields(ctx, fields)...)
}

// SuccessContext logs a success message with context tracing
func (l *TargetLogger) SuccessContext(ctx context.Context, message string, fields ...Field) {
	l.Success(message, withContextFields(ctx, fields)...)
}

func withContextFields(ctx context.Context, fields []Field) []Field {
	if ctx == nil {
		return fields
	}
	tracing := pcontext.TracingFields(ctx)
	all := make([]Field, 0, len(tracing)+len(fields))
	for k, v := range tracing {
		all = append(all, WithField(k, v))
	}
	return append(all, fields...)
}

// WithContext creates a logger that automatically includes context fields
func WithContext(ctx context.Context, logger Logger) Logger {
	if ctx == nil {
		return logger
	}
	return &contextualLogger{
		ctx:    ctx,
		logger: logger,
	}
}

// contextualLogger wraps a logger with automatic context field extraction
type contextualLogger struct {
	ctx    context.Context
	logger Logger
}

func (cl *contextualLogger) Info(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.InfoContext(cl.ctx, message, fields...)
	} else {
		cl.logger.Info(message, fields...)
	}
}

func (cl *contextualLogger) Error(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.ErrorContext(cl.ctx, message, fields...)
	} else {
		cl.logger.Error(message, fields...)
	}
}

func (cl *contextualLogger) Warn(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.WarnContext(cl.ctx, message, fields...)
	} else {
		cl.logger.Warn(message, fields...)
	}
}

func (cl *contextualLogger) Debug(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.DebugContext(cl.ctx, message, fields...)
	} else {
		cl.logger.Debug(message, fields...)
	}
}

func (cl *contextualLogger) Success(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.SuccessContext(cl.ctx, message, fields...)
	} else {
		cl.logger.Success(message, fields...)
	}
}

func (cl *contextualLogger) WithTarget(target string) Logger {
	return &contextualLogger{
		ctx:    cl.ctx,
		logger: cl.logger.WithTarget(target),
	}
}
