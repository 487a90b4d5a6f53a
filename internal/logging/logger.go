// Package logging provides structured logging functionality using log/slog
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Logger wraps slog.Logger with application-specific helpers. Library
// packages take the embedded *slog.Logger.
type Logger struct {
	*slog.Logger
	service string
	version string
}

// ParseLevel maps a configured level name to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger writing to w. format "text" selects the text
// handler and "auto" selects it only when w is a terminal; anything else is
// JSON.
func New(w io.Writer, level, format, service, version string) *Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if resolveFormat(format, w) == FormatText {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger:  slog.New(handler),
		service: service,
		version: version,
	}
}

func resolveFormat(format string, w io.Writer) string {
	if format != FormatAuto {
		return format
	}
	if isTerminal(w) {
		return FormatText
	}
	return FormatJSON
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{
		Logger:  l.Logger.With(args...),
		service: l.service,
		version: l.version,
	}
}

// WithRequestID adds request ID to the logger
func (l *Logger) WithRequestID(reqID string) *Logger {
	if reqID == "" {
		return l
	}
	return l.with(slog.String(FieldRequestID, reqID))
}

// WithHTTPRequest adds HTTP request context to the logger
func (l *Logger) WithHTTPRequest(method, path string, statusCode int, latencyMs int64) *Logger {
	return l.with(
		slog.String(FieldHTTPMethod, method),
		slog.String(FieldHTTPPath, path),
		slog.Int(FieldHTTPStatus, statusCode),
		slog.Int64(FieldLatencyMs, latencyMs),
	)
}

// WithError adds error context to the logger
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.with(slog.String(FieldError, err.Error()))
}

// WithServiceContext adds service context to the logger
func (l *Logger) WithServiceContext() *Logger {
	return l.with(
		slog.String(FieldService, l.service),
		slog.String(FieldVersion, l.version),
	)
}

// Startup logs application startup information
func (l *Logger) Startup(msg string, args ...any) {
	l.WithServiceContext().Info(msg, args...)
}

// Request logs HTTP request completion. Server errors are logged at error
// level, client errors at warn.
func (l *Logger) Request(reqID, method, path string, statusCode int, latencyMs int64) {
	logger := l.WithRequestID(reqID).WithHTTPRequest(method, path, statusCode, latencyMs)
	switch {
	case statusCode >= 500:
		logger.Error("HTTP request completed")
	case statusCode >= 400:
		logger.Warn("HTTP request completed")
	default:
		logger.Info("HTTP request completed")
	}
}

// Database logs database-related operations
func (l *Logger) Database(msg string, args ...any) {
	l.Info("database: "+msg, args...)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(msg string, err error) {
	l.WithError(err).Error("database: " + msg)
}

// HealthCheck logs health check operations
func (l *Logger) HealthCheck(msg string, args ...any) {
	l.Info("healthcheck: "+msg, args...)
}
