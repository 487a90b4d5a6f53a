package logging

import (
	"log/slog"
)

// Standard field names
const (
	FieldRequestID   = "req_id"
	FieldHTTPMethod  = "method"
	FieldHTTPPath    = "path"
	FieldHTTPStatus  = "status"
	FieldLatencyMs   = "latency_ms"
	FieldService     = "service"
	FieldVersion     = "version"
	FieldError       = "error"
	FieldErrorCode   = "code"
	FieldRemoteAddr  = "remote_addr"
	FieldCheckName   = "check_name"
	FieldCheckStatus = "check_status"
)

// Log levels
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Log formats
const (
	FormatJSON = "json"
	FormatText = "text"
	FormatAuto = "auto"
)

// Health check statuses
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// DatabaseStatus returns the attributes logged for a database health probe
func DatabaseStatus(healthy bool, responseTimeMs int64, err error) []any {
	status := StatusHealthy
	if !healthy {
		status = StatusUnhealthy
	}

	attrs := []any{
		slog.String(FieldCheckName, "database"),
		slog.String(FieldCheckStatus, status),
		slog.Int64("response_time_ms", responseTimeMs),
	}
	if err != nil {
		attrs = append(attrs, slog.String(FieldError, err.Error()))
	}
	return attrs
}
