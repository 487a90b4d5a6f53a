package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// RequestIDHeader is read from the response (set by middleware) or the request
const RequestIDHeader = "X-Request-ID"

// ErrorResponse represents the error body written to clients
type ErrorResponse struct {
	Code        string                  `json:"code"`
	Message     string                  `json:"message"`
	FieldErrors map[string][]FieldError `json:"field_errors,omitempty"`
}

// Response builds the client-facing body. Internal errors never expose their message.
func (e *AppError) Response() ErrorResponse {
	if e.Kind == KindInternal || e.Kind.HTTPStatus() == http.StatusInternalServerError {
		return ErrorResponse{Code: ErrCodeInternal, Message: InternalMessage}
	}
	return ErrorResponse{
		Code:        e.Code,
		Message:     e.Message,
		FieldErrors: e.Fields,
	}
}

// Responder writes AppErrors as JSON responses and logs them
type Responder struct {
	logger *slog.Logger
}

// NewResponder creates a Responder. A nil logger uses slog.Default().
func NewResponder(logger *slog.Logger) *Responder {
	return &Responder{logger: logger}
}

func (rs *Responder) log() *slog.Logger {
	if rs == nil || rs.logger == nil {
		return slog.Default()
	}
	return rs.logger
}

// Write converts err and writes status, headers and body. It never fails:
// encoding problems are only logged.
func (rs *Responder) Write(w http.ResponseWriter, r *http.Request, err error) {
	appErr := From(err)
	if appErr == nil {
		appErr = NewInternalError(nil)
	}
	status := appErr.HTTPStatus()

	attrs := []any{
		"status", status,
		"code", appErr.Code,
	}
	if r != nil {
		attrs = append(attrs, "method", r.Method, "path", r.URL.Path)
	}
	if reqID := requestID(w, r); reqID != "" {
		attrs = append(attrs, "req_id", reqID)
	}

	if appErr.Kind == KindInternal {
		// the original detail stays in the logs
		attrs = append(attrs, "error", appErr.Error())
		rs.log().Error("internal error", attrs...)
	} else {
		attrs = append(attrs, "message", appErr.Message)
		rs.log().Warn("API error response", attrs...)
	}

	setHeaders(w)
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(appErr.Response()); encErr != nil {
		rs.log().Error("failed to encode error response", "error", encErr.Error())
	}
}

// Write writes err using the default slog logger
func Write(w http.ResponseWriter, r *http.Request, err error) {
	NewResponder(nil).Write(w, r, err)
}

func setHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
}

func requestID(w http.ResponseWriter, r *http.Request) string {
	if id := w.Header().Get(RequestIDHeader); id != "" {
		return id
	}
	if r != nil {
		return r.Header.Get(RequestIDHeader)
	}
	return ""
}
