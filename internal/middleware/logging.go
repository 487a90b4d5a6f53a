package middleware

import (
	"net/http"
	"time"

	"github.com/chybatronik/goRestKit/internal/logging"
)

// LoggingMiddleware logs one structured record per completed request
type LoggingMiddleware struct {
	next   http.Handler
	logger *logging.Logger
}

// NewLoggingMiddleware creates a new structured logging middleware
func NewLoggingMiddleware(logger *logging.Logger, next http.Handler) *LoggingMiddleware {
	return &LoggingMiddleware{
		next:   next,
		logger: logger,
	}
}

// Logging adapts LoggingMiddleware to router middleware chains
func Logging(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return NewLoggingMiddleware(logger, next)
	}
}

// ServeHTTP implements the http.Handler interface with structured logging
func (lm *LoggingMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	wrapped := NewResponseWriter(w)

	lm.next.ServeHTTP(wrapped, r)

	lm.logger.Request(
		GetRequestID(r.Context()),
		r.Method,
		r.URL.Path,
		wrapped.StatusCode(),
		time.Since(start).Milliseconds(),
	)
}
