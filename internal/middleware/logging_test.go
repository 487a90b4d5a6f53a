package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chybatronik/goRestKit/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "info", "json", "test-service", "1.0.0")

	handler := RequestID(Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	})))

	req := httptest.NewRequest(http.MethodPost, "/users", nil)
	req.Header.Set(RequestIDHeader, "req-log-1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "created", w.Body.String())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "HTTP request completed", entry["msg"])
	assert.Equal(t, "req-log-1", entry["req_id"])
	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, "/users", entry["path"])
	assert.Equal(t, float64(http.StatusCreated), entry["status"])
	assert.Contains(t, entry, "latency_ms")
}

func TestNewLoggingMiddleware(t *testing.T) {
	logger := logging.New(&bytes.Buffer{}, "info", "json", "test-service", "1.0.0")
	lm := NewLoggingMiddleware(logger, okHandler)

	assert.NotNil(t, lm.next)
	assert.Same(t, logger, lm.logger)
}
