package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/chybatronik/goRestKit/internal/logging"
	"github.com/chybatronik/goRestKit/pkg/response"
)

// HealthCheckResponse is the body of GET /health
type HealthCheckResponse struct {
	Status        string                 `json:"status"` // healthy|unhealthy
	Timestamp     int64                  `json:"timestamp"`
	Service       string                 `json:"service"`
	Version       string                 `json:"version"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Checks        map[string]HealthCheck `json:"checks"`
}

// HealthCheck is the result of one component check. Failure details are
// logged, never returned.
type HealthCheck struct {
	Status         string `json:"status"`
	ResponseTimeMs int64  `json:"response_time_ms"`
}

// HealthChecker checks one component
type HealthChecker interface {
	CheckHealth(ctx context.Context) HealthCheck
	Name() string
}

// HealthHandler reports service health
type HealthHandler struct {
	checkers  []HealthChecker
	startTime time.Time
	version   string
	service   string
	mu        sync.RWMutex
	logger    *logging.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service, version string, logger *logging.Logger) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		version:   version,
		service:   service,
		logger:    logger,
	}
}

// AddChecker registers a component check
func (h *HealthHandler) AddChecker(checker HealthChecker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers = append(h.checkers, checker)
}

// ServeHTTP runs every check. ?ping=true answers without running them.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.URL.Query().Get("ping") == "true" {
		_ = response.JSON(w, http.StatusOK, map[string]string{"status": "ok", "ping": "pong"})
		return
	}

	resp := HealthCheckResponse{
		Status:        logging.StatusHealthy,
		Timestamp:     time.Now().Unix(),
		Service:       h.service,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        make(map[string]HealthCheck),
	}

	h.mu.RLock()
	checkers := make([]HealthChecker, len(h.checkers))
	copy(checkers, h.checkers)
	h.mu.RUnlock()

	for _, checker := range checkers {
		check := checker.CheckHealth(r.Context())
		resp.Checks[checker.Name()] = check
		if check.Status != logging.StatusHealthy {
			resp.Status = logging.StatusUnhealthy
		}
	}

	status := http.StatusOK
	if resp.Status != logging.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	h.logger.HealthCheck("health check completed",
		logging.FieldCheckStatus, resp.Status,
		logging.FieldLatencyMs, time.Since(start).Milliseconds(),
	)

	if err := response.JSON(w, status, resp); err != nil {
		h.logger.WithError(err).Error("failed to encode health check response")
	}
}

// Pinger is satisfied by *db.State
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseHealthChecker checks database connectivity
type DatabaseHealthChecker struct {
	db     Pinger
	logger *logging.Logger
}

// NewDatabaseHealthChecker creates a new database health checker
func NewDatabaseHealthChecker(db Pinger, logger *logging.Logger) *DatabaseHealthChecker {
	return &DatabaseHealthChecker{db: db, logger: logger}
}

// Name returns the checker name
func (d *DatabaseHealthChecker) Name() string {
	return "database"
}

// CheckHealth pings the database and times the round trip
func (d *DatabaseHealthChecker) CheckHealth(ctx context.Context) HealthCheck {
	start := time.Now()
	err := d.db.Ping(ctx)
	elapsed := time.Since(start).Milliseconds()

	check := HealthCheck{Status: logging.StatusHealthy, ResponseTimeMs: elapsed}
	if err != nil {
		check.Status = logging.StatusUnhealthy
		d.logger.Warn("database health check failed", logging.DatabaseStatus(false, elapsed, err)...)
	} else {
		d.logger.Debug("database health check", logging.DatabaseStatus(true, elapsed, nil)...)
	}
	return check
}
