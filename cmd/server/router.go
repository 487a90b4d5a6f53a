package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chybatronik/goRestKit/internal/config"
	"github.com/chybatronik/goRestKit/internal/handlers"
	"github.com/chybatronik/goRestKit/internal/logging"
	"github.com/chybatronik/goRestKit/internal/middleware"
	pkgerrors "github.com/chybatronik/goRestKit/pkg/errors"
	"github.com/chybatronik/goRestKit/pkg/query"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// newRouter builds the HTTP handler. The returned func releases the rate
// limiter's background cleanup.
func newRouter(cfg *config.Config, logger *logging.Logger, version string,
	users handlers.UserStore, database handlers.Pinger) (http.Handler, func()) {

	responder := pkgerrors.NewResponder(logger.Logger)
	stop := func() {}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recoverer(responder))
	if cfg.CORS.Enabled() {
		r.Use(newCORS(cfg.CORS, logger.Logger).Handler)
	}
	if cfg.RateLimit.Enabled {
		rl := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst)
		rl.TrustProxies(cfg.RateLimit.Proxies()...)
		stop = rl.Stop
		r.Use(middleware.RateLimit(rl, responder, logger.Logger))
	}
	if cfg.Server.CompressLevel > 0 {
		r.Use(chimiddleware.Compress(cfg.Server.CompressLevel))
	}

	r.NotFound(middleware.NotFound(responder))
	r.MethodNotAllowed(middleware.MethodNotAllowed(responder))

	health := handlers.NewHealthHandler(serviceName, version, logger)
	health.AddChecker(handlers.NewDatabaseHealthChecker(database, logger))
	r.Method(http.MethodGet, "/health", health)

	policy := query.PolicyReject
	if cfg.Query.ClampPaging {
		policy = query.PolicyClamp
	}
	userHandler := handlers.NewUserHandler(users, logger, query.Options{
		DefaultSize: cfg.Query.DefaultPageSize,
		MaxSize:     cfg.Query.MaxPageSize,
		Policy:      policy,
	}, cfg.Server.MaxBodyBytes)
	r.Mount("/users", userHandler.Routes())

	return r, stop
}

func newCORS(cfg config.CORSConfig, logger *slog.Logger) *cors.Cors {
	debug := logger.Enabled(context.Background(), slog.LevelDebug)
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   []string{middleware.RequestIDHeader, "ETag"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
		Debug:            debug,
	})
	if debug {
		c.Log = corsLogger{logger: logger.With("component", "cors")}
	}
	return c
}

// corsLogger implements cors.Logger on top of slog
type corsLogger struct {
	logger *slog.Logger
}

func (l corsLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
