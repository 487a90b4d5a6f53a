// Command server runs the reference users API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chybatronik/goRestKit/internal/config"
	"github.com/chybatronik/goRestKit/internal/logging"
	"github.com/chybatronik/goRestKit/internal/store"
	"github.com/chybatronik/goRestKit/pkg/db"
	"github.com/spf13/pflag"
)

const serviceName = "goRestKit"

// Version is set during build
var Version = "dev"

var (
	flagset  = pflag.NewFlagSet("", pflag.ContinueOnError)
	fenv     = flagset.StringSliceP("env-file", "e", nil, "load variables from `file` (repeatable, default .env)")
	fcheck   = flagset.BoolP("check", "c", false, "only check that the configuration is valid")
	fmigrate = flagset.Bool("migrate", true, "apply pending database migrations at startup")
	fversion = flagset.BoolP("version", "v", false, "show version and exit")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: server [options]\n\nOptions:\n")
	flagset.PrintDefaults()
}

func main() {
	flagset.Usage = usage
	if err := flagset.Parse(os.Args[1:]); err == pflag.ErrHelp {
		return
	} else if err != nil || flagset.NArg() != 0 {
		usage()
		os.Exit(1)
	}

	log.SetFlags(0)
	if *fversion {
		fmt.Printf("%s %s\n", serviceName, Version)
		return
	}
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(*fenv...)
	if err != nil {
		log.Printf("server: failed to load configuration: %v", err)
		return 2
	}
	if *fcheck {
		fmt.Println("configuration is valid")
		return 0
	}

	out, err := logging.OpenOutput(cfg.Logging.File)
	if err != nil {
		log.Printf("server: %v", err)
		return 1
	}
	defer out.Close()

	version := cfg.Application.Version
	if Version != "dev" {
		version = Version
	}
	logger := logging.New(out, cfg.Logging.Level, cfg.Logging.Format, serviceName, version).WithServiceContext()

	logger.Startup("service starting",
		"environment", cfg.Application.Environment,
		"addr", cfg.Server.Addr(),
		"database", cfg.Database.String(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	state, err := db.NewState(ctx, cfg.Database)
	if err != nil {
		cancel()
		logger.DatabaseError("connection failed", err)
		return 1
	}
	defer state.Close()

	if *fmigrate {
		if _, err := store.NewMigrator(state, store.Migrations(), logger.Logger).Up(ctx); err != nil {
			cancel()
			logger.DatabaseError("migration failed", err)
			return 1
		}
	}
	cancel()
	logger.Database("connection established")

	handler, stop := newRouter(cfg, logger, version, store.NewUsers(state), state)
	defer stop()

	server := newServer(cfg.Server, handler)
	errc := make(chan error, 1)
	go func() {
		logger.Startup("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	select {
	case err := <-errc:
		logger.WithError(err).Error("HTTP server failed")
		return 1
	case sig := <-sigc:
		logger.Startup("shutting down", "signal", sig.String())
	}

	if err := shutdown(server, cfg.Server.ShutdownTimeout); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
		return 1
	}
	logger.Startup("shutdown completed")
	return 0
}

func newServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// shutdown waits up to timeout for in-flight requests to finish
func shutdown(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return server.Shutdown(ctx)
}
