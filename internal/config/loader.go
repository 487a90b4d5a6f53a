package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chybatronik/goRestKit/pkg/db"
	"github.com/joho/godotenv"
)

// ValidationError and ValidationErrors are shared with the database config so
// both report problems the same way.
type (
	ValidationError  = db.ValidationError
	ValidationErrors = db.ValidationErrors
)

// OptionalEnvironmentVariables defines the server variables and their defaults.
// Database variables are listed in db.EnvironmentDefaults.
var OptionalEnvironmentVariables = map[string]string{
	"APP_HOST":                   "0.0.0.0",
	"APP_PORT":                   "8080",
	"APP_VERSION":                "dev",
	"LOG_LEVEL":                  "info",
	"LOG_FORMAT":                 "json",
	"LOG_FILE":                   "",
	"ENVIRONMENT":                "development",
	"SERVER_READ_TIMEOUT":        "30s",
	"SERVER_WRITE_TIMEOUT":       "30s",
	"SERVER_IDLE_TIMEOUT":        "120s",
	"SHUTDOWN_TIMEOUT":           "30s",
	"MAX_BODY_BYTES":             "1048576",
	"RATE_LIMIT_ENABLED":         "true",
	"RATE_LIMIT_REQUESTS":        "100",
	"RATE_LIMIT_WINDOW":          "1m",
	"RATE_LIMIT_BURST":           "20",
	"RATE_LIMIT_TRUSTED_PROXIES": "",
	"QUERY_DEFAULT_SIZE":         "50",
	"QUERY_MAX_SIZE":             "100",
	"QUERY_CLAMP_PAGING":         "false",
	"COMPRESS_LEVEL":             "5",
	"CORS_ALLOWED_ORIGINS":       "",
	"CORS_ALLOWED_METHODS":       "GET,POST,OPTIONS",
	"CORS_ALLOWED_HEADERS":       "Content-Type,X-Request-ID",
	"CORS_ALLOW_CREDENTIALS":     "false",
	"CORS_MAX_AGE":               "600",
}

// Load reads the given .env files (".env" when none are given, missing files
// are skipped), builds the configuration from the environment and validates it.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	var errs ValidationErrors
	env := envReader{errs: &errs}

	dbCfg, err := db.ConfigFromEnv()
	if err != nil {
		var dbErrs ValidationErrors
		if !stderrors.As(err, &dbErrs) {
			return nil, err
		}
		errs = append(errs, dbErrs...)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            env.Int("APP_PORT"),
			Host:            env.String("APP_HOST"),
			ReadTimeout:     env.Duration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    env.Duration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:     env.Duration("SERVER_IDLE_TIMEOUT"),
			ShutdownTimeout: env.Duration("SHUTDOWN_TIMEOUT"),
			MaxBodyBytes:    int64(env.Int("MAX_BODY_BYTES")),
			CompressLevel:   env.Int("COMPRESS_LEVEL"),
		},
		Database: dbCfg,
		Logging: LoggingConfig{
			Level:  env.String("LOG_LEVEL"),
			Format: env.String("LOG_FORMAT"),
			File:   env.String("LOG_FILE"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        env.Bool("RATE_LIMIT_ENABLED"),
			Requests:       env.Int("RATE_LIMIT_REQUESTS"),
			Window:         env.Duration("RATE_LIMIT_WINDOW"),
			Burst:          env.Int("RATE_LIMIT_BURST"),
			TrustedProxies: env.List("RATE_LIMIT_TRUSTED_PROXIES"),
		},
		Query: QueryConfig{
			DefaultPageSize: env.Int("QUERY_DEFAULT_SIZE"),
			MaxPageSize:     env.Int("QUERY_MAX_SIZE"),
			ClampPaging:     env.Bool("QUERY_CLAMP_PAGING"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   env.List("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   env.List("CORS_ALLOWED_METHODS"),
			AllowedHeaders:   env.List("CORS_ALLOWED_HEADERS"),
			AllowCredentials: env.Bool("CORS_ALLOW_CREDENTIALS"),
			MaxAge:           env.Int("CORS_MAX_AGE"),
		},
		Application: ApplicationConfig{
			Environment: env.String("ENVIRONMENT"),
			Version:     env.String("APP_VERSION"),
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed: %w", errs)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// envReader reads variables with defaults from OptionalEnvironmentVariables
// and collects parse failures instead of stopping at the first one.
type envReader struct {
	errs *ValidationErrors
}

func (e envReader) String(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return OptionalEnvironmentVariables[key]
}

// List splits a comma separated value, dropping empty items
func (e envReader) List(key string) []string {
	var items []string
	for _, item := range strings.Split(e.String(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func (e envReader) Int(key string) int {
	value := e.String(key)
	n, err := strconv.Atoi(value)
	if err != nil {
		e.fail(key, value, "must be a valid integer")
	}
	return n
}

func (e envReader) Bool(key string) bool {
	value := e.String(key)
	b, err := strconv.ParseBool(value)
	if err != nil {
		e.fail(key, value, "must be true or false")
	}
	return b
}

func (e envReader) Duration(key string) time.Duration {
	value := e.String(key)
	d, err := time.ParseDuration(value)
	if err != nil {
		e.fail(key, value, "must be a duration such as 30s or 5m")
	}
	return d
}

func (e envReader) fail(key, value, message string) {
	*e.errs = append(*e.errs, ValidationError{Field: key, Value: value, Message: message})
}
