// Package db provides PostgreSQL connection pool and transaction helpers built on pgx.
package db

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the connection parameters for one database
type Config struct {
	URL               string        // DATABASE_URL, overrides the discrete fields
	Host              string        // Database host address
	Port              int           // Database port number
	User              string        // Database username
	Password          string        // Database password
	Database          string        // Database name
	SSLMode           string        // SSL mode (disable, require, etc.)
	MaxConns          int           // Maximum pool connections
	MinConns          int           // Minimum idle pool connections
	MaxConnLifetime   time.Duration // Recycle connections after this long
	MaxConnIdleTime   time.Duration // Close idle connections after this long
	HealthCheckPeriod time.Duration // Pool health check interval
	AcquireTimeout    time.Duration // Wait limit for a free connection, 0 waits on ctx only
	LazyConnect       bool          // Skip the startup ping
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s='%s': %s", e.Field, e.Value, e.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	msg := "configuration validation errors:\n"
	for _, err := range ve {
		msg += fmt.Sprintf("  - %s\n", err.Error())
	}
	return msg
}

// Environment variables read by ConfigFromEnv, with their defaults
var EnvironmentDefaults = map[string]string{
	"DB_HOST":                "localhost",
	"DB_PORT":                "5432",
	"DB_USER":                "postgres",
	"DB_NAME":                "postgres",
	"DB_SSL_MODE":            "disable",
	"DB_MAX_CONNECTIONS":     "25",
	"DB_MIN_CONNS":           "5",
	"DB_MAX_CONN_LIFETIME":   "30m",
	"DB_MAX_CONN_IDLE_TIME":  "5m",
	"DB_HEALTH_CHECK_PERIOD": "1m",
	"DB_ACQUIRE_TIMEOUT":     "0s",
	"DB_LAZY_CONNECT":        "false",
}

var validSSLModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// LoadConfig reads .env files (missing files are ignored) and then builds a
// validated Config from the environment. With no arguments ".env" is tried.
func LoadConfig(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg, err := ConfigFromEnv()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ConfigFromEnv builds a Config from environment variables. Unparseable
// values are reported together as ValidationErrors.
func ConfigFromEnv() (Config, error) {
	var errs ValidationErrors

	cfg := Config{
		URL:      os.Getenv("DATABASE_URL"),
		Host:     getEnv("DB_HOST"),
		User:     getEnv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Database: getEnv("DB_NAME"),
		SSLMode:  getEnv("DB_SSL_MODE"),
	}
	cfg.Port = getEnvInt("DB_PORT", &errs)
	cfg.MaxConns = getEnvInt("DB_MAX_CONNECTIONS", &errs)
	cfg.MinConns = getEnvInt("DB_MIN_CONNS", &errs)
	cfg.MaxConnLifetime = getEnvDuration("DB_MAX_CONN_LIFETIME", &errs)
	cfg.MaxConnIdleTime = getEnvDuration("DB_MAX_CONN_IDLE_TIME", &errs)
	cfg.HealthCheckPeriod = getEnvDuration("DB_HEALTH_CHECK_PERIOD", &errs)
	cfg.AcquireTimeout = getEnvDuration("DB_ACQUIRE_TIMEOUT", &errs)
	cfg.LazyConnect = getEnvBool("DB_LAZY_CONNECT", &errs)

	if len(errs) > 0 {
		return Config{}, errs
	}
	return cfg, nil
}

// Validate checks the configuration and returns ValidationErrors listing every problem
func (c Config) Validate() error {
	var errs ValidationErrors
	add := func(field, value, message string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: message})
	}

	if c.URL == "" {
		if c.Host == "" {
			add("DB_HOST", c.Host, "database host is required")
		}
		if c.Port <= 0 || c.Port > 65535 {
			add("DB_PORT", strconv.Itoa(c.Port), "must be between 1 and 65535")
		}
		if c.User == "" {
			add("DB_USER", c.User, "database user is required")
		}
		if c.Database == "" {
			add("DB_NAME", c.Database, "database name is required")
		}
		if c.Password == "" && c.SSLMode != "disable" {
			add("DB_PASSWORD", "", "database password is required when SSL is enabled")
		}
		validSSL := false
		for _, mode := range validSSLModes {
			if c.SSLMode == mode {
				validSSL = true
				break
			}
		}
		if !validSSL {
			add("DB_SSL_MODE", c.SSLMode, "must be one of: "+strings.Join(validSSLModes, ", "))
		}
	}

	if c.MaxConns <= 0 {
		add("DB_MAX_CONNECTIONS", strconv.Itoa(c.MaxConns), "must be positive")
	}
	if c.MinConns < 0 || c.MinConns > c.MaxConns {
		add("DB_MIN_CONNS", strconv.Itoa(c.MinConns), "must be between 0 and max connections")
	}
	if c.AcquireTimeout < 0 {
		add("DB_ACQUIRE_TIMEOUT", c.AcquireTimeout.String(), "must not be negative")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ConnString returns URL when set, otherwise a postgres:// URL built from the
// discrete fields with credentials escaped.
func (c Config) ConnString() string {
	if c.URL != "" {
		return c.URL
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// String is safe to log: the password is masked.
func (c Config) String() string {
	if c.URL != "" {
		if u, err := url.Parse(c.URL); err == nil {
			return u.Redacted()
		}
		return "postgres://(unparseable DATABASE_URL)"
	}
	masked := c
	if masked.Password != "" {
		masked.Password = "xxxxx"
	}
	return masked.ConnString()
}

func getEnv(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return EnvironmentDefaults[key]
}

func getEnvInt(key string, errs *ValidationErrors) int {
	value := getEnv(key)
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, ValidationError{Field: key, Value: value, Message: "must be a valid integer"})
	}
	return n
}

func getEnvDuration(key string, errs *ValidationErrors) time.Duration {
	value := getEnv(key)
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, ValidationError{Field: key, Value: value, Message: "must be a duration such as 30s or 5m"})
	}
	return d
}

func getEnvBool(key string, errs *ValidationErrors) bool {
	value := getEnv(key)
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, ValidationError{Field: key, Value: value, Message: "must be true or false"})
	}
	return b
}
