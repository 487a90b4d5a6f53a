package config

import (
	"slices"
	"strconv"
	"strings"
)

var (
	validLevels       = []string{"debug", "info", "warn", "error"}
	validFormats      = []string{"json", "text", "auto"}
	validEnvironments = []string{"development", "staging", "production", "test"}
)

// Validate validates the configuration and returns every problem found as ValidationErrors
func Validate(config *Config) error {
	var errs ValidationErrors
	add := func(field, value, message string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: message})
	}

	if err := config.Database.Validate(); err != nil {
		if dbErrs, ok := err.(ValidationErrors); ok {
			errs = append(errs, dbErrs...)
		} else {
			add("DATABASE", "", err.Error())
		}
	}

	// server
	server := config.Server
	if server.Port <= 0 || server.Port > 65535 {
		add("APP_PORT", strconv.Itoa(server.Port), "must be between 1 and 65535")
	}
	if server.ReadTimeout <= 0 {
		add("SERVER_READ_TIMEOUT", server.ReadTimeout.String(), "must be positive")
	}
	if server.WriteTimeout <= 0 {
		add("SERVER_WRITE_TIMEOUT", server.WriteTimeout.String(), "must be positive")
	}
	if server.IdleTimeout <= 0 {
		add("SERVER_IDLE_TIMEOUT", server.IdleTimeout.String(), "must be positive")
	}
	if server.ShutdownTimeout <= 0 {
		add("SHUTDOWN_TIMEOUT", server.ShutdownTimeout.String(), "must be positive")
	}
	if server.MaxBodyBytes <= 0 {
		add("MAX_BODY_BYTES", strconv.FormatInt(server.MaxBodyBytes, 10), "must be positive")
	}
	if server.CompressLevel < 0 || server.CompressLevel > 9 {
		add("COMPRESS_LEVEL", strconv.Itoa(server.CompressLevel), "must be between 0 and 9")
	}

	// logging
	if !slices.Contains(validLevels, config.Logging.Level) {
		add("LOG_LEVEL", config.Logging.Level, "must be one of: "+strings.Join(validLevels, ", "))
	}
	if !slices.Contains(validFormats, config.Logging.Format) {
		add("LOG_FORMAT", config.Logging.Format, "must be one of: "+strings.Join(validFormats, ", "))
	}

	// rate limit
	if config.RateLimit.Enabled {
		if config.RateLimit.Requests <= 0 {
			add("RATE_LIMIT_REQUESTS", strconv.Itoa(config.RateLimit.Requests), "must be positive")
		}
		if config.RateLimit.Window <= 0 {
			add("RATE_LIMIT_WINDOW", config.RateLimit.Window.String(), "must be positive")
		}
		if config.RateLimit.Burst <= 0 {
			add("RATE_LIMIT_BURST", strconv.Itoa(config.RateLimit.Burst), "must be positive")
		}
		for _, proxy := range config.RateLimit.TrustedProxies {
			if _, err := parseProxy(proxy); err != nil {
				add("RATE_LIMIT_TRUSTED_PROXIES", proxy, "must be an IP address or CIDR range")
			}
		}
	}

	// query
	if config.Query.MaxPageSize <= 0 {
		add("QUERY_MAX_SIZE", strconv.Itoa(config.Query.MaxPageSize), "must be positive")
	}
	if config.Query.DefaultPageSize <= 0 || config.Query.DefaultPageSize > config.Query.MaxPageSize {
		add("QUERY_DEFAULT_SIZE", strconv.Itoa(config.Query.DefaultPageSize), "must be between 1 and QUERY_MAX_SIZE")
	}

	// cors
	if config.CORS.MaxAge < 0 {
		add("CORS_MAX_AGE", strconv.Itoa(config.CORS.MaxAge), "must not be negative")
	}
	if config.CORS.AllowCredentials && slices.Contains(config.CORS.AllowedOrigins, "*") {
		add("CORS_ALLOW_CREDENTIALS", "true", "cannot be combined with a wildcard origin")
	}

	if !slices.Contains(validEnvironments, config.Application.Environment) {
		add("ENVIRONMENT", config.Application.Environment, "must be one of: "+strings.Join(validEnvironments, ", "))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
