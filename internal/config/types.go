// Package config provides configuration types for the reference server.
package config

import (
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/chybatronik/goRestKit/pkg/db"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig
	Database    db.Config
	Logging     LoggingConfig
	RateLimit   RateLimitConfig
	Query       QueryConfig
	CORS        CORSConfig
	Application ApplicationConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           // Server port number
	Host            string        // Server host address
	ReadTimeout     time.Duration // Read timeout
	WriteTimeout    time.Duration // Write timeout
	IdleTimeout     time.Duration // Idle timeout
	ShutdownTimeout time.Duration // Grace period for in-flight requests
	MaxBodyBytes    int64         // Request body limit for JSON endpoints
	CompressLevel   int           // gzip/deflate level for responses, 0 disables
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string // Log level (debug, info, warn, error)
	Format string // Log format (json, text, auto)
	File   string // Optional file that receives a copy of every record
}

// RateLimitConfig holds the per-client token bucket settings
type RateLimitConfig struct {
	Enabled        bool
	Requests       int           // Requests allowed per window
	Window         time.Duration // Refill window
	Burst          int           // Bucket size
	TrustedProxies []string      // Peers whose X-Forwarded-For / X-Real-IP name the client
}

// Proxies parses TrustedProxies. A bare address becomes a single-host
// prefix; invalid entries are skipped, Validate reports them.
func (r RateLimitConfig) Proxies() []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(r.TrustedProxies))
	for _, entry := range r.TrustedProxies {
		if prefix, err := parseProxy(entry); err == nil {
			prefixes = append(prefixes, prefix)
		}
	}
	return prefixes
}

func parseProxy(entry string) (netip.Prefix, error) {
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		return prefix.Masked(), err
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// QueryConfig bounds the list endpoints
type QueryConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	ClampPaging     bool // clamp out-of-range page/size instead of rejecting
}

// CORSConfig holds cross-origin settings. No allowed origins disables CORS.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int // seconds preflight results may be cached
}

// Enabled reports whether any origin is allowed
func (c CORSConfig) Enabled() bool {
	return len(c.AllowedOrigins) > 0
}

// ApplicationConfig holds application-specific configuration
type ApplicationConfig struct {
	Environment string // Environment (development, staging, production, test)
	Version     string
}
