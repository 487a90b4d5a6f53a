package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/chybatronik/goRestKit/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	visitorTTL      = 10 * time.Minute
	cleanupInterval = 5 * time.Minute
)

// RateLimiter keeps one token bucket per client IP
type RateLimiter struct {
	visitors map[string]*Visitor
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	stop     chan struct{}
	stopOnce sync.Once
	trusted  []netip.Prefix
}

// Visitor tracks rate limiting state for a single IP
type Visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows requests per window for every client, with bursts up
// to burst. A background goroutine drops idle clients until Stop is called.
func NewRateLimiter(requests int, window time.Duration, burst int) *RateLimiter {
	limit := rate.Inf
	if requests > 0 && window > 0 {
		limit = rate.Limit(float64(requests) / window.Seconds())
	}
	return newRateLimiter(limit, burst, true)
}

func newRateLimiter(limit rate.Limit, burst int, cleanup bool) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*Visitor),
		rate:     limit,
		burst:    burst,
		stop:     make(chan struct{}),
	}
	if cleanup {
		go rl.cleanupVisitors()
	}
	return rl
}

// TrustProxies makes RateLimit take the client address from X-Forwarded-For
// or X-Real-IP when the direct peer falls inside one of prefixes. Call it
// before the limiter serves requests.
func (rl *RateLimiter) TrustProxies(prefixes ...netip.Prefix) {
	rl.trusted = append(rl.trusted[:0], prefixes...)
}

// Allow checks if an IP is allowed to make a request
func (rl *RateLimiter) Allow(ip string) bool {
	if rl.rate == rate.Inf {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	visitor, exists := rl.visitors[ip]
	if !exists {
		visitor = &Visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[ip] = visitor
	}
	visitor.lastSeen = time.Now()
	return visitor.limiter.Allow()
}

// RetryAfter is the number of whole seconds until one token is available again
func (rl *RateLimiter) RetryAfter() int {
	if rl.rate == rate.Inf || rl.rate <= 0 {
		return 1
	}
	return int(math.Ceil(1 / float64(rl.rate)))
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupVisitors() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.prune(now)
		}
	}
}

// prune removes visitors not seen within visitorTTL of now
func (rl *RateLimiter) prune(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, visitor := range rl.visitors {
		if now.Sub(visitor.lastSeen) > visitorTTL {
			delete(rl.visitors, ip)
		}
	}
}

// RateLimit rejects clients that exceed rl with a RATE_LIMIT_EXCEEDED error
// and a Retry-After header. Requests whose client IP cannot be determined
// are let through.
func RateLimit(rl *RateLimiter, responder *pkgerrors.Responder, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := extractIP(r, rl.trusted)
			if ip == "" {
				logger.Warn("rate limiting: unable to extract client IP", "remote_addr", r.RemoteAddr)
				next.ServeHTTP(w, r)
				return
			}

			if !rl.Allow(ip) {
				w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter()))
				responder.Write(w, r, pkgerrors.NewTooManyRequestsError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractIP returns the client address of r. Forwarding headers are only
// honoured when the direct peer is inside trusted.
func extractIP(r *http.Request, trusted []netip.Prefix) string {
	peer := remoteIP(r.RemoteAddr)
	if peer == "" || !isTrusted(peer, trusted) {
		return peer
	}

	// X-Forwarded-For can contain multiple IPs, the first one is the client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if isValidIP(ip) {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && isValidIP(xri) {
		return xri
	}
	return peer
}

func remoteIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	if isValidIP(host) {
		return host
	}
	return ""
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
