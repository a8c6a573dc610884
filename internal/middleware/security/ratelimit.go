package security

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fanout-lab/fanout/internal/metrics"
)

// RateLimiter provides global rate limiting
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewGlobalRateLimiter creates a new rate limiter with specified requests
// per minute. A limit of 0 or less disables limiting entirely.
func NewGlobalRateLimiter(requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		limiter: newLimiter(requestsPerMinute),
	}
}

// Allow reports whether a request may proceed
func (l *RateLimiter) Allow(r *http.Request) bool {
	return l.limiter.Allow()
}

// IPRateLimiter provides per-IP rate limiting
type IPRateLimiter struct {
	ips      sync.Map // map[string]*rate.Limiter
	rateFunc func() *rate.Limiter
}

// NewIPRateLimiter creates a new IP-based rate limiter. A limit of 0 or less
// disables limiting entirely.
func NewIPRateLimiter(requestsPerMinute int) *IPRateLimiter {
	return &IPRateLimiter{
		rateFunc: func() *rate.Limiter {
			return newLimiter(requestsPerMinute)
		},
	}
}

// newLimiter maps a requests-per-minute setting onto a token bucket.
// Non-positive settings mean unlimited.
func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(
		rate.Every(time.Minute/time.Duration(requestsPerMinute)),
		requestsPerMinute,
	)
}

// GetLimiter returns the rate limiter for a specific IP
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	limiter, _ := i.ips.LoadOrStore(ip, i.rateFunc())
	return limiter.(*rate.Limiter)
}

// Allow reports whether a request from the client IP may proceed
func (i *IPRateLimiter) Allow(r *http.Request) bool {
	return i.GetLimiter(getIP(r)).Allow()
}

// Limiter is any per-request admission check
type Limiter interface {
	Allow(r *http.Request) bool
}

// WithRateLimiter applies a rate limiter to requests
func WithRateLimiter(limiter Limiter) func(http.Handler) http.Handler {
	limitType := "global"
	if _, ok := limiter.(*IPRateLimiter); ok {
		limitType = "ip"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(r) {
				metrics.RateLimitExceeded.WithLabelValues(limitType).Inc()
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// getIP extracts the client IP from the request
func getIP(r *http.Request) string {
	// Check X-Forwarded-For header
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		// Take the first IP if multiple are present
		if i := strings.Index(ip, ","); i > -1 {
			ip = strings.TrimSpace(ip[:i])
		}
		return ip
	}

	// Fall back to RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
