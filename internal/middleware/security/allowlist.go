package security

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/fanout-lab/fanout/internal/metrics"
)

// IPAllowList restricts requests to a fixed set of client IPs. An empty list
// allows everyone, so the middleware is a no-op unless configured.
type IPAllowList struct {
	mu         sync.RWMutex
	allowedIPs map[string]struct{}
}

// NewIPAllowList creates an allow list from the configured IPs
func NewIPAllowList(ips []string) *IPAllowList {
	wl := &IPAllowList{
		allowedIPs: make(map[string]struct{}, len(ips)),
	}
	for _, ip := range ips {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			wl.allowedIPs[ip] = struct{}{}
		}
	}
	return wl
}

// Update replaces the allowed IP set
func (wl *IPAllowList) Update(ips []string) {
	next := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			next[ip] = struct{}{}
		}
	}

	wl.mu.Lock()
	wl.allowedIPs = next
	wl.mu.Unlock()
}

func (wl *IPAllowList) isAllowed(ip string) bool {
	wl.mu.RLock()
	defer wl.mu.RUnlock()

	if len(wl.allowedIPs) == 0 {
		return true
	}
	_, exists := wl.allowedIPs[ip]
	return exists
}

// Middleware rejects requests from IPs outside the allow list
func (wl *IPAllowList) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Get IP from X-Forwarded-For if behind a proxy
		ip := r.Header.Get("X-Forwarded-For")
		if ip == "" {
			ip, _, _ = net.SplitHostPort(r.RemoteAddr)
		}

		// Handle X-Forwarded-For with multiple IPs (take the first one)
		if strings.Contains(ip, ",") {
			ip = strings.TrimSpace(strings.Split(ip, ",")[0])
		}

		// Remove port if present
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		if !wl.isAllowed(ip) {
			metrics.ErrorsTotal.WithLabelValues("ip_forbidden").Inc()
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
