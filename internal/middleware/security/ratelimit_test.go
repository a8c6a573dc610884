package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fanout-lab/fanout/internal/metrics"
)

func initTestMetrics(t *testing.T) {
	t.Helper()
	if err := metrics.InitMetrics(prometheus.NewRegistry()); err != nil {
		t.Fatalf("failed to init metrics: %v", err)
	}
}

func TestGlobalRateLimiter(t *testing.T) {
	initTestMetrics(t)

	limiter := NewGlobalRateLimiter(3)
	handler := WithRateLimiter(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Burst allowance admits the first three requests.
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("over-limit status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
}

func TestIPRateLimiter(t *testing.T) {
	initTestMetrics(t)

	limiter := NewIPRateLimiter(2)
	handler := WithRateLimiter(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	// Exhaust the first client's burst.
	for i := 0; i < 2; i++ {
		if code := send("10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, code, http.StatusOK)
		}
	}
	if code := send("10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Errorf("over-limit status = %d, want %d", code, http.StatusTooManyRequests)
	}

	// A different client is unaffected.
	if code := send("10.0.0.2:1234"); code != http.StatusOK {
		t.Errorf("second client status = %d, want %d", code, http.StatusOK)
	}
}

func TestRateLimiterZeroDisablesLimiting(t *testing.T) {
	initTestMetrics(t)

	// A zero requests-per-minute setting must construct without panicking
	// and admit every request.
	limiters := map[string]Limiter{
		"global": NewGlobalRateLimiter(0),
		"ip":     NewIPRateLimiter(0),
	}

	for name, limiter := range limiters {
		t.Run(name, func(t *testing.T) {
			handler := WithRateLimiter(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			for i := 0; i < 50; i++ {
				req := httptest.NewRequest(http.MethodGet, "/", nil)
				req.RemoteAddr = "10.0.0.1:1234"
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, req)
				if w.Code != http.StatusOK {
					t.Fatalf("request %d: status = %d, want %d", i+1, w.Code, http.StatusOK)
				}
			}
		})
	}
}

func TestIPRateLimiterForwardedFor(t *testing.T) {
	initTestMetrics(t)

	limiter := NewIPRateLimiter(1)
	handler := WithRateLimiter(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "127.0.0.1:9999"
		req.Header.Set("X-Forwarded-For", forwarded)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	if code := send("203.0.113.7, 10.0.0.1"); code != http.StatusOK {
		t.Fatalf("first request status = %d, want %d", code, http.StatusOK)
	}
	// Same forwarded client behind a different proxy hop is still limited.
	if code := send("203.0.113.7, 10.0.0.2"); code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want %d", code, http.StatusTooManyRequests)
	}
}
