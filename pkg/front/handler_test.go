package front

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fanout-lab/fanout/internal/errors"
	"github.com/fanout-lab/fanout/internal/metrics"
	"github.com/fanout-lab/fanout/internal/store"
	"github.com/fanout-lab/fanout/internal/upstream"
)

func initTestMetrics(t *testing.T) {
	t.Helper()
	if err := metrics.InitMetrics(prometheus.NewRegistry()); err != nil {
		t.Fatalf("failed to init metrics: %v", err)
	}
}

func TestHandlerAPIVariant(t *testing.T) {
	initTestMetrics(t)

	mock := upstream.NewMockClient()
	handler := NewHandler(Config{Upstream: mock})

	req := httptest.NewRequest(http.MethodGet, "/?delay=2", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Body.String(); got != "Hi there! slow api response" {
		t.Errorf("body = %q, want %q", got, "Hi there! slow api response")
	}
	// The API variant forwards the full delay downstream.
	if got := mock.LastFetched(); got != 2*time.Second {
		t.Errorf("forwarded delay = %v, want 2s", got)
	}
}

func TestHandlerAPIVariantDefaultDelay(t *testing.T) {
	initTestMetrics(t)

	mock := upstream.NewMockClient()
	handler := NewHandler(Config{Upstream: mock})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := mock.LastFetched(); got != time.Second {
		t.Errorf("forwarded delay = %v, want default 1s", got)
	}
}

func TestHandlerUpstreamError(t *testing.T) {
	initTestMetrics(t)

	mock := upstream.NewMockClient()
	mock.SetError(errors.NewUpstreamError("delay service returned an error", nil))
	handler := NewHandler(Config{Upstream: mock})

	req := httptest.NewRequest(http.MethodGet, "/?delay=1", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}

	var resp errors.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.ErrorType != "upstream" {
		t.Errorf("error_type = %q, want %q", resp.ErrorType, "upstream")
	}
}

func TestHandlerConnectionError(t *testing.T) {
	initTestMetrics(t)

	mock := upstream.NewMockClient()
	mock.SetError(errors.NewConnectionError("delay service unreachable"))
	handler := NewHandler(Config{Upstream: mock})

	req := httptest.NewRequest(http.MethodGet, "/?delay=1", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
}

func TestHandlerMalformedDelay(t *testing.T) {
	initTestMetrics(t)

	mock := upstream.NewMockClient()
	handler := NewHandler(Config{Upstream: mock})

	req := httptest.NewRequest(http.MethodGet, "/?delay=abc", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	// Nothing should reach the delay service on a validation failure.
	if got := len(mock.Fetched()); got != 0 {
		t.Errorf("delay service saw %d fetches, want 0", got)
	}
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	initTestMetrics(t)

	handler := NewHandler(Config{Upstream: upstream.NewMockClient()})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandlerStoreVariantBody(t *testing.T) {
	initTestMetrics(t)

	mockClient := upstream.NewMockClient()
	mockStore := store.NewMockSleeper()
	handler := NewHandler(Config{Upstream: mockClient, Store: mockStore})

	req := httptest.NewRequest(http.MethodGet, "/?delay=2", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	want := `Hi there! slow api response ("", 2024-01-02T03:04:05Z)`
	if got := w.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestHandlerStoreVariantSplitsDelay(t *testing.T) {
	initTestMetrics(t)

	mockClient := upstream.NewMockClient()
	mockStore := store.NewMockSleeper()
	handler := NewHandler(Config{Upstream: mockClient, Store: mockStore})

	req := httptest.NewRequest(http.MethodGet, "/?delay=2", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got := mockClient.LastFetched(); got != time.Second {
		t.Errorf("forwarded delay = %v, want half of 2s", got)
	}
	if got := mockStore.LastSlept(); got != time.Second {
		t.Errorf("sleep duration = %v, want half of 2s", got)
	}
}

func TestHandlerStoreVariantRunsConcurrently(t *testing.T) {
	initTestMetrics(t)

	// Both halves block for 100ms. Run in parallel the request finishes in
	// roughly 100ms; run sequentially it would need 200ms.
	mockClient := upstream.NewMockClient()
	mockClient.Latency = 100 * time.Millisecond
	mockStore := store.NewMockSleeper()
	mockStore.Latency = 100 * time.Millisecond
	handler := NewHandler(Config{Upstream: mockClient, Store: mockStore})

	start := time.Now()
	req := httptest.NewRequest(http.MethodGet, "/?delay=2", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	elapsed := time.Since(start)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if elapsed < 100*time.Millisecond {
		t.Errorf("request took %v, want at least the 100ms both sides block for", elapsed)
	}
	if elapsed >= 180*time.Millisecond {
		t.Errorf("request took %v, fan-out should track the slower side (~100ms) not the sum (200ms)", elapsed)
	}
}

func TestHandlerStoreVariantDatabaseError(t *testing.T) {
	initTestMetrics(t)

	mockClient := upstream.NewMockClient()
	mockStore := store.NewMockSleeper()
	mockStore.Error = errors.NewDatabaseError("sleep query failed", nil)
	handler := NewHandler(Config{Upstream: mockClient, Store: mockStore})

	req := httptest.NewRequest(http.MethodGet, "/?delay=2", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var resp errors.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.ErrorType != "database" {
		t.Errorf("error_type = %q, want %q", resp.ErrorType, "database")
	}
}

func TestHandlerStoreVariantUpstreamErrorWins(t *testing.T) {
	initTestMetrics(t)

	mockClient := upstream.NewMockClient()
	mockClient.SetError(errors.NewConnectionError("delay service unreachable"))
	mockStore := store.NewMockSleeper()
	mockStore.Error = errors.NewDatabaseError("sleep query failed", nil)
	handler := NewHandler(Config{Upstream: mockClient, Store: mockStore})

	req := httptest.NewRequest(http.MethodGet, "/?delay=2", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	// When both sides fail the gateway error is reported.
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}

	var resp errors.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.ErrorType != "connection" {
		t.Errorf("error_type = %q, want %q", resp.ErrorType, "connection")
	}
}

func TestHandlerDelayOverCap(t *testing.T) {
	initTestMetrics(t)

	handler := NewHandler(Config{Upstream: upstream.NewMockClient(), MaxDelay: time.Second})

	req := httptest.NewRequest(http.MethodGet, "/?delay=5", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
