package upstream

import (
	"context"
	"testing"
	"time"

	"github.com/fanout-lab/fanout/internal/errors"
)

func TestCircuitBreakerStateString(t *testing.T) {
	tests := []struct {
		state CircuitState
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{CircuitState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	mock := NewMockClient()
	mock.SetError(errors.NewConnectionError("refused"))

	cfg := DefaultCircuitBreakerConfig()
	cfg.FailureThreshold = 3
	cb := NewCircuitBreaker(mock, cfg)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := cb.Fetch(ctx, time.Second); err == nil {
			t.Fatalf("request %d: expected an error", i+1)
		}
	}

	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open after %d failures", cb.State(), cfg.FailureThreshold)
	}

	// Open circuit fails fast without touching the client.
	before := len(mock.Fetched())
	if _, err := cb.Fetch(ctx, time.Second); !errors.IsConnectionError(err) {
		t.Errorf("error = %v, want connection error from open circuit", err)
	}
	if after := len(mock.Fetched()); after != before {
		t.Errorf("open circuit forwarded a fetch: %d -> %d", before, after)
	}
}

func TestCircuitBreakerRecovers(t *testing.T) {
	mock := NewMockClient()
	mock.SetError(errors.NewConnectionError("refused"))

	cfg := CircuitBreakerConfig{
		FailureThreshold:    2,
		SuccessThreshold:    2,
		Timeout:             20 * time.Millisecond,
		MaxHalfOpenRequests: 3,
	}
	cb := NewCircuitBreaker(mock, cfg)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		cb.Fetch(ctx, time.Second)
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	// After the timeout the breaker probes in half-open state.
	time.Sleep(30 * time.Millisecond)
	mock.SetError(nil)

	if _, err := cb.Fetch(ctx, time.Second); err != nil {
		t.Fatalf("probe fetch failed: %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open after first success", cb.State())
	}

	if _, err := cb.Fetch(ctx, time.Second); err != nil {
		t.Fatalf("second probe fetch failed: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed after %d successes", cb.State(), cfg.SuccessThreshold)
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	mock := NewMockClient()
	mock.SetError(errors.NewConnectionError("refused"))

	cfg := CircuitBreakerConfig{
		FailureThreshold:    1,
		SuccessThreshold:    2,
		Timeout:             20 * time.Millisecond,
		MaxHalfOpenRequests: 3,
	}
	cb := NewCircuitBreaker(mock, cfg)

	ctx := context.Background()
	cb.Fetch(ctx, time.Second)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	time.Sleep(30 * time.Millisecond)

	// Still failing: the half-open probe trips the circuit again.
	cb.Fetch(ctx, time.Second)
	if cb.State() != StateOpen {
		t.Errorf("state = %v, want open after half-open failure", cb.State())
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	mock := NewMockClient()
	mock.SetError(errors.NewConnectionError("refused"))

	cfg := DefaultCircuitBreakerConfig()
	cfg.FailureThreshold = 1
	cb := NewCircuitBreaker(mock, cfg)

	cb.Fetch(context.Background(), time.Second)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed after Reset", cb.State())
	}
}

func TestCircuitBreakerStats(t *testing.T) {
	cb := NewCircuitBreaker(NewMockClient(), DefaultCircuitBreakerConfig())

	cb.Fetch(context.Background(), time.Second)

	stats := cb.Stats()
	if stats["state"] != "closed" {
		t.Errorf("stats state = %v, want closed", stats["state"])
	}
	if stats["consecutive_successes"] != 1 {
		t.Errorf("consecutive_successes = %v, want 1", stats["consecutive_successes"])
	}
}
