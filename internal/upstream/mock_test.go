package upstream

import (
	"context"
	"testing"
	"time"

	"github.com/fanout-lab/fanout/internal/errors"
)

func TestMockClient(t *testing.T) {
	mock := NewMockClient()

	body, err := mock.Fetch(context.Background(), 2*time.Second)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if body != "slow api response" {
		t.Errorf("body = %q, want %q", body, "slow api response")
	}

	if got := mock.LastFetched(); got != 2*time.Second {
		t.Errorf("LastFetched() = %v, want 2s", got)
	}
	if got := len(mock.Fetched()); got != 1 {
		t.Errorf("len(Fetched()) = %d, want 1", got)
	}
}

func TestMockClientError(t *testing.T) {
	mock := NewMockClient()
	mock.SetError(errors.NewConnectionError("refused"))

	if _, err := mock.Fetch(context.Background(), time.Second); !errors.IsConnectionError(err) {
		t.Errorf("error = %v, want connection error", err)
	}

	mock.Reset()
	if _, err := mock.Fetch(context.Background(), time.Second); err != nil {
		t.Errorf("Fetch after Reset failed: %v", err)
	}
}

func TestMockClientLatency(t *testing.T) {
	mock := NewMockClient()
	mock.Latency = 50 * time.Millisecond

	start := time.Now()
	if _, err := mock.Fetch(context.Background(), 0); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Fetch returned after %v, want at least 50ms", elapsed)
	}
}

func TestMockClientLatencyCanceled(t *testing.T) {
	mock := NewMockClient()
	mock.Latency = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := mock.Fetch(ctx, 0); err == nil {
		t.Error("expected a context error when canceled during latency")
	}
}
