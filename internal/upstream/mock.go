package upstream

import (
	"context"
	"sync"
	"time"
)

// MockClient provides a mock implementation of the Client interface for testing
type MockClient struct {
	mu      sync.Mutex
	fetched []time.Duration
	// Body is returned by Fetch when Error is nil
	Body string
	// Error is returned by the next Fetch call when set
	Error error
	// Latency makes Fetch block before returning, for concurrency tests
	Latency time.Duration
}

// NewMockClient creates a new MockClient that answers like the delay service
func NewMockClient() *MockClient {
	return &MockClient{
		Body: "slow api response",
	}
}

// Fetch records the requested delay and returns the configured body or error
func (m *MockClient) Fetch(ctx context.Context, delay time.Duration) (string, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, delay)
	latency := m.Latency
	err := m.Error
	body := m.Body
	m.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if err != nil {
		return "", err
	}
	return body, nil
}

// Close implements the Client interface
func (m *MockClient) Close() error {
	return nil
}

// Fetched returns the delays requested so far
func (m *MockClient) Fetched() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.fetched))
	copy(out, m.fetched)
	return out
}

// LastFetched returns the most recently requested delay, or zero if none
func (m *MockClient) LastFetched() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.fetched) == 0 {
		return 0
	}
	return m.fetched[len(m.fetched)-1]
}

// Reset clears recorded fetches and errors
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetched = m.fetched[:0]
	m.Error = nil
	m.Latency = 0
}

// SetError sets an error to be returned by the next Fetch call
func (m *MockClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Error = err
}
