package store

import (
	"context"
	"sync"
	"time"
)

// MockSleeper provides a mock implementation of the Sleeper interface for testing
type MockSleeper struct {
	mu     sync.Mutex
	slept  []time.Duration
	Result SleepResult
	// Error is returned by the next SleepNow call when set
	Error error
	// Latency makes SleepNow block before returning, for concurrency tests
	Latency time.Duration
}

// NewMockSleeper creates a new MockSleeper with a fixed timestamp result
func NewMockSleeper() *MockSleeper {
	return &MockSleeper{
		Result: SleepResult{Now: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
}

// SleepNow records the requested sleep and returns the configured result or error
func (m *MockSleeper) SleepNow(ctx context.Context, d time.Duration) (SleepResult, error) {
	m.mu.Lock()
	m.slept = append(m.slept, d)
	latency := m.Latency
	err := m.Error
	result := m.Result
	m.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return SleepResult{}, ctx.Err()
		}
	}

	if err != nil {
		return SleepResult{}, err
	}
	return result, nil
}

// Ping implements the Sleeper interface
func (m *MockSleeper) Ping(ctx context.Context) error {
	return m.Error
}

// Close implements the Sleeper interface
func (m *MockSleeper) Close() error {
	return nil
}

// Slept returns the sleeps requested so far
func (m *MockSleeper) Slept() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.slept))
	copy(out, m.slept)
	return out
}

// LastSlept returns the most recently requested sleep, or zero if none
func (m *MockSleeper) LastSlept() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.slept) == 0 {
		return 0
	}
	return m.slept[len(m.slept)-1]
}
