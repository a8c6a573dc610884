package store

import (
	"context"
	"testing"
	"time"
)

func TestSleepResultString(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{
			name: "utc timestamp",
			now:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			want: `("", 2024-01-02T03:04:05Z)`,
		},
		{
			name: "non-utc is normalized",
			now:  time.Date(2024, 1, 2, 5, 4, 5, 0, time.FixedZone("CEST", 2*60*60)),
			want: `("", 2024-01-02T03:04:05Z)`,
		},
		{
			name: "sub-second precision kept",
			now:  time.Date(2024, 1, 2, 3, 4, 5, 123456000, time.UTC),
			want: `("", 2024-01-02T03:04:05.123456Z)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (SleepResult{Now: tt.now}).String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMockSleeper(t *testing.T) {
	mock := NewMockSleeper()

	result, err := mock.SleepNow(context.Background(), 2*time.Second)
	if err != nil {
		t.Fatalf("SleepNow failed: %v", err)
	}
	if result.Now.IsZero() {
		t.Error("result timestamp should not be zero")
	}
	if got := mock.LastSlept(); got != 2*time.Second {
		t.Errorf("LastSlept() = %v, want 2s", got)
	}
	if got := len(mock.Slept()); got != 1 {
		t.Errorf("len(Slept()) = %d, want 1", got)
	}
}
