package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := InitMetrics(reg); err != nil {
		t.Fatalf("InitMetrics failed: %v", err)
	}

	if RequestsTotal == nil {
		t.Error("RequestsTotal not initialized")
	}
	if RequestDuration == nil {
		t.Error("RequestDuration not initialized")
	}
	if DelayRequestedSeconds == nil {
		t.Error("DelayRequestedSeconds not initialized")
	}
	if UpstreamRequestsTotal == nil {
		t.Error("UpstreamRequestsTotal not initialized")
	}
	if SleepQueriesTotal == nil {
		t.Error("SleepQueriesTotal not initialized")
	}
	if RateLimitExceeded == nil {
		t.Error("RateLimitExceeded not initialized")
	}
	if ErrorsTotal == nil {
		t.Error("ErrorsTotal not initialized")
	}
}

func TestInitMetricsNilRegistry(t *testing.T) {
	if err := InitMetrics(nil); err == nil {
		t.Error("expected an error for a nil registry")
	}
}

func TestRecordRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := InitMetrics(reg); err != nil {
		t.Fatalf("InitMetrics failed: %v", err)
	}

	RecordRequest("delayd", "200")
	RecordRequest("delayd", "200")
	RecordRequest("delayd", "400")

	if got := testutil.ToFloat64(RequestsTotal.WithLabelValues("delayd", "200")); got != 2 {
		t.Errorf("requests{delayd,200} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(RequestsTotal.WithLabelValues("delayd", "400")); got != 1 {
		t.Errorf("requests{delayd,400} = %v, want 1", got)
	}
}

func TestRecordUpstreamRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := InitMetrics(reg); err != nil {
		t.Fatalf("InitMetrics failed: %v", err)
	}

	RecordUpstreamRequest("success", 0.5)
	RecordUpstreamRequest("error", 0.1)

	if got := testutil.ToFloat64(UpstreamRequestsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("upstream{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(UpstreamRequestsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("upstream{error} = %v, want 1", got)
	}
}

func TestRecordSleepQuery(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := InitMetrics(reg); err != nil {
		t.Fatalf("InitMetrics failed: %v", err)
	}

	RecordSleepQuery("success", 0.5)

	if got := testutil.ToFloat64(SleepQueriesTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("sleep{success} = %v, want 1", got)
	}
}

func TestRecordError(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := InitMetrics(reg); err != nil {
		t.Fatalf("InitMetrics failed: %v", err)
	}

	RecordError("validation")
	RecordError("validation")

	if got := testutil.ToFloat64(ErrorsTotal.WithLabelValues("validation")); got != 2 {
		t.Errorf("errors{validation} = %v, want 2", got)
	}
}

func TestReinitWithFreshRegistry(t *testing.T) {
	// Each service process initializes once against its own registry; a fresh
	// registry must not collide with a previous one.
	if err := InitMetrics(prometheus.NewRegistry()); err != nil {
		t.Fatalf("first init failed: %v", err)
	}
	if err := InitMetrics(prometheus.NewRegistry()); err != nil {
		t.Fatalf("second init failed: %v", err)
	}
}
