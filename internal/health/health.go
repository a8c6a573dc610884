// Package health exposes liveness and readiness handlers shared by the
// delay and front services.
package health

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

type Check struct {
	isReady *atomic.Bool
}

func NewCheck() *Check {
	ready := &atomic.Bool{}
	ready.Store(false)
	return &Check{
		isReady: ready,
	}
}

func (h *Check) HealthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status": "healthy",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (h *Check) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if !h.isReady.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	response := map[string]string{
		"status": "ready",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// SetReady marks the service as ready to receive traffic
func (h *Check) SetReady(ready bool) {
	h.isReady.Store(ready)
}
