// Package delay implements the delay service: a single route that holds
// each request for the requested number of seconds and answers with a fixed
// body. The wait is a timer select on the request goroutine, so in-flight
// delays never block one another.
package delay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fanout-lab/fanout/internal/delayparam"
	"github.com/fanout-lab/fanout/internal/errors"
	"github.com/fanout-lab/fanout/internal/metrics"
)

const serviceName = "delayd"

// ResponseBody is the fixed body returned after the delay elapses.
const ResponseBody = "slow api response"

// Config holds the configuration for the delay handler
type Config struct {
	// MaxDelay caps the delay a client may request; zero means uncapped.
	MaxDelay time.Duration
}

// Handler handles delay requests
type Handler struct {
	maxDelay time.Duration
}

// NewHandler creates a new delay handler
func NewHandler(cfg Config) *Handler {
	return &Handler{
		maxDelay: cfg.MaxDelay,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// Track the request in metrics
	defer func() {
		metrics.RecordRequestDuration(serviceName, time.Since(start).Seconds())
	}()

	if r.Method != http.MethodGet {
		metrics.RecordError("method_not_allowed")
		metrics.RecordRequest(serviceName, "405")

		response := errors.ErrorResponse{
			Status:    "error",
			Message:   "Method not allowed, only GET is supported",
			ErrorType: "validation",
			Details: map[string]interface{}{
				"method": r.Method,
				"path":   r.URL.Path,
			},
		}

		h.sendJSONResponse(w, http.StatusMethodNotAllowed, response)
		return
	}

	d, err := delayparam.Parse(r.URL.Query().Get("delay"), h.maxDelay)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	metrics.RecordDelayRequested(serviceName, d.Seconds())

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-r.Context().Done():
		// The client went away or the request deadline fired mid-sleep.
		h.handleError(w, r, errors.NewTimeoutError("request ended before the delay elapsed"))
		return
	}

	metrics.RecordRequest(serviceName, "200")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, ResponseBody)
}

// handleError processes errors and returns appropriate HTTP responses
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.StatusCode(err)
	metrics.RecordRequest(serviceName, strconv.Itoa(status))
	metrics.RecordError(errors.TypeOf(err))

	h.sendJSONResponse(w, status, errors.ToErrorResponse(err))
}

// sendJSONResponse sends a JSON response with the given status code
func (h *Handler) sendJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		metrics.RecordError("json_encode_error")
	}
}
