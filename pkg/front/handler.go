// Package front implements the front service: the user-facing route that
// fans out to the delay service and, when the datastore is enabled, to a
// pg_sleep query, composing both results into a single plaintext response.
package front

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fanout-lab/fanout/internal/delayparam"
	"github.com/fanout-lab/fanout/internal/errors"
	"github.com/fanout-lab/fanout/internal/metrics"
	"github.com/fanout-lab/fanout/internal/store"
	"github.com/fanout-lab/fanout/internal/upstream"
)

const serviceName = "frontd"

// greeting prefixes every successful response body.
const greeting = "Hi there! "

// Config holds the configuration for the front handler
type Config struct {
	Upstream upstream.Client
	// Store enables the datastore variant when non-nil.
	Store store.Sleeper
	// MaxDelay caps the delay a client may request; zero means uncapped.
	MaxDelay time.Duration
}

// Handler handles front service requests
type Handler struct {
	upstream upstream.Client
	store    store.Sleeper
	maxDelay time.Duration
}

// NewHandler creates a new front handler
func NewHandler(cfg Config) *Handler {
	return &Handler{
		upstream: cfg.Upstream,
		store:    cfg.Store,
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

	if h.store == nil {
		h.serveAPI(w, r, d)
		return
	}
	h.serveWithStore(w, r, d)
}

// serveAPI forwards the full delay to the delay service and echoes its body.
func (h *Handler) serveAPI(w http.ResponseWriter, r *http.Request, d time.Duration) {
	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(r.Context(), "delay_fetch",
		trace.WithAttributes(attribute.Float64("delay_seconds", d.Seconds())))
	defer span.End()

	fetchStart := time.Now()
	body, err := h.upstream.Fetch(ctx, d)
	took := time.Since(fetchStart).Seconds()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		metrics.RecordUpstreamRequest("error", took)
		h.handleError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "fetched")
	metrics.RecordUpstreamRequest("success", took)

	metrics.RecordRequest(serviceName, "200")
	h.sendTextResponse(w, greeting+body)
}

// serveWithStore splits the delay between the delay service and a pg_sleep
// query issued concurrently, so total latency tracks the slower half rather
// than the sum of both.
func (h *Handler) serveWithStore(w http.ResponseWriter, r *http.Request, d time.Duration) {
	half := d / 2

	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(r.Context(), "fanout",
		trace.WithAttributes(attribute.Float64("delay_seconds", d.Seconds())))
	defer span.End()

	type fetchOut struct {
		body string
		err  error
		took float64
	}
	type sleepOut struct {
		result store.SleepResult
		err    error
		took   float64
	}

	fetchCh := make(chan fetchOut, 1)
	sleepCh := make(chan sleepOut, 1)

	go func() {
		fctx, fspan := tracer.Start(ctx, "delay_fetch",
			trace.WithAttributes(attribute.Float64("delay_seconds", half.Seconds())))
		defer fspan.End()

		fetchStart := time.Now()
		body, err := h.upstream.Fetch(fctx, half)
		if err != nil {
			fspan.RecordError(err)
			fspan.SetStatus(codes.Error, "fetch failed")
		}
		fetchCh <- fetchOut{body: body, err: err, took: time.Since(fetchStart).Seconds()}
	}()

	go func() {
		sctx, sspan := tracer.Start(ctx, "sleep_query",
			trace.WithAttributes(attribute.Float64("sleep_seconds", half.Seconds())))
		defer sspan.End()

		sleepStart := time.Now()
		result, err := h.store.SleepNow(sctx, half)
		if err != nil {
			sspan.RecordError(err)
			sspan.SetStatus(codes.Error, "query failed")
		}
		sleepCh <- sleepOut{result: result, err: err, took: time.Since(sleepStart).Seconds()}
	}()

	// Both channels are buffered, so draining them never leaks a goroutine
	// even when one side fails.
	fetch := <-fetchCh
	sleep := <-sleepCh

	if fetch.err != nil {
		metrics.RecordUpstreamRequest("error", fetch.took)
	} else {
		metrics.RecordUpstreamRequest("success", fetch.took)
	}
	if sleep.err != nil {
		metrics.RecordSleepQuery("error", sleep.took)
	} else {
		metrics.RecordSleepQuery("success", sleep.took)
	}

	// When both paths fail the upstream error wins: a gateway failure is the
	// more actionable signal, and the database error stays visible in logs
	// and metrics.
	if fetch.err != nil {
		span.SetStatus(codes.Error, "fetch failed")
		h.handleError(w, r, fetch.err)
		return
	}
	if sleep.err != nil {
		span.SetStatus(codes.Error, "query failed")
		h.handleError(w, r, sleep.err)
		return
	}

	span.SetStatus(codes.Ok, "composed")
	metrics.RecordRequest(serviceName, "200")
	h.sendTextResponse(w, greeting+fetch.body+" "+sleep.result.String())
}

// handleError processes errors and returns appropriate HTTP responses
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.StatusCode(err)
	metrics.RecordRequest(serviceName, strconv.Itoa(status))
	metrics.RecordError(errors.TypeOf(err))

	h.sendJSONResponse(w, status, errors.ToErrorResponse(err))
}

// sendTextResponse sends a plaintext success response
func (h *Handler) sendTextResponse(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, body)
}

// sendJSONResponse sends a JSON response with the given status code
func (h *Handler) sendJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		metrics.RecordError("json_encode_error")
	}
}
