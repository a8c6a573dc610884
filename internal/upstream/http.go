package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fanout-lab/fanout/internal/delayparam"
	"github.com/fanout-lab/fanout/internal/errors"
)

// HTTPClient implements Client over plain HTTP.
//
// Each fetch carries a context deadline of the requested delay plus a grace
// period, so a hung delay service cannot hold a front request open forever.
// There is no retry: a failed fetch surfaces directly to the caller.
type HTTPClient struct {
	baseURL    string
	fetchGrace time.Duration
	httpc      *http.Client
}

// NewHTTPClient creates a delay service client for the given base URL
func NewHTTPClient(baseURL string, fetchGrace time.Duration) (*HTTPClient, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if _, err := url.Parse(baseURL); err != nil {
		return nil, errors.Wrap(err, "invalid delay service URL")
	}
	if fetchGrace <= 0 {
		fetchGrace = 10 * time.Second
	}

	return &HTTPClient{
		baseURL:    baseURL,
		fetchGrace: fetchGrace,
		// The per-request deadline comes from the context; the client itself
		// carries no fixed timeout that would cap long delays.
		httpc: &http.Client{},
	}, nil
}

// Fetch performs a GET against the delay service with the delay encoded as a
// query parameter
func (c *HTTPClient) Fetch(ctx context.Context, delay time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, delay+c.fetchGrace)
	defer cancel()

	target := fmt.Sprintf("%s/?delay=%s", c.baseURL, delayparam.Format(delay))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to build delay service request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.NewTimeoutError("delay service call timed out")
		}
		return "", errors.NewConnectionError("delay service unreachable: " + err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewUpstreamError("failed to read delay service response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", errors.WithDetails(
			errors.NewUpstreamError("delay service returned an error", nil),
			map[string]interface{}{
				"status_code": resp.StatusCode,
				"body":        strings.TrimSpace(string(body)),
			},
		)
	}

	return string(body), nil
}

// Close implements the Client interface
func (c *HTTPClient) Close() error {
	c.httpc.CloseIdleConnections()
	return nil
}
