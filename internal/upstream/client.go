// Package upstream provides the front service's client for the delay
// service, behind a small interface so handlers can be tested without a
// live downstream.
package upstream

import (
	"context"
	"time"
)

// Client fetches a response from the delay service.
type Client interface {
	// Fetch asks the delay service to hold the request for the given delay
	// and returns the response body.
	Fetch(ctx context.Context, delay time.Duration) (string, error)
	Close() error
}
