// Package store provides the front service's datastore access: a Postgres
// pg_sleep query that simulates slow database work.
package store

import (
	"context"
	"fmt"
	"time"
)

// SleepResult is the row returned by the sleep query.
type SleepResult struct {
	// Now is the database server's NOW() at the time the sleep finished.
	Now time.Time
}

// String renders the result tuple the way the front service appends it to
// its response body. pg_sleep itself returns an empty value, so the tuple is
// the empty sleep column plus the server timestamp.
func (r SleepResult) String() string {
	return fmt.Sprintf("(\"\", %s)", r.Now.UTC().Format(time.RFC3339Nano))
}

// Sleeper issues a blocking sleep query against the datastore.
type Sleeper interface {
	// SleepNow runs SELECT pg_sleep(d), NOW() and returns the resulting row.
	SleepNow(ctx context.Context, d time.Duration) (SleepResult, error)
	Ping(ctx context.Context) error
	Close() error
}
