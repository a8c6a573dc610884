package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/fanout-lab/fanout/internal/config"
	"github.com/fanout-lab/fanout/internal/errors"
)

// sleepQuery mirrors the demo workload: hold a connection busy for the
// requested duration, then report the server clock.
const sleepQuery = "SELECT pg_sleep($1), NOW()"

// PostgresStore implements Sleeper on a pooled *sql.DB. Each sleep checks a
// single connection out of the pool for the duration of the query and
// returns it on every exit path.
type PostgresStore struct {
	db         *sql.DB
	sleepGrace time.Duration
}

// NewPostgres creates a new PostgreSQL-backed store
func NewPostgres(cfg config.DatabaseConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, errors.NewDatabaseError("failed to open postgres", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	sleepGrace := cfg.SleepGrace
	if sleepGrace <= 0 {
		sleepGrace = 5 * time.Second
	}

	return &PostgresStore{db: db, sleepGrace: sleepGrace}, nil
}

// NewPostgresFromDB wraps an existing database handle, used by tests
func NewPostgresFromDB(db *sql.DB, sleepGrace time.Duration) *PostgresStore {
	if sleepGrace <= 0 {
		sleepGrace = 5 * time.Second
	}
	return &PostgresStore{db: db, sleepGrace: sleepGrace}
}

// SleepNow runs the sleep query with a deadline of the requested sleep plus
// the configured grace period.
func (s *PostgresStore) SleepNow(ctx context.Context, d time.Duration) (SleepResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d+s.sleepGrace)
	defer cancel()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return SleepResult{}, errors.NewDatabaseError("failed to acquire connection", err)
	}
	defer conn.Close()

	// pg_sleep returns void, which lib/pq hands back as empty bytes.
	var void []byte
	var now time.Time
	row := conn.QueryRowContext(ctx, sleepQuery, d.Seconds())
	if err := row.Scan(&void, &now); err != nil {
		if ctx.Err() != nil {
			return SleepResult{}, errors.NewDatabaseError("sleep query timed out", ctx.Err())
		}
		return SleepResult{}, errors.NewDatabaseError("sleep query failed", err)
	}

	return SleepResult{Now: now}, nil
}

// Ping tests the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.NewDatabaseError("postgres unreachable", err)
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
