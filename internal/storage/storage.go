// Package storage defines the run-history interface: completed
// deduplication runs, their reports, and their event streams are
// persisted so past runs can be listed and inspected.
package storage

import (
	"context"

	"github.com/yunmindata/dedupe/internal/events"
	"github.com/yunmindata/dedupe/internal/storage/sqlite"
)

// Storage is the run-history backend.
type Storage interface {
	// SaveRun persists a completed run with its report, per-domain
	// breakdown, and sample pairs
	SaveRun(ctx context.Context, run *sqlite.RunRecord) error

	// GetRun retrieves a run by id
	GetRun(ctx context.Context, id string) (*sqlite.RunRecord, error)

	// ListRuns returns the most recent runs, newest first
	ListRuns(ctx context.Context, limit int) ([]*sqlite.RunRecord, error)

	// Record persists one engine event; Storage satisfies events.Sink
	// so an engine can stream events into the history as it runs
	Record(ctx context.Context, event *events.Event) error

	// GetRunEvents returns a run's events in emission order
	GetRunEvents(ctx context.Context, runID string) ([]*events.Event, error)

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".dedupe/runs.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".dedupe/runs.db",
	}
}

// NewStorage creates a new SQLite run-history backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = ".dedupe/runs.db"
	}
	return sqlite.New(cfg.Path)
}
