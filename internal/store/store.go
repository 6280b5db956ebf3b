// Package store persists event records and ingestion counters in the
// key-value collaborator. The record write happens before the index
// updates, so a crash mid-Put leaves at most an orphaned id-set entry,
// which the sweep treats as invalid and removes.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/aaaalabs/kinn-radar/internal/models"
)

// ErrNotFound marks a lookup miss, distinct from connection errors.
var ErrNotFound = errors.New("record not found")

// EventStore is the persistence contract for event records. Callers
// validate before Put; the store performs no validation of its own.
type EventStore interface {
	// Put upserts a record by id and adds the id to the global and
	// per-date index sets. The record write happens first.
	Put(ctx context.Context, rec models.EventRecord) error

	// Get retrieves a record or ErrNotFound.
	Get(ctx context.Context, id string) (*models.EventRecord, error)

	// Exists is the fast duplicate pre-check against the id set.
	Exists(ctx context.Context, id string) (bool, error)

	// Remove deletes the record and drops the id from both index sets.
	// Removing an id that is not present is a no-op.
	Remove(ctx context.Context, id string) error

	// ListIDs re-reads the global id set.
	ListIDs(ctx context.Context) ([]string, error)

	// ListAll loads every record reachable from the id set. Orphaned ids
	// pointing at missing records are skipped, not errors.
	ListAll(ctx context.Context) ([]models.EventRecord, error)

	// Count returns the id-set cardinality.
	Count(ctx context.Context) (int64, error)
}

// MetricsCollector tracks ingestion counters scoped globally, per-day and
// per-source. Increments are atomic in the underlying store.
type MetricsCollector interface {
	IncrFound(ctx context.Context, source string, delta int64) error
	IncrAdded(ctx context.Context, source string, delta int64) error
	IncrRejected(ctx context.Context, source string, delta int64) error
	IncrDuplicates(ctx context.Context, source string, delta int64) error

	// MarkSourceSuccess records the last successful run for a source.
	MarkSourceSuccess(ctx context.Context, source string, at time.Time) error

	// Global and Daily read back the aggregate counters; Source reads the
	// per-source block. Reporting only.
	Global(ctx context.Context) (Counts, error)
	Daily(ctx context.Context, date string) (Counts, error)
	Source(ctx context.Context, name string) (models.SourceMetrics, error)
}

// Counts is one scope's counter block.
type Counts struct {
	Found      int64 `json:"found"`
	Added      int64 `json:"added"`
	Rejected   int64 `json:"rejected"`
	Duplicates int64 `json:"duplicates"`
}
