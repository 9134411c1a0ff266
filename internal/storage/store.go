package storage

import (
	"context"
	"errors"

	"github.com/openpowerquality/opq-sub000/internal/aggregation"
	"github.com/openpowerquality/opq-sub000/internal/models"
)

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("store is closed")

// Store persists trend records and occurrence timestamps.
// Inserting a record whose (box_id, timestamp_ms) already exists replaces it,
// so redelivered ingest batches do not double count.
type Store interface {
	aggregation.TrendStore
	aggregation.EventReader

	// InsertTrends stores records and returns how many were written
	InsertTrends(ctx context.Context, records []models.TrendRecord) (int, error)
	// InsertOccurrences stores occurrence timestamps of one kind for a box
	InsertOccurrences(ctx context.Context, kind models.OccurrenceKind, boxID string, timestamps []int64) error
	// BoxIDs lists every box with at least one stored trend, sorted
	BoxIDs(ctx context.Context) ([]string, error)
	// Ping checks the backend is reachable
	Ping(ctx context.Context) error
	// Close releases the backend
	Close(ctx context.Context) error
}
