package aggregation

import (
	"context"

	"github.com/openpowerquality/opq-sub000/internal/models"
)

// =============================================================================
// Interfaces for avoiding circular dependencies with storage package
// =============================================================================

// TrendReader reads raw trend records
// Implemented by storage.MongoStore and storage.MemoryStore
type TrendReader interface {
	// FindTrends returns the box's records with startMs <= timestamp_ms <= endMs,
	// ordered by timestamp_ms ascending
	FindTrends(ctx context.Context, boxID string, startMs, endMs int64) ([]models.TrendRecord, error)
}

// EventReader reads discrete occurrence timestamps
type EventReader interface {
	// OccurrenceTimes returns epoch-ms timestamps of occurrences of kind with
	// startMs <= t <= endMs. endMs <= 0 means unbounded.
	OccurrenceTimes(ctx context.Context, kind models.OccurrenceKind, startMs, endMs int64) ([]int64, error)
}

// TrendCatalog answers inventory questions about stored trends
type TrendCatalog interface {
	// MostRecentTrend returns the newest record across all boxes, nil when none exist
	MostRecentTrend(ctx context.Context) (*models.TrendRecord, error)
	// Inventory returns the count and the oldest and newest records of one box
	Inventory(ctx context.Context, boxID string) (*models.TrendInventory, error)
	// TotalTrends counts records across all boxes
	TotalTrends(ctx context.Context) (int64, error)
}

// TrendStore is everything the engine reads trends through
type TrendStore interface {
	TrendReader
	TrendCatalog
}
