package models

import (
	"errors"
	"fmt"
)

// ErrInvalidRecord is returned when a trend record is missing required fields
var ErrInvalidRecord = errors.New("invalid trend record")

// ChannelSample is the min/max/average summary of one measured quantity
// over a single sampling interval
type ChannelSample struct {
	Min     float64 `json:"min" bson:"min"`
	Max     float64 `json:"max" bson:"max"`
	Average float64 `json:"average" bson:"average"`
}

// TrendRecord is a per-box, per-interval summary document produced by an OPQ Box.
// Any channel may be nil when the box did not report it for the interval.
type TrendRecord struct {
	BoxID       string         `json:"box_id" bson:"box_id"`
	TimestampMs int64          `json:"timestamp_ms" bson:"timestamp_ms"`
	Voltage     *ChannelSample `json:"voltage,omitempty" bson:"voltage,omitempty"`
	Frequency   *ChannelSample `json:"frequency,omitempty" bson:"frequency,omitempty"`
	THD         *ChannelSample `json:"thd,omitempty" bson:"thd,omitempty"`
}

// Validate checks the fields every consumer relies on
func (r *TrendRecord) Validate() error {
	if r.BoxID == "" {
		return fmt.Errorf("%w: box_id is required", ErrInvalidRecord)
	}
	if r.TimestampMs <= 0 {
		return fmt.Errorf("%w: timestamp_ms must be positive (box %s)", ErrInvalidRecord, r.BoxID)
	}
	return nil
}

// TrendBatch is the unit published on the ingest queue
type TrendBatch struct {
	BatchID string        `json:"batch_id"`
	Records []TrendRecord `json:"records"`
}

// OccurrenceKind selects which discrete-occurrence collection a count rollup reads
type OccurrenceKind string

const (
	// OccurrenceEvents are system-wide events keyed by target_event_start_timestamp_ms
	OccurrenceEvents OccurrenceKind = "events"
	// OccurrenceBoxEvents are per-box events keyed by event_start_timestamp_ms
	OccurrenceBoxEvents OccurrenceKind = "box_events"
)

// ParseOccurrenceKind validates a user-supplied occurrence kind
func ParseOccurrenceKind(s string) (OccurrenceKind, error) {
	switch OccurrenceKind(s) {
	case OccurrenceEvents, OccurrenceBoxEvents:
		return OccurrenceKind(s), nil
	default:
		return "", fmt.Errorf("unknown occurrence kind %q (supported: events, box_events)", s)
	}
}

// TrendInventory describes what is stored for a single box
type TrendInventory struct {
	BoxID  string       `json:"box_id"`
	Count  int64        `json:"count"`
	Oldest *TrendRecord `json:"oldest,omitempty"`
	Newest *TrendRecord `json:"newest,omitempty"`
}

// TrendMonth identifies the calendar month of a trend record. Month is 0-based.
type TrendMonth struct {
	BoxID string `json:"box_id"`
	Month int    `json:"month"`
	Year  int    `json:"year"`
}
