package storage

import (
	"sort"

	"github.com/openpowerquality/opq-sub000/internal/models"
)

// OrderedSlice maintains one box's trend records sorted by TimestampMs.
// Optimized for the append pattern of a box reporting once per interval.
//
// NOT THREAD-SAFE: synchronization is handled by MemoryStore's shard locks.
type OrderedSlice struct {
	records []models.TrendRecord
}

// NewOrderedSlice creates a new ordered slice with initial capacity
func NewOrderedSlice(capacity int) *OrderedSlice {
	return &OrderedSlice{records: make([]models.TrendRecord, 0, capacity)}
}

// Add inserts a record in timestamp order. A record with an existing
// timestamp replaces the stored one (last write wins). Reports whether the
// slice grew.
func (os *OrderedSlice) Add(r models.TrendRecord) bool {
	n := len(os.records)

	// Fast path: append in order
	if n == 0 || r.TimestampMs > os.records[n-1].TimestampMs {
		os.records = append(os.records, r)
		return true
	}

	idx := sort.Search(n, func(i int) bool {
		return os.records[i].TimestampMs >= r.TimestampMs
	})
	if idx < n && os.records[idx].TimestampMs == r.TimestampMs {
		os.records[idx] = r
		return false
	}

	os.records = append(os.records, models.TrendRecord{})
	copy(os.records[idx+1:], os.records[idx:])
	os.records[idx] = r
	return true
}

// Query returns a copy of the records with start <= TimestampMs <= end
func (os *OrderedSlice) Query(start, end int64) []models.TrendRecord {
	lo := sort.Search(len(os.records), func(i int) bool {
		return os.records[i].TimestampMs >= start
	})
	hi := sort.Search(len(os.records), func(i int) bool {
		return os.records[i].TimestampMs > end
	})
	if lo >= hi {
		return nil
	}

	out := make([]models.TrendRecord, hi-lo)
	copy(out, os.records[lo:hi])
	return out
}

// Len returns the number of records
func (os *OrderedSlice) Len() int {
	return len(os.records)
}

// First returns a copy of the oldest record, nil when empty
func (os *OrderedSlice) First() *models.TrendRecord {
	if len(os.records) == 0 {
		return nil
	}
	r := os.records[0]
	return &r
}

// Last returns a copy of the newest record, nil when empty
func (os *OrderedSlice) Last() *models.TrendRecord {
	if len(os.records) == 0 {
		return nil
	}
	r := os.records[len(os.records)-1]
	return &r
}
