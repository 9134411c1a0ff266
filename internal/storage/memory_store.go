package storage

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/openpowerquality/opq-sub000/internal/logging"
	"github.com/openpowerquality/opq-sub000/internal/models"
)

// numShards is the number of lock shards. Boxes hash to shards so ingest of
// different boxes does not contend on one mutex.
const numShards = 16

// shard is one partition of the MemoryStore's trends, with its own mutex
type shard struct {
	mu    sync.RWMutex
	boxes map[string]*OrderedSlice
}

// MemoryStore is an in-memory Store with sharded locking.
// Used by tests, the simulate tool and the ingest service when no MongoDB URI is configured.
type MemoryStore struct {
	shards [numShards]shard

	eventsMu sync.RWMutex
	events   map[models.OccurrenceKind][]int64 // sorted

	globalMu   sync.Mutex
	totalCount int64
	closed     bool

	logger *logging.Logger
}

func getShard(boxID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(boxID))
	return h.Sum32() % numShards
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(logger *logging.Logger) *MemoryStore {
	ms := &MemoryStore{
		events: make(map[models.OccurrenceKind][]int64),
		logger: logger,
	}
	for i := range ms.shards {
		ms.shards[i].boxes = make(map[string]*OrderedSlice)
	}

	logger.Debug("Memory store initialized", "num_shards", numShards)
	return ms
}

func (ms *MemoryStore) checkOpen() error {
	ms.globalMu.Lock()
	defer ms.globalMu.Unlock()
	if ms.closed {
		return ErrClosed
	}
	return nil
}

// InsertTrends validates and stores records. Nothing is written if any record is invalid.
func (ms *MemoryStore) InsertTrends(_ context.Context, records []models.TrendRecord) (int, error) {
	if err := ms.checkOpen(); err != nil {
		return 0, err
	}
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return 0, err
		}
	}

	var added int64
	for _, r := range records {
		s := &ms.shards[getShard(r.BoxID)]
		s.mu.Lock()
		slice, ok := s.boxes[r.BoxID]
		if !ok {
			slice = NewOrderedSlice(64)
			s.boxes[r.BoxID] = slice
		}
		if slice.Add(r) {
			added++
		}
		s.mu.Unlock()
	}

	ms.globalMu.Lock()
	ms.totalCount += added
	ms.globalMu.Unlock()

	return len(records), nil
}

// FindTrends returns the box's records with startMs <= timestamp_ms <= endMs in timestamp order
func (ms *MemoryStore) FindTrends(_ context.Context, boxID string, startMs, endMs int64) ([]models.TrendRecord, error) {
	if err := ms.checkOpen(); err != nil {
		return nil, err
	}
	s := &ms.shards[getShard(boxID)]
	s.mu.RLock()
	defer s.mu.RUnlock()

	slice, ok := s.boxes[boxID]
	if !ok {
		return nil, nil
	}
	return slice.Query(startMs, endMs), nil
}

// MostRecentTrend returns the newest record across all boxes
func (ms *MemoryStore) MostRecentTrend(_ context.Context) (*models.TrendRecord, error) {
	if err := ms.checkOpen(); err != nil {
		return nil, err
	}
	var newest *models.TrendRecord
	for i := range ms.shards {
		s := &ms.shards[i]
		s.mu.RLock()
		for _, slice := range s.boxes {
			if last := slice.Last(); last != nil && (newest == nil || last.TimestampMs > newest.TimestampMs) {
				newest = last
			}
		}
		s.mu.RUnlock()
	}
	return newest, nil
}

// Inventory returns count, oldest and newest record of a box
func (ms *MemoryStore) Inventory(_ context.Context, boxID string) (*models.TrendInventory, error) {
	if err := ms.checkOpen(); err != nil {
		return nil, err
	}
	s := &ms.shards[getShard(boxID)]
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv := &models.TrendInventory{BoxID: boxID}
	if slice, ok := s.boxes[boxID]; ok {
		inv.Count = int64(slice.Len())
		inv.Oldest = slice.First()
		inv.Newest = slice.Last()
	}
	return inv, nil
}

// TotalTrends returns the number of stored records
func (ms *MemoryStore) TotalTrends(_ context.Context) (int64, error) {
	if err := ms.checkOpen(); err != nil {
		return 0, err
	}
	ms.globalMu.Lock()
	defer ms.globalMu.Unlock()
	return ms.totalCount, nil
}

// BoxIDs lists boxes with stored trends
func (ms *MemoryStore) BoxIDs(_ context.Context) ([]string, error) {
	if err := ms.checkOpen(); err != nil {
		return nil, err
	}
	var ids []string
	for i := range ms.shards {
		s := &ms.shards[i]
		s.mu.RLock()
		for id := range s.boxes {
			ids = append(ids, id)
		}
		s.mu.RUnlock()
	}
	sort.Strings(ids)
	return ids, nil
}

// InsertOccurrences records occurrence timestamps. boxID is not retained.
func (ms *MemoryStore) InsertOccurrences(_ context.Context, kind models.OccurrenceKind, _ string, timestamps []int64) error {
	if err := ms.checkOpen(); err != nil {
		return err
	}
	if _, err := models.ParseOccurrenceKind(string(kind)); err != nil {
		return err
	}

	ms.eventsMu.Lock()
	defer ms.eventsMu.Unlock()
	merged := append(ms.events[kind], timestamps...)
	sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })
	ms.events[kind] = merged
	return nil
}

// OccurrenceTimes returns timestamps of kind in [startMs, endMs]; endMs <= 0 is unbounded
func (ms *MemoryStore) OccurrenceTimes(_ context.Context, kind models.OccurrenceKind, startMs, endMs int64) ([]int64, error) {
	if err := ms.checkOpen(); err != nil {
		return nil, err
	}
	if _, err := models.ParseOccurrenceKind(string(kind)); err != nil {
		return nil, err
	}

	ms.eventsMu.RLock()
	defer ms.eventsMu.RUnlock()
	all := ms.events[kind]
	lo := sort.Search(len(all), func(i int) bool { return all[i] >= startMs })
	hi := len(all)
	if endMs > 0 {
		hi = sort.Search(len(all), func(i int) bool { return all[i] > endMs })
	}
	if lo >= hi {
		return nil, nil
	}
	out := make([]int64, hi-lo)
	copy(out, all[lo:hi])
	return out, nil
}

// Ping reports whether the store is open
func (ms *MemoryStore) Ping(_ context.Context) error {
	return ms.checkOpen()
}

// Close marks the store closed. Data is discarded.
func (ms *MemoryStore) Close(_ context.Context) error {
	ms.globalMu.Lock()
	defer ms.globalMu.Unlock()
	if ms.closed {
		return nil
	}
	ms.closed = true
	ms.logger.Debug("Memory store closed", "total_trends", ms.totalCount)
	return nil
}
