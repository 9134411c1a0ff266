package aggregation

import (
	"errors"
	"fmt"

	"github.com/openpowerquality/opq-sub000/internal/models"
)

// ErrOutOfRange is returned when a record falls outside every pre-populated bucket
var ErrOutOfRange = errors.New("record outside requested period")

// Bucket accumulates every record of one calendar day (or one summary period)
type Bucket struct {
	Key           int64
	Channels      [numChannels]Accumulator
	TotalDocCount int64
}

func newBucket(key int64) Bucket {
	b := Bucket{Key: key}
	for i := range b.Channels {
		b.Channels[i] = NewAccumulator()
	}
	return b
}

// foldRecord adds a raw record. Absent channels are skipped.
func (b *Bucket) foldRecord(r *models.TrendRecord) {
	b.TotalDocCount++
	for _, ch := range Channels {
		b.Channels[ch] = b.Channels[ch].Fold(ch.sample(r), r.TimestampMs)
	}
}

// foldSummary adds a finalized day bucket as one sample per present channel
func (b *Bucket) foldSummary(s *BucketSummary) {
	b.TotalDocCount += s.TotalDocCount
	for _, ch := range Channels {
		b.Channels[ch] = b.Channels[ch].FoldSummary(s.Channel(ch))
	}
}

// finalize freezes the bucket. uptime may be nil when the period has no uptime estimate.
func (b *Bucket) finalize(uptime *float64) *BucketSummary {
	return &BucketSummary{
		Key:           b.Key,
		Voltage:       b.Channels[ChannelVoltage].Finalize(),
		Frequency:     b.Channels[ChannelFrequency].Finalize(),
		THD:           b.Channels[ChannelTHD].Finalize(),
		TotalDocCount: b.TotalDocCount,
		Uptime:        uptime,
	}
}

// BucketSummary is the finalized, read-only form of a Bucket
type BucketSummary struct {
	Key           int64           `json:"-"`
	Voltage       *ChannelSummary `json:"voltage,omitempty"`
	Frequency     *ChannelSummary `json:"frequency,omitempty"`
	THD           *ChannelSummary `json:"thd,omitempty"`
	TotalDocCount int64           `json:"totalDocCount"`
	Uptime        *float64        `json:"uptime,omitempty"`
}

// Channel returns the summary of one channel, nil when it was not reported
func (s *BucketSummary) Channel(ch Channel) *ChannelSummary {
	switch ch {
	case ChannelVoltage:
		return s.Voltage
	case ChannelFrequency:
		return s.Frequency
	case ChannelTHD:
		return s.THD
	default:
		return nil
	}
}

// dayArena holds the pre-populated day buckets of one query in key order
type dayArena struct {
	granularity Granularity
	buckets     []Bucket
	index       map[int64]int
}

func newDayArena(keys []int64, g Granularity) *dayArena {
	a := &dayArena{
		granularity: g,
		buckets:     make([]Bucket, len(keys)),
		index:       make(map[int64]int, len(keys)),
	}
	for i, k := range keys {
		a.buckets[i] = newBucket(k)
		a.index[k] = i
	}
	return a
}

// fold assigns r to its day bucket
func (a *dayArena) fold(cal Calendar, r *models.TrendRecord) error {
	key := cal.Assign(r.TimestampMs, a.granularity)
	i, ok := a.index[key]
	if !ok {
		return fmt.Errorf("%w: box %s timestamp_ms %d (%s key %d)",
			ErrOutOfRange, r.BoxID, r.TimestampMs, a.granularity, key)
	}
	a.buckets[i].foldRecord(r)
	return nil
}
