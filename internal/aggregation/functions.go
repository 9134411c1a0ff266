package aggregation

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openpowerquality/opq-sub000/internal/models"
)

var (
	// ErrInvalidMonth is returned for a month outside 0..11
	ErrInvalidMonth = errors.New("month must be between 0 and 11")
	// ErrInvalidRange is returned when a range ends before it starts or
	// spans more than MaxRangeDays
	ErrInvalidRange = errors.New("invalid range")
)

// Options configures rollups
type Options struct {
	// Location is the calendar used for day and month boundaries
	Location *time.Location
	// SamplingInterval is the nominal spacing of trend records, used for uptime
	SamplingInterval time.Duration
	// MaxParallelBoxes bounds concurrent per-box rollups in a range query
	MaxParallelBoxes int
	// MaxRangeDays bounds the calendar days of one range rollup
	MaxRangeDays int
}

// DefaultMaxRangeDays allows a little over ten years of daily buckets
const DefaultMaxRangeDays = 3660

// DefaultOptions returns UTC calendar days and one-minute sampling
func DefaultOptions() Options {
	return Options{
		Location:         time.UTC,
		SamplingInterval: DefaultSamplingInterval,
		MaxParallelBoxes: 8,
		MaxRangeDays:     DefaultMaxRangeDays,
	}
}

func (o Options) calendar() Calendar {
	return NewCalendar(o.Location)
}

// checkRange rejects reversed ranges and ranges wider than MaxRangeDays
// (DefaultMaxRangeDays when unset)
func (o Options) checkRange(startMs, endMs int64) error {
	if endMs < startMs {
		return fmt.Errorf("%w: start %d after end %d", ErrInvalidRange, startMs, endMs)
	}
	limit := int64(o.MaxRangeDays)
	if limit <= 0 {
		limit = DefaultMaxRangeDays
	}
	if days := o.calendar().DayCount(startMs, endMs); days > limit {
		return fmt.Errorf("%w: spans %d days, limit is %d", ErrInvalidRange, days, limit)
	}
	return nil
}

// MonthlyRollup holds the day buckets of one month and their monthly summary
type MonthlyRollup struct {
	BoxID         string
	Month         int // 0-based
	Year          int
	DailyTrends   []*BucketSummary // ordered by day of month
	MonthlyTrends *BucketSummary
}

// DailyByKey indexes the day buckets by day of month
func (m *MonthlyRollup) DailyByKey() map[int64]*BucketSummary {
	return indexByKey(m.DailyTrends)
}

// MarshalJSON emits {dailyTrends: {day: bucket}, monthlyTrends: bucket}
func (m *MonthlyRollup) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		DailyTrends   map[int64]*BucketSummary `json:"dailyTrends"`
		MonthlyTrends *BucketSummary           `json:"monthlyTrends"`
	}{m.DailyByKey(), m.MonthlyTrends})
}

// RangeRollup holds the day buckets of an arbitrary day range and their summary
type RangeRollup struct {
	BoxID       string
	StartMs     int64
	EndMs       int64
	DailyTrends []*BucketSummary // ordered by start of day
	RangeTrends *BucketSummary
}

// DailyByKey indexes the day buckets by start-of-day milliseconds
func (r *RangeRollup) DailyByKey() map[int64]*BucketSummary {
	return indexByKey(r.DailyTrends)
}

// MarshalJSON emits {dailyTrends: {startOfDayMs: bucket}, rangeTrends: bucket}
func (r *RangeRollup) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		DailyTrends map[int64]*BucketSummary `json:"dailyTrends"`
		RangeTrends *BucketSummary           `json:"rangeTrends"`
	}{r.DailyByKey(), r.RangeTrends})
}

func indexByKey(buckets []*BucketSummary) map[int64]*BucketSummary {
	m := make(map[int64]*BucketSummary, len(buckets))
	for _, b := range buckets {
		m[b.Key] = b
	}
	return m
}

// RollupMonth folds one box's records for a 0-based month into day buckets,
// then folds the finalized days into a monthly summary.
//
// The monthly channel statistics are a mean of daily means: each day with data
// contributes one sample regardless of how many records it held. Monthly uptime
// is computed from the summed record count instead.
func RollupMonth(boxID string, records []models.TrendRecord, month, year int, opts Options) (*MonthlyRollup, error) {
	if month < 0 || month > 11 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMonth, month)
	}

	cal := opts.calendar()
	startMs, endMs := cal.MonthBounds(month, year)
	days := newDayArena(cal.MonthDayKeys(month, year), GranularityDayOfMonth)

	for i := range records {
		r := &records[i]
		if err := checkRecord(boxID, r); err != nil {
			return nil, err
		}
		// Day-of-month keys repeat every month, so bounds are checked before assignment.
		if r.TimestampMs < startMs || r.TimestampMs > endMs {
			return nil, fmt.Errorf("%w: box %s timestamp_ms %d not in %04d-%02d",
				ErrOutOfRange, r.BoxID, r.TimestampMs, year, month+1)
		}
		if err := days.fold(cal, r); err != nil {
			return nil, err
		}
	}

	perDay := ExpectedRecordsPerDay(opts.SamplingInterval)
	daily := make([]*BucketSummary, len(days.buckets))
	for i := range days.buckets {
		uptime := DeficitBasedUptime(days.buckets[i].TotalDocCount, perDay)
		daily[i] = days.buckets[i].finalize(&uptime)
	}

	monthly := newBucket(startMs)
	for _, d := range daily {
		monthly.foldSummary(d)
	}
	monthUptime := DeficitBasedUptime(monthly.TotalDocCount, perDay*int64(len(daily)))

	return &MonthlyRollup{
		BoxID:         boxID,
		Month:         month,
		Year:          year,
		DailyTrends:   daily,
		MonthlyTrends: monthly.finalize(&monthUptime),
	}, nil
}

// RollupRange folds one box's records into a bucket per calendar day between
// the days containing startMs and endMs, then folds the finalized days into a
// range summary. The range summary carries no uptime estimate.
func RollupRange(boxID string, records []models.TrendRecord, startMs, endMs int64, opts Options) (*RangeRollup, error) {
	if err := opts.checkRange(startMs, endMs); err != nil {
		return nil, err
	}

	cal := opts.calendar()
	keys := cal.DayKeys(startMs, endMs)
	days := newDayArena(keys, GranularityDayInRange)

	for i := range records {
		r := &records[i]
		if err := checkRecord(boxID, r); err != nil {
			return nil, err
		}
		if err := days.fold(cal, r); err != nil {
			return nil, err
		}
	}

	perDay := ExpectedRecordsPerDay(opts.SamplingInterval)
	daily := make([]*BucketSummary, len(days.buckets))
	for i := range days.buckets {
		uptime := FractionBasedUptime(days.buckets[i].TotalDocCount, perDay)
		daily[i] = days.buckets[i].finalize(&uptime)
	}

	summary := newBucket(keys[0])
	for _, d := range daily {
		summary.foldSummary(d)
	}

	return &RangeRollup{
		BoxID:       boxID,
		StartMs:     startMs,
		EndMs:       endMs,
		DailyTrends: daily,
		RangeTrends: summary.finalize(nil),
	}, nil
}

func checkRecord(boxID string, r *models.TrendRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if boxID != "" && r.BoxID != boxID {
		return fmt.Errorf("%w: record for box %s in rollup of box %s", models.ErrInvalidRecord, r.BoxID, boxID)
	}
	return nil
}
