package aggregation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/openpowerquality/opq-sub000/internal/models"

	"golang.org/x/sync/errgroup"
)

// Engine fetches records from storage and runs the pure rollups over them.
// It holds no state between calls.
type Engine struct {
	trends TrendStore
	events EventReader
	opts   Options
}

// NewEngine creates a rollup engine. events may be nil when count rollups are not needed.
func NewEngine(trends TrendStore, events EventReader, opts Options) *Engine {
	def := DefaultOptions()
	if opts.Location == nil {
		opts.Location = def.Location
	}
	if opts.SamplingInterval <= 0 {
		opts.SamplingInterval = def.SamplingInterval
	}
	if opts.MaxParallelBoxes <= 0 {
		opts.MaxParallelBoxes = def.MaxParallelBoxes
	}
	if opts.MaxRangeDays <= 0 {
		opts.MaxRangeDays = def.MaxRangeDays
	}
	return &Engine{trends: trends, events: events, opts: opts}
}

// Options returns the engine's effective options
func (e *Engine) Options() Options {
	return e.opts
}

// MonthlyBoxTrends rolls up one box over a 0-based month
func (e *Engine) MonthlyBoxTrends(ctx context.Context, boxID string, month, year int) (*MonthlyRollup, error) {
	if month < 0 || month > 11 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMonth, month)
	}
	startMs, endMs := e.opts.calendar().MonthBounds(month, year)

	records, err := e.trends.FindTrends(ctx, boxID, startMs, endMs)
	if err != nil {
		return nil, fmt.Errorf("failed to read trends for box %s: %w", boxID, err)
	}
	return RollupMonth(boxID, records, month, year, e.opts)
}

// DailyTrendsInRange rolls up every box over [startMs, endMs]. Boxes are
// independent and are computed concurrently, bounded by MaxParallelBoxes.
// The first failure cancels the remaining boxes.
func (e *Engine) DailyTrendsInRange(ctx context.Context, boxIDs []string, startMs, endMs int64) (map[string]*RangeRollup, error) {
	if err := e.opts.checkRange(startMs, endMs); err != nil {
		return nil, err
	}

	results := make(map[string]*RangeRollup, len(boxIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.MaxParallelBoxes)

	for _, boxID := range boxIDs {
		g.Go(func() error {
			records, err := e.trends.FindTrends(gctx, boxID, startMs, endMs)
			if err != nil {
				return fmt.Errorf("failed to read trends for box %s: %w", boxID, err)
			}
			rollup, err := RollupRange(boxID, records, startMs, endMs, e.opts)
			if err != nil {
				return err
			}

			mu.Lock()
			results[boxID] = rollup
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// EventsCountMap counts occurrences of kind in [startMs, endMs] by calendar key
func (e *Engine) EventsCountMap(ctx context.Context, kind models.OccurrenceKind, unit TimeUnit, startMs, endMs int64) (map[string]int, error) {
	if e.events == nil {
		return nil, errors.New("no event reader configured")
	}
	if _, err := ParseTimeUnit(string(unit)); err != nil {
		return nil, err
	}
	if endMs > 0 && endMs < startMs {
		return nil, fmt.Errorf("%w: start %d end %d", ErrInvalidRange, startMs, endMs)
	}

	timestamps, err := e.events.OccurrenceTimes(ctx, kind, startMs, endMs)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", kind, err)
	}
	return CountByTimeUnit(timestamps, unit, e.opts.Location)
}

// MostRecentTrendMonth returns the box and 0-based month of the newest stored
// trend, nil when the store is empty
func (e *Engine) MostRecentTrendMonth(ctx context.Context) (*models.TrendMonth, error) {
	rec, err := e.trends.MostRecentTrend(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read most recent trend: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	t := e.opts.calendar().Time(rec.TimestampMs)
	return &models.TrendMonth{
		BoxID: rec.BoxID,
		Month: int(t.Month()) - 1,
		Year:  t.Year(),
	}, nil
}

// Inventory returns per-box inventories in the order of boxIDs
func (e *Engine) Inventory(ctx context.Context, boxIDs []string) ([]*models.TrendInventory, error) {
	out := make([]*models.TrendInventory, len(boxIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.MaxParallelBoxes)
	for i, boxID := range boxIDs {
		g.Go(func() error {
			inv, err := e.trends.Inventory(gctx, boxID)
			if err != nil {
				return fmt.Errorf("failed to read inventory for box %s: %w", boxID, err)
			}
			out[i] = inv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// TotalTrends counts stored records across all boxes
func (e *Engine) TotalTrends(ctx context.Context) (int64, error) {
	return e.trends.TotalTrends(ctx)
}
