package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openpowerquality/opq-sub000/internal/aggregation"
	"github.com/openpowerquality/opq-sub000/internal/logging"
	"github.com/openpowerquality/opq-sub000/internal/metadata"
	"github.com/openpowerquality/opq-sub000/internal/metrics"
	"github.com/openpowerquality/opq-sub000/internal/models"
)

// TrendService validates rollup requests against the box registry, runs them
// on the engine and maps failures to ServiceErrors
type TrendService struct {
	logger   *logging.Logger
	registry metadata.Registry
	engine   *aggregation.Engine
	metrics  *metrics.Metrics
}

// NewTrendService creates a TrendService. registry may be nil, in which case
// box ids are not checked; m may be nil to skip metrics.
func NewTrendService(
	logger *logging.Logger,
	registry metadata.Registry,
	engine *aggregation.Engine,
	m *metrics.Metrics,
) *TrendService {
	if logger == nil {
		logger = logging.Global()
	}
	return &TrendService{
		logger:   logger,
		registry: registry,
		engine:   engine,
		metrics:  m,
	}
}

// Location is the calendar zone rollups bucket days in
func (s *TrendService) Location() *time.Location {
	return s.engine.Options().Location
}

// MonthlyBoxTrends returns the day and month rollup of one box for a 0-based month
func (s *TrendService) MonthlyBoxTrends(ctx context.Context, boxID string, month, year int) (*aggregation.MonthlyRollup, error) {
	startTime := time.Now()

	if err := s.assertBoxes(ctx, boxID); err != nil {
		return nil, err
	}

	rollup, err := s.engine.MonthlyBoxTrends(ctx, boxID, month, year)
	s.metrics.ObserveRollup("monthly", startTime, err)
	if err != nil {
		s.logger.Error("Monthly rollup failed",
			"box_id", boxID,
			"month", month,
			"year", year,
			"error", err)
		return nil, toServiceError("monthly rollup", err)
	}

	s.logger.Info("Monthly rollup completed",
		"box_id", boxID,
		"month", month,
		"year", year,
		"records", rollup.MonthlyTrends.TotalDocCount,
		"latency_ms", time.Since(startTime).Milliseconds())
	return rollup, nil
}

// DailyTrendsInRange returns per-box day rollups over [startMs, endMs]
func (s *TrendService) DailyTrendsInRange(ctx context.Context, boxIDs []string, startMs, endMs int64) (map[string]*aggregation.RangeRollup, error) {
	startTime := time.Now()

	if len(boxIDs) == 0 {
		return nil, NewServiceError(CodeInvalidRequest, "at least one box id is required")
	}
	if err := s.assertBoxes(ctx, boxIDs...); err != nil {
		return nil, err
	}

	result, err := s.engine.DailyTrendsInRange(ctx, boxIDs, startMs, endMs)
	s.metrics.ObserveRollup("range", startTime, err)
	if err != nil {
		s.logger.Error("Range rollup failed",
			"boxes", len(boxIDs),
			"start_ms", startMs,
			"end_ms", endMs,
			"error", err)
		return nil, toServiceError("range rollup", err)
	}

	s.logger.Info("Range rollup completed",
		"boxes", len(boxIDs),
		"start_ms", startMs,
		"end_ms", endMs,
		"latency_ms", time.Since(startTime).Milliseconds())
	return result, nil
}

// EventsCountMap counts occurrences of kind per time unit key. endMs <= 0
// leaves the range open-ended.
func (s *TrendService) EventsCountMap(ctx context.Context, kind, unit string, startMs, endMs int64) (map[string]int, error) {
	startTime := time.Now()

	occurrenceKind, err := models.ParseOccurrenceKind(kind)
	if err != nil {
		return nil, NewServiceError(CodeInvalidRequest, err.Error())
	}
	timeUnit, err := aggregation.ParseTimeUnit(unit)
	if err != nil {
		return nil, NewServiceError(CodeInvalidRequest, err.Error())
	}

	counts, err := s.engine.EventsCountMap(ctx, occurrenceKind, timeUnit, startMs, endMs)
	s.metrics.ObserveRollup("counts", startTime, err)
	if err != nil {
		s.logger.Error("Count rollup failed", "kind", kind, "unit", unit, "error", err)
		return nil, toServiceError("count rollup", err)
	}

	s.logger.Info("Count rollup completed",
		"kind", kind,
		"unit", unit,
		"keys", len(counts),
		"latency_ms", time.Since(startTime).Milliseconds())
	return counts, nil
}

// MostRecentTrendMonth returns the box and month of the newest stored trend,
// or nil when nothing is stored
func (s *TrendService) MostRecentTrendMonth(ctx context.Context) (*models.TrendMonth, error) {
	month, err := s.engine.MostRecentTrendMonth(ctx)
	if err != nil {
		return nil, toServiceError("latest trend lookup", err)
	}
	return month, nil
}

// Inventory describes stored trends per box. With no box ids it covers every
// registered box.
func (s *TrendService) Inventory(ctx context.Context, boxIDs []string) ([]*models.TrendInventory, error) {
	if len(boxIDs) == 0 {
		if s.registry == nil {
			return nil, NewServiceError(CodeInvalidRequest, "box ids are required without a registry")
		}
		ids, err := metadata.BoxIDs(ctx, s.registry)
		if err != nil {
			return nil, wrapServiceError(CodeQueryFailed, "Failed to list boxes", err)
		}
		boxIDs = ids
	} else if err := s.assertBoxes(ctx, boxIDs...); err != nil {
		return nil, err
	}

	inv, err := s.engine.Inventory(ctx, boxIDs)
	if err != nil {
		return nil, toServiceError("inventory", err)
	}
	return inv, nil
}

// TotalTrends returns the number of stored trend records
func (s *TrendService) TotalTrends(ctx context.Context) (int64, error) {
	n, err := s.engine.TotalTrends(ctx)
	if err != nil {
		return 0, toServiceError("trend count", err)
	}
	return n, nil
}

func (s *TrendService) assertBoxes(ctx context.Context, boxIDs ...string) error {
	if s.registry == nil {
		return nil
	}
	err := metadata.AssertValidBoxIDs(ctx, s.registry, boxIDs...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, metadata.ErrBoxNotFound):
		return wrapServiceError(CodeBoxNotFound, err.Error(), err)
	case errors.Is(err, metadata.ErrInvalidBox):
		return wrapServiceError(CodeInvalidRequest, err.Error(), err)
	default:
		return wrapServiceError(CodeQueryFailed, "Failed to verify box ids", err)
	}
}

// toServiceError classifies engine errors: bad arguments, bad stored data,
// or a failing backend
func toServiceError(op string, err error) *ServiceError {
	switch {
	case errors.Is(err, aggregation.ErrInvalidMonth),
		errors.Is(err, aggregation.ErrInvalidRange),
		errors.Is(err, aggregation.ErrUnknownTimeUnit):
		return wrapServiceError(CodeInvalidRequest, err.Error(), err)
	case errors.Is(err, aggregation.ErrOutOfRange),
		errors.Is(err, models.ErrInvalidRecord):
		return wrapServiceError(CodeRollupFailed, fmt.Sprintf("Failed to compute %s", op), err)
	default:
		return wrapServiceError(CodeQueryFailed, fmt.Sprintf("Failed to execute %s", op), err)
	}
}
