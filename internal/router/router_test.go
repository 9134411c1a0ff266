package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpowerquality/opq-sub000/internal/aggregation"
	"github.com/openpowerquality/opq-sub000/internal/handlers"
	"github.com/openpowerquality/opq-sub000/internal/logging"
	"github.com/openpowerquality/opq-sub000/internal/metadata"
	"github.com/openpowerquality/opq-sub000/internal/metrics"
	"github.com/openpowerquality/opq-sub000/internal/models"
	"github.com/openpowerquality/opq-sub000/internal/services"
	"github.com/openpowerquality/opq-sub000/internal/storage"
)

func jan2024(day, hour int) int64 {
	return time.Date(2024, time.January, day, hour, 0, 0, 0, time.UTC).UnixMilli()
}

func newTestApp(t *testing.T, checks map[string]handlers.ReadinessCheck) *fiber.App {
	t.Helper()
	return newTestAppWithOptions(t, checks, aggregation.DefaultOptions())
}

func newTestAppWithOptions(t *testing.T, checks map[string]handlers.ReadinessCheck, opts aggregation.Options) *fiber.App {
	t.Helper()
	ctx := context.Background()
	logger := logging.NewNop()

	store := storage.NewMemoryStore(logger)
	_, err := store.InsertTrends(ctx, []models.TrendRecord{
		{BoxID: "1000", TimestampMs: jan2024(1, 0), Voltage: &models.ChannelSample{Min: 118, Max: 120, Average: 119}},
		{BoxID: "1000", TimestampMs: jan2024(2, 0), Voltage: &models.ChannelSample{Min: 121, Max: 123, Average: 122}},
	})
	require.NoError(t, err)
	require.NoError(t, store.InsertOccurrences(ctx, models.OccurrenceEvents, "", []int64{jan2024(1, 3), jan2024(1, 4)}))

	registry := metadata.NewMemoryRegistry(&models.Box{BoxID: "1000"})
	m := metrics.New()
	svc := services.NewTrendService(logger, registry, aggregation.NewEngine(store, store, opts), m)

	return New(logger, handlers.New(logger, "opq-ingest", svc, checks), m)
}

func get(t *testing.T, app *fiber.App, path string) (int, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp), string(body))
	return resp.Error.Code
}

func TestRouter_HealthEndpoints(t *testing.T) {
	app := newTestApp(t, map[string]handlers.ReadinessCheck{
		"store": func(context.Context) error { return nil },
	})

	status, body := get(t, app, "/health")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body), `"status":"healthy"`)

	status, body = get(t, app, "/ready")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body), `"store":"ok"`)

	status, body = get(t, app, "/nope")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))
}

func TestRouter_NotReady(t *testing.T) {
	app := newTestApp(t, map[string]handlers.ReadinessCheck{
		"store": func(context.Context) error { return errors.New("store closed") },
	})

	status, body := get(t, app, "/ready")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Contains(t, string(body), `"not_ready"`)
}

func TestRouter_Metrics(t *testing.T) {
	app := newTestApp(t, nil)

	status, _ := get(t, app, "/v1/boxes/1000/trends/monthly?month=0&year=2024")
	require.Equal(t, fiber.StatusOK, status)

	status, body := get(t, app, "/metrics")
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, strings.Contains(string(body), "opq_rollup_duration_seconds"), "missing rollup histogram")
	assert.True(t, strings.Contains(string(body), "go_goroutines"), "missing go collector")
}

func TestRouter_MonthlyBoxTrends(t *testing.T) {
	app := newTestApp(t, nil)

	status, body := get(t, app, "/v1/boxes/1000/trends/monthly?month=0&year=2024")
	require.Equal(t, fiber.StatusOK, status, string(body))

	var rollup struct {
		DailyTrends   map[string]json.RawMessage `json:"dailyTrends"`
		MonthlyTrends struct {
			TotalDocCount int64 `json:"totalDocCount"`
		} `json:"monthlyTrends"`
	}
	require.NoError(t, json.Unmarshal(body, &rollup))
	assert.Len(t, rollup.DailyTrends, 31)

	tests := []struct {
		path   string
		status int
		code   string
	}{
		{"/v1/boxes/1000/trends/monthly?year=2024", fiber.StatusBadRequest, services.CodeInvalidRequest},
		{"/v1/boxes/1000/trends/monthly?month=x&year=2024", fiber.StatusBadRequest, services.CodeInvalidRequest},
		{"/v1/boxes/1000/trends/monthly?month=12&year=2024", fiber.StatusBadRequest, services.CodeInvalidRequest},
		{"/v1/boxes/9/trends/monthly?month=0&year=2024", fiber.StatusNotFound, services.CodeBoxNotFound},
	}
	for _, tt := range tests {
		status, body := get(t, app, tt.path)
		assert.Equal(t, tt.status, status, tt.path)
		assert.Equal(t, tt.code, errorCode(t, body), tt.path)
	}
}

func TestRouter_DailyTrendsInRange(t *testing.T) {
	app := newTestApp(t, nil)

	status, body := get(t, app, "/v1/trends/daily?boxes=1000&start=2024-01-01&end=2024-01-02T23:59:59Z")
	require.Equal(t, fiber.StatusOK, status, string(body))

	var result map[string]struct {
		DailyTrends map[string]json.RawMessage `json:"dailyTrends"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	require.Contains(t, result, "1000")
	assert.Len(t, result["1000"].DailyTrends, 2)

	status, body = get(t, app, "/v1/trends/daily?boxes=1000&start=soon&end=later")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, services.CodeInvalidRequest, errorCode(t, body))

	status, _ = get(t, app, "/v1/trends/daily?start=2024-01-01&end=2024-01-02")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestRouter_DailyTrendsInRange_CalendarZone(t *testing.T) {
	hst, err := time.LoadLocation("Pacific/Honolulu")
	require.NoError(t, err)
	opts := aggregation.DefaultOptions()
	opts.Location = hst
	app := newTestAppWithOptions(t, nil, opts)

	status, body := get(t, app, "/v1/trends/daily?boxes=1000&start=2024-01-01&end=2024-01-02")
	require.Equal(t, fiber.StatusOK, status, string(body))

	var result map[string]struct {
		DailyTrends map[string]struct {
			TotalDocCount int64 `json:"totalDocCount"`
		} `json:"dailyTrends"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	days := result["1000"].DailyTrends

	jan1 := strconv.FormatInt(time.Date(2024, time.January, 1, 0, 0, 0, 0, hst).UnixMilli(), 10)
	jan2 := strconv.FormatInt(time.Date(2024, time.January, 2, 0, 0, 0, 0, hst).UnixMilli(), 10)
	assert.Equal(t, "1704103200000", jan1)
	assert.Equal(t, "1704189600000", jan2)
	require.Len(t, days, 2)
	require.Contains(t, days, jan1)
	require.Contains(t, days, jan2)

	// 2024-01-02T00:00Z is the afternoon of Jan 1 in Honolulu
	assert.Equal(t, int64(1), days[jan1].TotalDocCount)
	assert.Equal(t, int64(0), days[jan2].TotalDocCount)
}

func TestRouter_EventsCountMap(t *testing.T) {
	app := newTestApp(t, nil)

	status, body := get(t, app, "/v1/counts/events?unit=hourOfDay&start=2024-01-01")
	require.Equal(t, fiber.StatusOK, status, string(body))

	var counts map[string]int
	require.NoError(t, json.Unmarshal(body, &counts))
	assert.Equal(t, map[string]int{"3-1-2024": 1, "4-1-2024": 1}, counts)

	status, body = get(t, app, "/v1/counts/events?unit=fortnight")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, services.CodeInvalidRequest, errorCode(t, body))
}

func TestRouter_CatalogQueries(t *testing.T) {
	app := newTestApp(t, nil)

	status, body := get(t, app, "/v1/trends/latest")
	require.Equal(t, fiber.StatusOK, status)
	var month models.TrendMonth
	require.NoError(t, json.Unmarshal(body, &month))
	assert.Equal(t, models.TrendMonth{BoxID: "1000", Month: 0, Year: 2024}, month)

	status, body = get(t, app, "/v1/trends/inventory")
	require.Equal(t, fiber.StatusOK, status, string(body))
	var inv struct {
		Boxes []models.TrendInventory `json:"boxes"`
		Total int64                   `json:"total"`
	}
	require.NoError(t, json.Unmarshal(body, &inv))
	assert.Equal(t, int64(2), inv.Total)
	require.Len(t, inv.Boxes, 1)
	assert.Equal(t, int64(2), inv.Boxes[0].Count)
}

func TestRouter_WithoutTrends(t *testing.T) {
	logger := logging.NewNop()
	app := New(logger, handlers.New(logger, "opq-ingest", nil, nil), nil)

	status, _ := get(t, app, "/v1/trends/latest")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = get(t, app, "/metrics")
	assert.Equal(t, fiber.StatusNotFound, status)
}
