package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/openpowerquality/opq-sub000/internal/handlers"
	"github.com/openpowerquality/opq-sub000/internal/logging"
	"github.com/openpowerquality/opq-sub000/internal/metrics"
	"github.com/openpowerquality/opq-sub000/internal/middleware"
	"github.com/openpowerquality/opq-sub000/internal/utils"
)

// New creates the admin fiber app with every route mounted
func New(logger *logging.Logger, h *handlers.Handler, m *metrics.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "opq-ingest",
		DisableStartupMessage: true,
		ReadTimeout:           utils.DefaultRequestTimeout,
		WriteTimeout:          utils.DefaultRequestTimeout,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})
	Setup(app, logger, h, m)
	return app
}

// Setup configures all routes and middlewares
func Setup(app *fiber.App, logger *logging.Logger, h *handlers.Handler, m *metrics.Metrics) {
	// Global middlewares
	app.Use(recover.New())
	app.Use(logging.FiberMiddleware(logger, logging.DefaultMiddlewareConfig()))

	// Health
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	// Rollup queries
	if h.ServesTrends() {
		v1 := app.Group("/v1")
		v1.Get("/boxes/:box_id/trends/monthly", h.MonthlyBoxTrends)
		v1.Get("/trends/daily", h.DailyTrendsInRange)
		v1.Get("/trends/latest", h.MostRecentTrendMonth)
		v1.Get("/trends/inventory", h.Inventory)
		v1.Get("/counts/:kind", h.EventsCountMap)
	}

	// 404 handler
	app.Use(h.NotFound)
}
