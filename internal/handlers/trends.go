package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/openpowerquality/opq-sub000/internal/services"
	"github.com/openpowerquality/opq-sub000/internal/utils"
)

func (h *Handler) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), utils.DefaultRequestTimeout)
}

func invalid(msg string) error {
	return services.NewServiceError(services.CodeInvalidRequest, msg)
}

func queryInt(c *fiber.Ctx, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, invalid("missing query parameter " + name)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid("query parameter " + name + " must be an integer")
	}
	return v, nil
}

// queryTime reads epoch ms, RFC3339 or a bare date; bare dates are taken in
// the rollup calendar zone
func (h *Handler) queryTime(c *fiber.Ctx, name string, required bool) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		if required {
			return 0, invalid("missing query parameter " + name)
		}
		return 0, nil
	}
	ms, err := utils.ParseTimeMs(raw, h.trends.Location())
	if err != nil {
		return 0, invalid(err.Error())
	}
	return ms, nil
}

// MonthlyBoxTrends handles GET /v1/boxes/:box_id/trends/monthly?month=0&year=2024
func (h *Handler) MonthlyBoxTrends(c *fiber.Ctx) error {
	month, err := queryInt(c, "month")
	if err != nil {
		return err
	}
	year, err := queryInt(c, "year")
	if err != nil {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	rollup, err := h.trends.MonthlyBoxTrends(ctx, c.Params("box_id"), month, year)
	if err != nil {
		return err
	}
	return c.JSON(rollup)
}

// DailyTrendsInRange handles GET /v1/trends/daily?boxes=1000,1001&start=...&end=...
func (h *Handler) DailyTrendsInRange(c *fiber.Ctx) error {
	startMs, err := h.queryTime(c, "start", true)
	if err != nil {
		return err
	}
	endMs, err := h.queryTime(c, "end", true)
	if err != nil {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	rollups, err := h.trends.DailyTrendsInRange(ctx, utils.SplitList(c.Query("boxes")), startMs, endMs)
	if err != nil {
		return err
	}
	return c.JSON(rollups)
}

// EventsCountMap handles GET /v1/counts/:kind?unit=hourOfDay&start=...&end=...
// A missing end leaves the range open.
func (h *Handler) EventsCountMap(c *fiber.Ctx) error {
	startMs, err := h.queryTime(c, "start", false)
	if err != nil {
		return err
	}
	endMs, err := h.queryTime(c, "end", false)
	if err != nil {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	counts, err := h.trends.EventsCountMap(ctx, c.Params("kind"), c.Query("unit"), startMs, endMs)
	if err != nil {
		return err
	}
	return c.JSON(counts)
}

// MostRecentTrendMonth handles GET /v1/trends/latest
func (h *Handler) MostRecentTrendMonth(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	month, err := h.trends.MostRecentTrendMonth(ctx)
	if err != nil {
		return err
	}
	if month == nil {
		return fiber.NewError(fiber.StatusNotFound, "No trends stored")
	}
	return c.JSON(month)
}

// Inventory handles GET /v1/trends/inventory?boxes=1000,1001
func (h *Handler) Inventory(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	inv, err := h.trends.Inventory(ctx, utils.SplitList(c.Query("boxes")))
	if err != nil {
		return err
	}
	total, err := h.trends.TotalTrends(ctx)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"boxes": inv, "total": total})
}
