package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/openpowerquality/opq-sub000/internal/models"
	"github.com/openpowerquality/opq-sub000/internal/utils"
)

// Health reports liveness. It never touches dependencies.
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(models.HealthResponse{
		Status:    "healthy",
		Service:   h.service,
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		UptimeSec: int64(time.Since(h.startedAt).Seconds()),
	})
}

// Ready runs every readiness check concurrently and answers 503 if any fails
func (h *Handler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), utils.ReadinessTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		ready  = true
		checks = make(map[string]string, len(h.checks))
	)
	for name, check := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := "ok"
			if err := check(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			checks[name] = status
			if status != "ok" {
				ready = false
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	resp := models.ReadyResponse{Status: "ready", Checks: checks}
	if !ready {
		resp.Status = "not_ready"
		h.logger.Warn("Readiness check failed", "checks", checks)
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}

// NotFound handles 404 errors
func (h *Handler) NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    "NOT_FOUND",
			Message: "Route not found",
			Path:    c.Path(),
		},
	})
}
