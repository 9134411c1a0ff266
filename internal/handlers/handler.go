package handlers

import (
	"context"
	"time"

	"github.com/openpowerquality/opq-sub000/internal/logging"
	"github.com/openpowerquality/opq-sub000/internal/services"
)

// Version is reported by /health
const Version = "1.0.0"

// ReadinessCheck checks one dependency. A nil error means ready.
type ReadinessCheck func(ctx context.Context) error

// Handler contains the admin HTTP handlers
type Handler struct {
	logger    *logging.Logger
	service   string
	startedAt time.Time
	checks    map[string]ReadinessCheck
	trends    *services.TrendService
}

// New creates a handler for service. checks are run by /ready; trends may be
// nil when the process serves no rollup queries.
func New(logger *logging.Logger, service string, trends *services.TrendService, checks map[string]ReadinessCheck) *Handler {
	if checks == nil {
		checks = make(map[string]ReadinessCheck)
	}
	return &Handler{
		logger:    logger,
		service:   service,
		startedAt: time.Now(),
		checks:    checks,
		trends:    trends,
	}
}

// ServesTrends reports whether rollup query routes should be mounted
func (h *Handler) ServesTrends() bool {
	return h.trends != nil
}
