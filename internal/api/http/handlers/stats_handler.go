package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/access-gate-service/internal/service"
)

// StatsHandler exposes summary counts for reporting.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler constructs handler.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Summary handles GET /stats/summary.
func (h *StatsHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.stats.Summary(c.UserContext())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": summary})
}
