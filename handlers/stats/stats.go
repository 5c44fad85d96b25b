package stats

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/pakuniscraper/api/database"
	"github.com/pakuniscraper/api/services"
	"github.com/pakuniscraper/api/utils/response"
)

// StatsHandler exposes the read-only statistics rollups
type StatsHandler struct {
	stats *services.StatsService
	store database.Storage
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(stats *services.StatsService, store database.Storage) *StatsHandler {
	return &StatsHandler{stats: stats, store: store}
}

// Overview handles GET /api/v1/stats/overview
func (h *StatsHandler) Overview(c *fiber.Ctx) error {
	overview, err := h.stats.GetOverview(c.Context())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, overview)
}

// Universities handles GET /api/v1/stats/universities
func (h *StatsHandler) Universities(c *fiber.Ctx) error {
	topN, _ := strconv.Atoi(c.Query("top", "10"))

	breakdown, err := h.stats.GetBreakdown(c.Context(), topN)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, breakdown)
}

// Scraping handles GET /api/v1/stats/scraping
func (h *StatsHandler) Scraping(c *fiber.Ctx) error {
	topErrors, _ := strconv.Atoi(c.Query("top_errors", "5"))

	performance, err := h.stats.GetScrapingPerformance(c.Context(), topErrors)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, performance)
}

// DataFreshness handles GET /api/v1/stats/data-freshness
func (h *StatsHandler) DataFreshness(c *fiber.Ctx) error {
	freshness, err := h.stats.GetFreshness(c.Context())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, freshness)
}

// SearchAnalytics handles GET /api/v1/stats/search-analytics
func (h *StatsHandler) SearchAnalytics(c *fiber.Ctx) error {
	analytics, err := h.stats.GetSearchAnalytics(c.Context())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, analytics)
}

// Health handles GET /api/v1/stats/health, reporting storage connectivity
func (h *StatsHandler) Health(c *fiber.Ctx) error {
	dbStatus := "ok"
	if err := h.store.HealthCheck(); err != nil {
		dbStatus = "unavailable"
	}

	payload := fiber.Map{
		"service":  "ok",
		"database": dbStatus,
	}

	if dbStatus != "ok" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": response.StatusError,
			"data":   payload,
		})
	}
	return response.Success(c, payload)
}
