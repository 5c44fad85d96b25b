package scrape

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/pakuniscraper/api/services"
	"github.com/pakuniscraper/api/services/scraper"
	"github.com/pakuniscraper/api/utils/response"
)

// ScrapeHandler exposes the scraping orchestrator over HTTP
type ScrapeHandler struct {
	orchestrator *scraper.Orchestrator
	universities *services.UniversityService
}

// NewScrapeHandler creates a new scrape handler
func NewScrapeHandler(orchestrator *scraper.Orchestrator, universities *services.UniversityService) *ScrapeHandler {
	return &ScrapeHandler{
		orchestrator: orchestrator,
		universities: universities,
	}
}

// BulkScrapeRequest represents the request body for POST /scrape/bulk
type BulkScrapeRequest struct {
	UniversityIDs []uint `json:"university_ids"`
	DelaySeconds  int    `json:"delay_seconds"`
	MinPriority   int    `json:"min_priority"`
}

// StartSingle handles POST /api/v1/scrape/university/:id. The response is an
// immediate acknowledgement; the outcome is observed by status polling.
func (h *ScrapeHandler) StartSingle(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid university id")
	}

	university, err := h.orchestrator.StartSingle(id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Accepted(c, "Scraping started", fiber.Map{
		"university_id":   university.ID,
		"name":            university.Name,
		"scraping_status": "scraping",
	})
}

// Stop handles POST /api/v1/scrape/stop/:id
func (h *ScrapeHandler) Stop(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid university id")
	}

	if err := h.orchestrator.Stop(id); err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Scraping stopped", fiber.Map{
		"university_id": id,
	})
}

// StartBulk handles POST /api/v1/scrape/bulk
func (h *ScrapeHandler) StartBulk(c *fiber.Ctx) error {
	var req BulkScrapeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	result, err := h.orchestrator.StartBulk(req.UniversityIDs, req.DelaySeconds, req.MinPriority)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Accepted(c, "Bulk scraping started", result)
}

// StopAll handles POST /api/v1/scrape/stop-all
func (h *ScrapeHandler) StopAll(c *fiber.Ctx) error {
	stopped, swept, err := h.orchestrator.StopAll()
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "All scraping stopped", fiber.Map{
		"processes_stopped": stopped,
		"records_swept":     swept,
	})
}

// Status handles GET /api/v1/scrape/status/:id
func (h *ScrapeHandler) Status(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid university id")
	}

	status, err := h.orchestrator.Status(id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, status)
}

// Active handles GET /api/v1/scrape/active
func (h *ScrapeHandler) Active(c *fiber.Ctx) error {
	processes := h.orchestrator.ActiveProcesses()
	return response.Success(c, fiber.Map{
		"count":     len(processes),
		"processes": processes,
	})
}

// Queue handles GET /api/v1/scrape/queue
func (h *ScrapeHandler) Queue(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	queue, err := h.universities.FindScrapingQueue(limit)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, fiber.Map{
		"count": len(queue),
		"queue": queue,
	})
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	return uint(id), err
}
