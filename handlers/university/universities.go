package university

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/pakuniscraper/api/services"
	"github.com/pakuniscraper/api/utils/response"
)

// UniversityHandler handles university CRUD requests
type UniversityHandler struct {
	universities *services.UniversityService
	search       *services.SearchService
}

// NewUniversityHandler creates a new university handler
func NewUniversityHandler(universities *services.UniversityService, search *services.SearchService) *UniversityHandler {
	return &UniversityHandler{
		universities: universities,
		search:       search,
	}
}

// SetPriorityRequest represents the request body for PATCH /universities/:id/priority
type SetPriorityRequest struct {
	ScrapingPriority int `json:"scraping_priority"`
}

// ListUniversities handles GET /api/v1/universities
func (h *UniversityHandler) ListUniversities(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	filter := services.UniversityFilter{
		City:    c.Query("city", ""),
		Type:    c.Query("type", ""),
		Country: c.Query("country", ""),
		Search:  c.Query("search", ""),
		HasData: c.Query("has_data", "") == "true",
		SortBy:  c.Query("sort", ""),
		Page:    page,
		Limit:   limit,
	}

	universities, pagination, err := h.search.ListUniversities(filter)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Paginated(c, universities, len(universities), pagination)
}

// GetUniversity handles GET /api/v1/universities/:id
func (h *UniversityHandler) GetUniversity(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid university id")
	}

	university, err := h.universities.GetActiveByID(id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, university)
}

// CreateUniversity handles POST /api/v1/universities
func (h *UniversityHandler) CreateUniversity(c *fiber.Ctx) error {
	var req services.CreateUniversityInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	university, err := h.universities.Create(req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, university)
}

// UpdateUniversity handles PUT /api/v1/universities/:id
func (h *UniversityHandler) UpdateUniversity(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid university id")
	}

	var req services.UpdateUniversityInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	university, err := h.universities.Update(id, req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "University updated successfully", university)
}

// DeleteUniversity handles DELETE /api/v1/universities/:id (soft delete)
func (h *UniversityHandler) DeleteUniversity(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid university id")
	}

	if err := h.universities.SoftDelete(id); err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "University deactivated", nil)
}

// GetUniversityData handles GET /api/v1/universities/:id/data, returning just
// the extracted data block plus freshness timestamps and completeness score
func (h *UniversityHandler) GetUniversityData(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid university id")
	}

	university, err := h.universities.GetActiveByID(id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, fiber.Map{
		"id":                university.ID,
		"name":              university.Name,
		"data":              university.Data,
		"data_last_updated": university.DataLastUpdated,
		"data_completeness": university.DataCompleteness,
		"last_scraped":      university.LastScraped,
	})
}

// GetUniversityHistory handles GET /api/v1/universities/:id/history
func (h *UniversityHandler) GetUniversityHistory(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid university id")
	}

	university, err := h.universities.GetActiveByID(id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, fiber.Map{
		"id":               university.ID,
		"name":             university.Name,
		"scraping_history": university.ScrapingHistory,
	})
}

// SetPriority handles PATCH /api/v1/universities/:id/priority
func (h *UniversityHandler) SetPriority(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid university id")
	}

	var req SetPriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	university, err := h.universities.SetPriority(id, req.ScrapingPriority)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Priority updated", university)
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	return uint(id), err
}
