package search

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pakuniscraper/api/services"
	"github.com/pakuniscraper/api/utils/response"
)

// SearchHandler handles the per-item search endpoints
type SearchHandler struct {
	search *services.SearchService
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(search *services.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// SearchUniversities handles GET /api/v1/search/universities
func (h *SearchHandler) SearchUniversities(c *fiber.Ctx) error {
	filter := filterFromQuery(c)

	universities, pagination, err := h.search.ListUniversities(filter)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Paginated(c, universities, len(universities), pagination)
}

// SearchPrograms handles GET /api/v1/search/programs, returning distinct
// programs ranked by how many universities offer them
func (h *SearchHandler) SearchPrograms(c *fiber.Ctx) error {
	filter := filterFromQuery(c)
	program := c.Query("program", "")

	results, pagination, err := h.search.SearchPrograms(filter, program)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Paginated(c, results, len(results), pagination)
}

// SearchScholarships handles GET /api/v1/search/scholarships
func (h *SearchHandler) SearchScholarships(c *fiber.Ctx) error {
	filter := filterFromQuery(c)
	text := c.Query("q", "")

	var renewable *bool
	if v := c.Query("renewable", ""); v == "true" || v == "false" {
		b := v == "true"
		renewable = &b
	}

	results, pagination, err := h.search.SearchScholarships(filter, text, renewable)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Paginated(c, results, len(results), pagination)
}

// SearchAdmissionDates handles GET /api/v1/search/admission-dates
func (h *SearchHandler) SearchAdmissionDates(c *fiber.Ctx) error {
	filter := filterFromQuery(c)
	term := c.Query("term", "")
	dateType := c.Query("date_type", "")
	upcomingOnly := c.Query("upcoming", "") == "true"

	results, pagination, err := h.search.SearchAdmissionDates(filter, term, dateType, upcomingOnly, time.Now())
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Paginated(c, results, len(results), pagination)
}

// SearchFees handles GET /api/v1/search/fees. The max_fee ceiling is an
// approximate comparison against formatted amount strings.
func (h *SearchHandler) SearchFees(c *fiber.Ctx) error {
	filter := filterFromQuery(c)
	program := c.Query("program", "")
	maxFee, _ := strconv.ParseInt(c.Query("max_fee", "0"), 10, 64)

	results, pagination, err := h.search.SearchFees(filter, program, maxFee)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Paginated(c, results, len(results), pagination)
}

func filterFromQuery(c *fiber.Ctx) services.UniversityFilter {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	return services.UniversityFilter{
		City:    c.Query("city", ""),
		Type:    c.Query("university_type", c.Query("type", "")),
		Country: c.Query("country", ""),
		Search:  c.Query("university", c.Query("search", "")),
		Page:    page,
		Limit:   limit,
	}
}
