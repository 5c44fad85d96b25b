package router

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pakuniscraper/api/config"
	"github.com/pakuniscraper/api/database"
	"github.com/pakuniscraper/api/handlers"
	scrape_handlers "github.com/pakuniscraper/api/handlers/scrape"
	search_handlers "github.com/pakuniscraper/api/handlers/search"
	stats_handlers "github.com/pakuniscraper/api/handlers/stats"
	university_handlers "github.com/pakuniscraper/api/handlers/university"
	"github.com/pakuniscraper/api/services"
	"github.com/pakuniscraper/api/services/scraper"
	"github.com/pakuniscraper/api/utils"
	"github.com/pakuniscraper/api/utils/cache"
	"github.com/pakuniscraper/api/utils/middleware"
	"gorm.io/gorm"
)

// Dependencies carries the shared singletons the routes need
type Dependencies struct {
	Store        database.Storage
	Orchestrator *scraper.Orchestrator
	Cache        *cache.RedisCache // nil when Redis is not configured
	Env          *config.EnviornmentVariable
}

// SetupRoutes registers every route on the fiber app
func SetupRoutes(app *fiber.App, deps Dependencies) {
	// Get DB instance (type assert from interface)
	db, ok := deps.Store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("Failed to get GORM DB instance")
	}

	// Initialize services
	universityService := services.NewUniversityService(db)
	searchService := services.NewSearchService(db)
	statsService := services.NewStatsService(db, deps.Cache)

	// Initialize handlers
	universityHandler := university_handlers.NewUniversityHandler(universityService, searchService)
	searchHandler := search_handlers.NewSearchHandler(searchService)
	scrapeHandler := scrape_handlers.NewScrapeHandler(deps.Orchestrator, universityService)
	statsHandler := stats_handlers.NewStatsHandler(statsService, deps.Store)

	// Apply security middleware
	allowedOrigins := deps.Env.ALLOWED_ORIGINS
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: deps.Env.RATE_LIMIT_REQUESTS,
		RateLimitWindow:   time.Duration(deps.Env.RATE_LIMIT_WINDOW_SECONDS) * time.Second,
	})

	// Health check endpoint (public)
	app.Get("/health", utils.MakeHTTPHandleFunc(handlers.HandleCheckHealth, deps.Store))

	// API v1 group
	api := app.Group("/api/v1")

	// Universities routes
	universities := api.Group("/universities")
	universities.Get("/", universityHandler.ListUniversities)
	universities.Get("/:id", universityHandler.GetUniversity)
	universities.Post("/", universityHandler.CreateUniversity)
	universities.Put("/:id", universityHandler.UpdateUniversity)
	universities.Delete("/:id", universityHandler.DeleteUniversity)
	universities.Get("/:id/data", universityHandler.GetUniversityData)
	universities.Get("/:id/history", universityHandler.GetUniversityHistory)
	universities.Patch("/:id/priority", universityHandler.SetPriority)

	// Search routes
	search := api.Group("/search")
	search.Get("/universities", searchHandler.SearchUniversities)
	search.Get("/programs", searchHandler.SearchPrograms)
	search.Get("/scholarships", searchHandler.SearchScholarships)
	search.Get("/admission-dates", searchHandler.SearchAdmissionDates)
	search.Get("/fees", searchHandler.SearchFees)

	// Scraping orchestration routes
	scrapeGroup := api.Group("/scrape")
	scrapeGroup.Post("/university/:id", scrapeHandler.StartSingle)
	scrapeGroup.Post("/stop/:id", scrapeHandler.Stop)
	scrapeGroup.Post("/bulk", scrapeHandler.StartBulk)
	scrapeGroup.Post("/stop-all", scrapeHandler.StopAll)
	scrapeGroup.Get("/status/:id", scrapeHandler.Status)
	scrapeGroup.Get("/active", scrapeHandler.Active)
	scrapeGroup.Get("/queue", scrapeHandler.Queue)

	// Statistics routes
	statsGroup := api.Group("/stats")
	statsGroup.Get("/overview", statsHandler.Overview)
	statsGroup.Get("/universities", statsHandler.Universities)
	statsGroup.Get("/scraping", statsHandler.Scraping)
	statsGroup.Get("/data-freshness", statsHandler.DataFreshness)
	statsGroup.Get("/search-analytics", statsHandler.SearchAnalytics)
	statsGroup.Get("/health", statsHandler.Health)

	// 404 handler listing example valid routes to aid API discovery
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":  "error",
			"message": "Route not found: " + c.Method() + " " + c.Path(),
			"example_routes": []string{
				"GET /health",
				"GET /api/v1/universities",
				"GET /api/v1/search/programs",
				"POST /api/v1/scrape/university/:id",
				"GET /api/v1/scrape/status/:id",
				"GET /api/v1/stats/overview",
			},
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
}
