package app

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pakuniscraper/api/api"
	"github.com/pakuniscraper/api/config"
	"github.com/pakuniscraper/api/database"
	"github.com/pakuniscraper/api/router"
	"github.com/pakuniscraper/api/services"
	"github.com/pakuniscraper/api/services/cron"
	"github.com/pakuniscraper/api/services/scraper"
	"github.com/pakuniscraper/api/utils/cache"
	"gorm.io/gorm"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether the Postgres is running or not\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		return err
	}

	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return fmt.Errorf("failed to get GORM DB instance")
	}

	// Optional Redis cache for statistics rollups
	var redisCache *cache.RedisCache
	if getEnv.REDIS_URL != "" {
		redisCache, err = cache.NewRedisCache(getEnv.REDIS_URL)
		if err != nil {
			log.Printf("Warning: Failed to connect to Redis: %v. Stats caching disabled.", err)
			redisCache = nil
		}
	}

	// Scraping orchestrator with the external Python scraper runner
	universityService := services.NewUniversityService(db)
	runner := scraper.NewExecRunner(getEnv.SCRAPER_PYTHON, getEnv.SCRAPER_SCRIPT, getEnv.SCRAPER_WORKDIR)
	orchestrator := scraper.NewOrchestrator(
		universityService,
		runner,
		time.Duration(getEnv.SCRAPE_COOLDOWN_MINUTES)*time.Minute,
		getEnv.BULK_SCRAPE_MAX,
	)

	// The in-memory registry did not survive the restart; records stuck in
	// "scraping" are swept to failed so they can be rescraped.
	if _, err := orchestrator.RecoverOrphans(); err != nil {
		log.Printf("Warning: orphan recovery failed: %v", err)
	}

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if os.Getenv("CRON_ENABLED") != "false" { // Default to enabled
		cronManager = cron.NewCronManager(db)
		if err := cronManager.Start(); err != nil {
			print("Warning: Failed to start cron jobs\n")
			print("Error: ", err.Error(), "\n")
			// Don't fail the app, just log the warning
		}
	}

	// Defer Closing DB and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		if redisCache != nil {
			redisCache.Close()
		}
		store.Close()
	}()

	// Init API
	var server *api.APIServer = api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Setup Routes
	router.SetupRoutes(app, router.Dependencies{
		Store:        store,
		Orchestrator: orchestrator,
		Cache:        redisCache,
		Env:          getEnv,
	})

	// Get the PORT & Start the Server
	return server.Run()
}
