package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// Redis Configuration
	REDIS_URL string
	// External scraper process
	SCRAPER_PYTHON  string // python executable
	SCRAPER_SCRIPT  string // path to the scraper entry point
	SCRAPER_WORKDIR string // working directory for spawned processes
	// Orchestrator tuning
	SCRAPE_COOLDOWN_MINUTES int
	BULK_SCRAPE_MAX         int
	// HTTP rate limiting
	RATE_LIMIT_REQUESTS       int
	RATE_LIMIT_WINDOW_SECONDS int
	ALLOWED_ORIGINS           string
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	scraperPython := os.Getenv("SCRAPER_PYTHON")
	if scraperPython == "" {
		scraperPython = "python3"
	}

	scraperScript := os.Getenv("SCRAPER_SCRIPT")
	if scraperScript == "" {
		scraperScript = "scraper/main.py"
	}

	cooldown := intEnv("SCRAPE_COOLDOWN_MINUTES", 60)
	bulkMax := intEnv("BULK_SCRAPE_MAX", 20)
	rateLimitRequests := intEnv("RATE_LIMIT_REQUESTS", 100)
	rateLimitWindow := intEnv("RATE_LIMIT_WINDOW_SECONDS", 60)

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  os.Getenv("DB_SSL_MODE"),
		PORT:         port,
		// Redis
		REDIS_URL: os.Getenv("REDIS_URL"),
		// Scraper process
		SCRAPER_PYTHON:  scraperPython,
		SCRAPER_SCRIPT:  scraperScript,
		SCRAPER_WORKDIR: os.Getenv("SCRAPER_WORKDIR"),
		// Orchestrator
		SCRAPE_COOLDOWN_MINUTES: cooldown,
		BULK_SCRAPE_MAX:         bulkMax,
		// Rate limiting
		RATE_LIMIT_REQUESTS:       rateLimitRequests,
		RATE_LIMIT_WINDOW_SECONDS: rateLimitWindow,
		ALLOWED_ORIGINS:           os.Getenv("ALLOWED_ORIGINS"),
	}

	return envVariables, nil
}

func intEnv(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
