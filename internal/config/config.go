package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            string        `json:"port"`
	Env             string        `json:"env"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	HTTPTimeout     time.Duration `json:"http_timeout"`

	// News provider configuration
	NewsAPIKey     string        `json:"-"`
	NewsAPIBaseURL string        `json:"news_api_base_url"`
	NewsCountry    string        `json:"news_country"`
	NewsPageSize   int           `json:"news_page_size"`
	FetchTimeout   time.Duration `json:"fetch_timeout"`

	// Database
	DBPath string `json:"db_path"`

	// Redis configuration
	RedisURL    string        `json:"redis_url"`
	RedisPrefix string        `json:"redis_prefix"`
	CacheTTL    time.Duration `json:"cache_ttl"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Security
	AdminAPIKey string `json:"-"`
}

// Load loads configuration from environment variables
func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	return &Config{
		// Server configuration
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		// News provider configuration
		NewsAPIKey:     getEnv("NEWS_API_KEY", ""),
		NewsAPIBaseURL: getEnv("NEWS_API_BASE_URL", "https://newsapi.org/v2"),
		NewsCountry:    getEnv("NEWS_COUNTRY", "us"),
		NewsPageSize:   getEnvAsInt("NEWS_PAGE_SIZE", 10),
		FetchTimeout:   getEnvAsDuration("FETCH_TIMEOUT", 10*time.Second),

		// Database
		DBPath: getEnv("DB_PATH", "./data/newslens.db"),

		// Redis configuration. An empty REDIS_URL falls back to the
		// in-memory response cache.
		RedisURL:    getEnv("REDIS_URL", ""),
		RedisPrefix: getEnv("REDIS_PREFIX", "newslens:"),
		CacheTTL:    getEnvAsDuration("CACHE_TTL", 60*time.Second),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		// Security
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
	}
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}
