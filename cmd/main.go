package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/newslens/newslens/internal/api"
	"github.com/newslens/newslens/internal/cache"
	"github.com/newslens/newslens/internal/config"
	"github.com/newslens/newslens/internal/db"
	"github.com/newslens/newslens/internal/logger"
	"github.com/newslens/newslens/internal/middleware"
	"github.com/newslens/newslens/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: logOutput(cfg),
		Pretty: cfg.Env == "development",
	}); err != nil {
		panic(err)
	}

	log := logger.Get()
	log.Info().Msg("Starting application...")

	// Open the article database
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to open database")
	}
	defer func() {
		log.Info().Msg("Closing database...")
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	// Response cache: Redis when configured, otherwise in-memory
	var responseCache cache.Cache
	if cfg.RedisURL != "" {
		responseCache, err = cache.NewRedisCache(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Redis cache")
		}
	} else {
		log.Warn().Msg("REDIS_URL not set, using in-memory response cache")
		responseCache = cache.NewMockCache()
	}
	defer func() {
		if err := responseCache.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing cache")
		}
	}()

	// Create Fiber app with custom config
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: middleware.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.RequestLogger())

	// Setup API routes
	api.SetupRoutes(app, store.New(database), responseCache, cfg)

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

func logOutput(cfg *config.Config) string {
	if cfg.LogFile != "" {
		return cfg.LogFile
	}
	return "stdout"
}
