package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/newslens/newslens/internal/cache"
	"github.com/newslens/newslens/internal/config"
	"github.com/newslens/newslens/internal/middleware"
	"github.com/newslens/newslens/internal/store"
)

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, st *store.Store, c cache.Cache, cfg *config.Config) {
	handlers := NewHandlers(cfg, st, c)

	app.Get("/health", handlers.HealthCheck)

	// Read-only article collection. Fixed paths must register before the
	// :id parameter route.
	articles := app.Group("/articles")
	{
		articles.Get("/", handlers.ListArticles)
		articles.Get("/stats", handlers.GetStats)
		articles.Get("/sources", handlers.GetSources)
		articles.Get("/:id", handlers.GetArticle)
	}

	// Admin endpoints, key-protected
	admin := app.Group("/admin", middleware.AdminOnly(cfg.AdminAPIKey))
	{
		admin.Post("/fetch", handlers.TriggerFetch)
		admin.Patch("/articles/:id/active", handlers.SetArticleActive)
	}

	// 404 Handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
		})
	})
}
