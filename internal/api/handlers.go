package api

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/newslens/newslens/internal/cache"
	"github.com/newslens/newslens/internal/config"
	"github.com/newslens/newslens/internal/logger"
	"github.com/newslens/newslens/internal/models"
	"github.com/newslens/newslens/internal/news"
	"github.com/newslens/newslens/internal/store"
	"github.com/newslens/newslens/internal/utils"
)

type Handlers struct {
	config *config.Config
	store  *store.Store
	cache  cache.Cache
	news   *news.Service
}

// NewHandlers wires the read API. The ingestion service is attached only
// when the provider credential is configured; the read surface works
// without it.
func NewHandlers(cfg *config.Config, st *store.Store, c cache.Cache) *Handlers {
	h := &Handlers{
		config: cfg,
		store:  st,
		cache:  c,
	}
	if svc, err := news.NewService(cfg, st, c); err != nil {
		logger.Get().Warn().Err(err).Msg("Ingestion service unavailable")
	} else {
		h.news = svc
	}
	return h
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// ListArticles handles GET /articles/
func (h *Handlers) ListArticles(c *fiber.Ctx) error {
	filter, page, err := parseListQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	articles, total, err := h.store.List(c.Context(), filter, page)
	if err != nil {
		logger.Get().Error().Err(err).Msg("Error listing articles")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list articles",
		})
	}

	items := make([]models.ArticleSummary, 0, len(articles))
	for i := range articles {
		items = append(items, models.NewArticleSummary(&articles[i]))
	}

	return c.JSON(fiber.Map{
		"page":      page,
		"page_size": store.PageSize,
		"total":     total,
		"items":     items,
	})
}

// GetArticle handles GET /articles/:id/
func (h *Handlers) GetArticle(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Article not found",
		})
	}

	article, err := h.store.GetActive(c.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Article not found",
		})
	}
	if err != nil {
		logger.Get().Error().Err(err).Int64("id", id).Msg("Error getting article")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get article",
		})
	}

	return c.JSON(models.NewArticleDetail(article, time.Now().UTC()))
}

// GetStats handles GET /articles/stats/. Aggregates cover the full store,
// soft-deleted rows included. Responses are cached until the next ingest.
func (h *Handlers) GetStats(c *fiber.Ctx) error {
	key := utils.Hash(c.Path())
	cached, ok, err := h.cache.Get(c.Context(), key)
	if err != nil {
		logger.Get().Warn().Err(err).Msg("Error reading cached stats response")
	} else if ok {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(cached)
	}

	stats, err := h.store.Stats(c.Context(), time.Now().UTC())
	if err != nil {
		logger.Get().Error().Err(err).Msg("Error computing stats")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute stats",
		})
	}
	if stats.BySource == nil {
		stats.BySource = []models.SourceCount{}
	}
	if stats.ByBias == nil {
		stats.ByBias = []models.BiasCount{}
	}

	body, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	if err := h.cache.Set(c.Context(), key, body, h.config.CacheTTL); err != nil {
		logger.Get().Warn().Err(err).Msg("Error caching stats response")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

// GetSources handles GET /articles/sources/
func (h *Handlers) GetSources(c *fiber.Ctx) error {
	key := utils.Hash(c.Path())
	cached, ok, err := h.cache.Get(c.Context(), key)
	if err != nil {
		logger.Get().Warn().Err(err).Msg("Error reading cached sources response")
	} else if ok {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(cached)
	}

	sources, err := h.store.Sources(c.Context())
	if err != nil {
		logger.Get().Error().Err(err).Msg("Error listing sources")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list sources",
		})
	}
	if sources == nil {
		sources = []string{}
	}

	body, err := json.Marshal(sources)
	if err != nil {
		return err
	}
	if err := h.cache.Set(c.Context(), key, body, h.config.CacheTTL); err != nil {
		logger.Get().Warn().Err(err).Msg("Error caching sources response")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

// TriggerFetch handles POST /admin/fetch
func (h *Handlers) TriggerFetch(c *fiber.Ctx) error {
	if h.news == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "News provider is not configured",
		})
	}

	req := struct {
		Count   int    `json:"count"`
		Country string `json:"country"`
	}{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}
	if req.Count <= 0 {
		req.Count = h.config.NewsPageSize
	}
	if req.Country == "" {
		req.Country = h.config.NewsCountry
	}

	result := h.news.FetchAndSave(c.Context(), req.Country, req.Count)
	return c.JSON(result)
}

// SetArticleActive handles PATCH /admin/articles/:id/active — the only
// permitted mutation of a stored article.
func (h *Handlers) SetArticleActive(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Article not found",
		})
	}

	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if err := c.BodyParser(&req); err != nil || req.IsActive == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "is_active is required",
		})
	}

	if err := h.store.SetActive(c.Context(), id, *req.IsActive); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Article not found",
			})
		}
		logger.Get().Error().Err(err).Int64("id", id).Msg("Error toggling article")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update article",
		})
	}

	if err := h.cache.Invalidate(c.Context()); err != nil {
		logger.Get().Warn().Err(err).Msg("Error invalidating response cache")
	}

	return c.JSON(fiber.Map{
		"id":        id,
		"is_active": *req.IsActive,
	})
}
