package news

import (
	"context"
	"errors"
	"time"

	"github.com/newslens/newslens/internal/cache"
	"github.com/newslens/newslens/internal/config"
	"github.com/newslens/newslens/internal/logger"
	"github.com/newslens/newslens/internal/models"
	"github.com/newslens/newslens/internal/store"
)

// removedTitle is the placeholder NewsAPI substitutes for withdrawn articles.
const removedTitle = "[Removed]"

// Result aggregates the outcome of one persistence batch.
type Result struct {
	Saved   int `json:"saved"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
	Total   int `json:"total"`
}

// Service fetches political headlines from the provider and persists new,
// valid ones to the article store.
type Service struct {
	client *Client
	store  *store.Store
	cache  cache.Cache
}

// NewService fails when the provider credential is missing; ingestion must
// not construct without it.
func NewService(cfg *config.Config, st *store.Store, c cache.Cache) (*Service, error) {
	if cfg.NewsAPIKey == "" {
		return nil, errors.New("NEWS_API_KEY is not configured")
	}
	return &Service{
		client: NewClient(cfg.NewsAPIBaseURL, cfg.NewsAPIKey, cfg.FetchTimeout),
		store:  st,
		cache:  c,
	}, nil
}

// FetchPoliticalNews retrieves headlines for a country. Provider failures of
// any kind degrade to an empty slice; they are logged, never propagated.
func (s *Service) FetchPoliticalNews(ctx context.Context, country string, pageSize int) []RawArticle {
	log := logger.Get()
	log.Info().
		Str("country", country).
		Int("page_size", pageSize).
		Msg("Fetching headlines")

	articles, err := s.client.TopHeadlines(ctx, country, pageSize)
	if err != nil {
		log.Error().Err(err).Str("country", country).Msg("Fetch failed")
		return nil
	}

	log.Info().Int("count", len(articles)).Msg("Fetched headlines")
	return articles
}

// SaveArticles persists a batch of raw provider items. Items are processed
// independently: a failure on one is counted and the rest continue.
func (s *Service) SaveArticles(ctx context.Context, raw []RawArticle) Result {
	log := logger.Get()
	res := Result{Total: len(raw)}

	for _, item := range raw {
		if item.Title == "" || item.Title == removedTitle {
			res.Skipped++
			continue
		}

		publishedAt := time.Now().UTC()
		if item.PublishedAt != "" {
			parsed, err := time.Parse(time.RFC3339, item.PublishedAt)
			if err != nil {
				log.Error().
					Err(err).
					Str("title", item.Title).
					Str("published_at", item.PublishedAt).
					Msg("Error parsing publish date")
				res.Errors++
				continue
			}
			publishedAt = parsed
		}

		sourceName := item.Source.Name
		if sourceName == "" {
			sourceName = "Unknown"
		}

		article := models.Article{
			Title:       item.Title,
			Content:     item.Description,
			ImageURL:    item.URLToImage,
			SourceName:  sourceName,
			URL:         item.URL,
			PublishedAt: publishedAt,
			BiasLabel:   models.BiasUnclassified,
		}
		article.Truncate()

		created, err := s.store.InsertIfAbsent(ctx, &article)
		if err != nil {
			log.Error().Err(err).Str("title", article.Title).Msg("Error saving article")
			res.Errors++
			continue
		}
		if created {
			res.Saved++
			log.Info().Str("title", article.Title).Msg("Saved article")
		} else {
			res.Skipped++
			log.Info().Str("title", article.Title).Msg("Duplicate article")
		}
	}

	log.Info().
		Int("saved", res.Saved).
		Int("skipped", res.Skipped).
		Int("errors", res.Errors).
		Int("total", res.Total).
		Msg("Persistence batch finished")
	return res
}

// FetchAndSave composes fetch and persist. An empty fetch short-circuits to
// all-zero counts. New rows invalidate the cached read-API responses.
func (s *Service) FetchAndSave(ctx context.Context, country string, pageSize int) Result {
	articles := s.FetchPoliticalNews(ctx, country, pageSize)
	if len(articles) == 0 {
		logger.Get().Warn().Msg("No articles fetched")
		return Result{}
	}

	res := s.SaveArticles(ctx, articles)

	if res.Saved > 0 && s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			logger.Get().Error().Err(err).Msg("Error invalidating response cache")
		}
	}
	return res
}
