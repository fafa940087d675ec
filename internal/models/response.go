package models

import "time"

// ArticleSummary is the lightweight representation used by list responses.
type ArticleSummary struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	SourceName  string    `json:"source_name"`
	PublishedAt time.Time `json:"published_at"`
	ImageURL    string    `json:"image_url"`
	BiasLabel   string    `json:"bias_label"`
	BiasDisplay string    `json:"bias_display"`
	BiasScore   float64   `json:"bias_score"`
}

// ArticleDetail is the full representation used by detail responses.
type ArticleDetail struct {
	ArticleSummary
	Content            string    `json:"content"`
	Summary            string    `json:"summary"`
	URL                string    `json:"url"`
	DaysSincePublished int       `json:"days_since_published"`
	IsActive           bool      `json:"is_active"`
	FetchedAt          time.Time `json:"fetched_at"`
}

// NewArticleSummary builds the list representation of an article.
func NewArticleSummary(a *Article) ArticleSummary {
	return ArticleSummary{
		ID:          a.ID,
		Title:       a.Title,
		SourceName:  a.SourceName,
		PublishedAt: a.PublishedAt,
		ImageURL:    a.ImageURL,
		BiasLabel:   a.BiasLabel,
		BiasDisplay: BiasDisplay(a.BiasLabel),
		BiasScore:   a.BiasScore,
	}
}

// NewArticleDetail builds the full representation of an article.
func NewArticleDetail(a *Article, now time.Time) ArticleDetail {
	return ArticleDetail{
		ArticleSummary:     NewArticleSummary(a),
		Content:            a.Content,
		Summary:            a.Summary(),
		URL:                a.URL,
		DaysSincePublished: a.DaysSincePublished(now),
		IsActive:           a.IsActive,
		FetchedAt:          a.FetchedAt,
	}
}

// SourceCount is one row of the per-source breakdown in the stats response.
type SourceCount struct {
	SourceName string `json:"source_name"`
	Count      int    `json:"count"`
}

// BiasCount is one row of the per-label breakdown in the stats response.
type BiasCount struct {
	BiasLabel string `json:"bias_label"`
	Count     int    `json:"count"`
}

// Stats aggregates the whole store, inactive rows included.
type Stats struct {
	TotalArticles    int           `json:"total_articles"`
	Last7DaysAdded   int           `json:"last_7_days_added"`
	AverageBiasScore float64       `json:"average_bias_score"`
	BySource         []SourceCount `json:"by_source"`
	ByBias           []BiasCount   `json:"by_bias"`
	Timestamp        time.Time     `json:"timestamp"`
}
