package models

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// Field bounds enforced before storage. Values over a bound are truncated,
// never rejected.
const (
	MaxTitleLen   = 500
	MaxContentLen = 10000
	MaxSourceLen  = 200
	MaxURLLen     = 500
)

// Bias classification labels. Placeholder columns for a future scoring
// component; ingestion always writes the defaults.
const (
	BiasLeft         = "left"
	BiasCenter       = "center"
	BiasRight        = "right"
	BiasUnclassified = "unclassified"
)

// BiasLabels lists every valid bias_label value.
var BiasLabels = []string{BiasLeft, BiasCenter, BiasRight, BiasUnclassified}

// BiasDisplay returns the human-readable form of a bias label.
func BiasDisplay(label string) string {
	if label == "" {
		return ""
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

// ValidBiasLabel reports whether label is a recognized bias_label value.
func ValidBiasLabel(label string) bool {
	for _, l := range BiasLabels {
		if l == label {
			return true
		}
	}
	return false
}

// Article is one ingested news item. Rows are created only by the ingestion
// pipeline and never updated afterwards except for the IsActive flag.
type Article struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ImageURL    string    `json:"image_url"`
	SourceName  string    `json:"source_name"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
	BiasLabel   string    `json:"bias_label"`
	BiasScore   float64   `json:"bias_score"`
	IsActive    bool      `json:"is_active"`
}

// Summary returns the first 150 characters of content with an ellipsis when
// truncated, or a fixed placeholder when there is no content.
func (a *Article) Summary() string {
	if a.Content == "" {
		return "No content available"
	}
	if utf8.RuneCountInString(a.Content) > 150 {
		return truncate(a.Content, 150) + "..."
	}
	return a.Content
}

// DaysSincePublished returns the whole days elapsed since publication,
// flooring so a future-dated article reports a negative count.
func (a *Article) DaysSincePublished(now time.Time) int {
	return int(math.Floor(now.Sub(a.PublishedAt).Hours() / 24))
}

// Truncate clamps every bounded field to its storage limit.
func (a *Article) Truncate() {
	a.Title = truncate(a.Title, MaxTitleLen)
	a.Content = truncate(a.Content, MaxContentLen)
	a.SourceName = truncate(a.SourceName, MaxSourceLen)
	a.ImageURL = truncate(a.ImageURL, MaxURLLen)
	a.URL = truncate(a.URL, MaxURLLen)
}

// truncate cuts s to at most max characters. Bounds count characters, not
// bytes, so multibyte content is never cut mid-rune.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
