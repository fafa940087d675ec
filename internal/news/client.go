package news

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// category is fixed: this service only aggregates political headlines.
const category = "politics"

// RawSource is the nested source object of a provider article.
type RawSource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RawArticle is one article exactly as the provider returns it.
type RawArticle struct {
	Source      RawSource `json:"source"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	URLToImage  string    `json:"urlToImage"`
	PublishedAt string    `json:"publishedAt"`
	Content     string    `json:"content"`
}

type headlinesResponse struct {
	Status       string       `json:"status"`
	Code         string       `json:"code"`
	Message      string       `json:"message"`
	TotalResults int          `json:"totalResults"`
	Articles     []RawArticle `json:"articles"`
}

// Client talks to the NewsAPI.org top-headlines endpoint.
type Client struct {
	http   *resty.Client
	apiKey string
}

// NewClient builds a provider client with a bounded request timeout.
// Failed requests are not retried; the caller decides whether to re-invoke.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout),
		apiKey: apiKey,
	}
}

// TopHeadlines requests up to pageSize political headlines for a country.
func (c *Client) TopHeadlines(ctx context.Context, country string, pageSize int) ([]RawArticle, error) {
	var body headlinesResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"country":  country,
			"category": category,
			"apiKey":   c.apiKey,
			"pageSize": strconv.Itoa(pageSize),
		}).
		SetResult(&body).
		Get("/top-headlines")

	if err != nil {
		return nil, fmt.Errorf("failed to fetch headlines: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status code %d from provider", resp.StatusCode())
	}
	if body.Status != "ok" {
		msg := body.Message
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("provider error: %s", msg)
	}

	return body.Articles, nil
}
