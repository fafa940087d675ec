package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/newslens/newslens/internal/cache"
	"github.com/newslens/newslens/internal/config"
	"github.com/newslens/newslens/internal/db"
	"github.com/newslens/newslens/internal/logger"
	"github.com/newslens/newslens/internal/middleware"
	"github.com/newslens/newslens/internal/models"
	"github.com/newslens/newslens/internal/store"
)

func TestMain(m *testing.M) {
	logger.Init(logger.Config{Level: "error", Output: "stderr"})
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		NewsCountry:  "us",
		NewsPageSize: 10,
		CacheTTL:     time.Minute,
		AdminAPIKey:  "secret",
	}
}

func newTestApp(t *testing.T, cfg *config.Config) (*fiber.App, *store.Store, *cache.MockCache) {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	st := store.New(database)
	mc := cache.NewMockCache()
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	SetupRoutes(app, st, mc, cfg)
	return app, st, mc
}

func seedArticle(t *testing.T, st *store.Store, a models.Article) models.Article {
	t.Helper()
	created, err := st.InsertIfAbsent(context.Background(), &a)
	if err != nil {
		t.Fatalf("seed %q: %v", a.Title, err)
	}
	if !created {
		t.Fatalf("seed %q: duplicate", a.Title)
	}
	return a
}

func seedFixture(t *testing.T, st *store.Store) []models.Article {
	t.Helper()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seed := []models.Article{
		{Title: "Senate passes bill", SourceName: "CNN", URL: "https://e.com/1", PublishedAt: base, BiasLabel: models.BiasLeft, BiasScore: -0.6, Content: "Senate floor vote"},
		{Title: "House debates budget", SourceName: "CNN", URL: "https://e.com/2", PublishedAt: base.AddDate(0, 0, 1), BiasLabel: models.BiasCenter, BiasScore: 0.1, Content: "Budget talks"},
		{Title: "Governor signs order", SourceName: "Fox News", URL: "https://e.com/3", PublishedAt: base.AddDate(0, 0, 2), BiasLabel: models.BiasRight, BiasScore: 0.7, Content: "Executive order"},
		{Title: "Election results in", SourceName: "Reuters", URL: "https://e.com/4", PublishedAt: base.AddDate(0, 0, 3), BiasLabel: models.BiasLeft, BiasScore: -0.2, Content: "Vote counting ends"},
		{Title: "Court ruling pending", SourceName: "AP", URL: "https://e.com/5", PublishedAt: base.AddDate(0, 0, 4), BiasLabel: models.BiasUnclassified, Content: ""},
	}
	out := make([]models.Article, 0, len(seed))
	for _, a := range seed {
		out = append(out, seedArticle(t, st, a))
	}
	return out
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body interface{}, header map[string]string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var out map[string]interface{}
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("unmarshal %q: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func TestListArticles(t *testing.T) {
	app, st, _ := newTestApp(t, testConfig())
	seedFixture(t, st)

	status, body := doJSON(t, app, http.MethodGet, "/articles/", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["total"] != float64(5) {
		t.Errorf("total = %v, want 5", body["total"])
	}
	if body["page_size"] != float64(store.PageSize) {
		t.Errorf("page_size = %v, want %d", body["page_size"], store.PageSize)
	}

	items := body["items"].([]interface{})
	if len(items) != 5 {
		t.Fatalf("items = %d, want 5", len(items))
	}
	first := items[0].(map[string]interface{})
	if first["title"] != "Court ruling pending" {
		t.Errorf("first item = %v, want newest", first["title"])
	}
	if _, ok := first["content"]; ok {
		t.Error("list item carries full content; want summary shape")
	}
	if first["bias_display"] != "Unclassified" {
		t.Errorf("bias_display = %v", first["bias_display"])
	}
}

func TestListArticlesFiltered(t *testing.T) {
	app, st, _ := newTestApp(t, testConfig())
	seedFixture(t, st)

	status, body := doJSON(t, app, http.MethodGet, "/articles/?source=cnn&bias=left", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	items := body["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("filtered items = %d, want 1", len(items))
	}
	if items[0].(map[string]interface{})["title"] != "Senate passes bill" {
		t.Errorf("filtered item = %v", items[0])
	}
}

func TestListArticlesBadFilters(t *testing.T) {
	app, st, _ := newTestApp(t, testConfig())
	seedFixture(t, st)

	targets := []string{
		"/articles/?bias=middle",
		"/articles/?min_score=abc",
		"/articles/?min_score=2",
		"/articles/?max_score=-1.5",
		"/articles/?from_date=not-a-date",
		"/articles/?to_date=01/02/2025",
		"/articles/?ordering=title",
	}
	for _, target := range targets {
		status, body := doJSON(t, app, http.MethodGet, target, nil, nil)
		if status != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, status)
		}
		if body["error"] == nil || body["error"] == "" {
			t.Errorf("%s: missing error body", target)
		}
	}
}

func TestListArticlesDateRange(t *testing.T) {
	app, st, _ := newTestApp(t, testConfig())
	seedFixture(t, st)

	status, body := doJSON(t, app, http.MethodGet, "/articles/?from_date=2025-06-02&to_date=2025-06-04", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["total"] != float64(3) {
		t.Errorf("total = %v, want 3", body["total"])
	}
}

func TestGetArticle(t *testing.T) {
	app, st, _ := newTestApp(t, testConfig())
	fixture := seedFixture(t, st)

	status, body := doJSON(t, app, http.MethodGet, fmt.Sprintf("/articles/%d", fixture[0].ID), nil, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["title"] != "Senate passes bill" {
		t.Errorf("title = %v", body["title"])
	}
	if body["summary"] != "Senate floor vote" {
		t.Errorf("summary = %v", body["summary"])
	}
	if body["url"] != "https://e.com/1" {
		t.Errorf("url = %v", body["url"])
	}
	if _, ok := body["days_since_published"]; !ok {
		t.Error("detail missing days_since_published")
	}
	if body["is_active"] != true {
		t.Errorf("is_active = %v", body["is_active"])
	}
}

func TestGetArticleNotFound(t *testing.T) {
	app, st, _ := newTestApp(t, testConfig())
	fixture := seedFixture(t, st)

	// Unknown id
	if status, _ := doJSON(t, app, http.MethodGet, "/articles/99999", nil, nil); status != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", status)
	}

	// Non-numeric id
	if status, _ := doJSON(t, app, http.MethodGet, "/articles/not-a-number", nil, nil); status != http.StatusNotFound {
		t.Errorf("non-numeric id status = %d, want 404", status)
	}

	// Soft-deleted article
	if err := st.SetActive(context.Background(), fixture[0].ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if status, _ := doJSON(t, app, http.MethodGet, fmt.Sprintf("/articles/%d", fixture[0].ID), nil, nil); status != http.StatusNotFound {
		t.Errorf("inactive id status = %d, want 404", status)
	}
}

func TestGetStats(t *testing.T) {
	app, st, mc := newTestApp(t, testConfig())
	seedFixture(t, st)

	status, body := doJSON(t, app, http.MethodGet, "/articles/stats", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["total_articles"] != float64(5) {
		t.Errorf("total_articles = %v, want 5", body["total_articles"])
	}
	// (-0.6 + 0.1 + 0.7 - 0.2 + 0) / 5 = 0
	if body["average_bias_score"] != float64(0) {
		t.Errorf("average_bias_score = %v, want 0", body["average_bias_score"])
	}
	bySource := body["by_source"].([]interface{})
	top := bySource[0].(map[string]interface{})
	if top["source_name"] != "CNN" || top["count"] != float64(2) {
		t.Errorf("top source = %v, want CNN with 2", top)
	}
	byBias := body["by_bias"].([]interface{})
	if len(byBias) != 4 {
		t.Errorf("by_bias entries = %d, want 4", len(byBias))
	}
	if _, ok := body["timestamp"]; !ok {
		t.Error("stats missing timestamp")
	}

	// The rendered body is cached; a second call with extra rows still
	// serves the cached version until invalidation.
	seedArticle(t, st, models.Article{
		Title: "Late addition", SourceName: "BBC", URL: "https://e.com/late",
		PublishedAt: time.Now().UTC(),
	})
	status, body = doJSON(t, app, http.MethodGet, "/articles/stats", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("cached status = %d, want 200", status)
	}
	if body["total_articles"] != float64(5) {
		t.Errorf("cached total_articles = %v, want stale 5", body["total_articles"])
	}

	if err := mc.Invalidate(context.Background()); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, body = doJSON(t, app, http.MethodGet, "/articles/stats", nil, nil)
	if body["total_articles"] != float64(6) {
		t.Errorf("refreshed total_articles = %v, want 6", body["total_articles"])
	}
}

// failingCache errors on every read but accepts writes, like a Redis that
// went away mid-flight.
type failingCache struct {
	*cache.MockCache
}

func (f *failingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, errors.New("cache unavailable")
}

func TestCachedEndpointsSurviveCacheReadFailure(t *testing.T) {
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	st := store.New(database)
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	SetupRoutes(app, st, &failingCache{cache.NewMockCache()}, testConfig())
	seedFixture(t, st)

	status, body := doJSON(t, app, http.MethodGet, "/articles/stats", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("stats status = %d, want 200 despite cache failure", status)
	}
	if body["total_articles"] != float64(5) {
		t.Errorf("total_articles = %v, want freshly computed 5", body["total_articles"])
	}

	if status, _ := doJSON(t, app, http.MethodGet, "/articles/sources", nil, nil); status != http.StatusOK {
		t.Errorf("sources status = %d, want 200 despite cache failure", status)
	}
}

func TestGetStatsLast7Days(t *testing.T) {
	app, st, _ := newTestApp(t, testConfig())
	now := time.Now().UTC()

	seedArticle(t, st, models.Article{Title: "Fresh", SourceName: "CNN", URL: "https://e.com/f", PublishedAt: now.AddDate(0, 0, -2), BiasScore: 0.5})
	seedArticle(t, st, models.Article{Title: "Stale", SourceName: "CNN", URL: "https://e.com/s", PublishedAt: now.AddDate(0, 0, -20), BiasScore: 0.25})

	_, body := doJSON(t, app, http.MethodGet, "/articles/stats", nil, nil)
	if body["last_7_days_added"] != float64(1) {
		t.Errorf("last_7_days_added = %v, want 1", body["last_7_days_added"])
	}
	// (0.5 + 0.25) / 2 = 0.375, rounded to 0.38
	if body["average_bias_score"] != float64(0.38) {
		t.Errorf("average_bias_score = %v, want 0.38", body["average_bias_score"])
	}
}

func TestGetSources(t *testing.T) {
	app, st, _ := newTestApp(t, testConfig())
	seedFixture(t, st)

	req := httptest.NewRequest(http.MethodGet, "/articles/sources", nil)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var sources []string
	if err := json.NewDecoder(resp.Body).Decode(&sources); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{"AP", "CNN", "Fox News", "Reuters"}
	if len(sources) != len(want) {
		t.Fatalf("sources = %v, want %v", sources, want)
	}
	for i := range want {
		if sources[i] != want[i] {
			t.Errorf("sources[%d] = %q, want %q", i, sources[i], want[i])
		}
	}
}

func TestAdminAuth(t *testing.T) {
	app, _, _ := newTestApp(t, testConfig())

	if status, _ := doJSON(t, app, http.MethodPost, "/admin/fetch", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("missing key status = %d, want 401", status)
	}
	if status, _ := doJSON(t, app, http.MethodPost, "/admin/fetch", nil, map[string]string{"X-API-Key": "wrong"}); status != http.StatusForbidden {
		t.Errorf("wrong key status = %d, want 403", status)
	}

	// Without a configured admin key the whole admin surface is off.
	cfg := testConfig()
	cfg.AdminAPIKey = ""
	disabled, _, _ := newTestApp(t, cfg)
	if status, _ := doJSON(t, disabled, http.MethodPost, "/admin/fetch", nil, map[string]string{"X-API-Key": "anything"}); status != http.StatusForbidden {
		t.Errorf("disabled admin status = %d, want 403", status)
	}
}

func TestAdminFetchWithoutProviderKey(t *testing.T) {
	app, _, _ := newTestApp(t, testConfig())

	status, body := doJSON(t, app, http.MethodPost, "/admin/fetch", nil, map[string]string{"X-API-Key": "secret"})
	if status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", status)
	}
	if body["error"] == nil {
		t.Error("missing error body")
	}
}

func TestAdminFetchEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok","totalResults":1,"articles":[{"source":{"id":"cnn","name":"CNN"},"title":"Breaking vote","description":"desc","url":"https://example.com/vote","urlToImage":"","publishedAt":"2025-06-01T10:00:00Z"}]}`)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.NewsAPIKey = "provider-key"
	cfg.NewsAPIBaseURL = srv.URL
	cfg.FetchTimeout = 2 * time.Second
	app, st, _ := newTestApp(t, cfg)

	status, body := doJSON(t, app, http.MethodPost, "/admin/fetch",
		map[string]interface{}{"count": 5, "country": "us"},
		map[string]string{"X-API-Key": "secret"})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["saved"] != float64(1) || body["total"] != float64(1) {
		t.Errorf("result = %v, want saved=1 total=1", body)
	}

	if _, total, err := st.List(context.Background(), store.Filter{}, 1); err != nil || total != 1 {
		t.Errorf("store rows = %d (err=%v), want 1", total, err)
	}
}

func TestAdminSetActive(t *testing.T) {
	app, st, _ := newTestApp(t, testConfig())
	fixture := seedFixture(t, st)
	target := fmt.Sprintf("/admin/articles/%d/active", fixture[0].ID)
	auth := map[string]string{"X-API-Key": "secret"}

	status, body := doJSON(t, app, http.MethodPatch, target, map[string]interface{}{"is_active": false}, auth)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["is_active"] != false {
		t.Errorf("is_active = %v, want false", body["is_active"])
	}

	if status, _ := doJSON(t, app, http.MethodGet, fmt.Sprintf("/articles/%d", fixture[0].ID), nil, nil); status != http.StatusNotFound {
		t.Errorf("detail after deactivation = %d, want 404", status)
	}

	// Missing body
	if status, _ := doJSON(t, app, http.MethodPatch, target, map[string]interface{}{}, auth); status != http.StatusBadRequest {
		t.Errorf("missing is_active status = %d, want 400", status)
	}

	// Unknown id
	if status, _ := doJSON(t, app, http.MethodPatch, "/admin/articles/9999/active", map[string]interface{}{"is_active": true}, auth); status != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", status)
	}
}
