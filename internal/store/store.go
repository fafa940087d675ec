package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/newslens/newslens/internal/models"
)

// PageSize is the fixed number of articles per list page.
const PageSize = 20

// timeLayout is the SQLite DATETIME text format. Stored values are always
// UTC, so lexicographic comparison matches chronological order.
const timeLayout = "2006-01-02 15:04:05"

// ErrNotFound is returned when no active article matches a detail lookup.
var ErrNotFound = errors.New("article not found")

// Filter narrows a List call. Zero-valued fields impose no constraint; the
// is_active predicate is always applied and is not caller-controlled.
type Filter struct {
	FromDate *time.Time // published_at >= FromDate
	ToDate   *time.Time // published_at <= ToDate
	Source   string     // case-insensitive exact match on source_name
	Bias     string     // exact match on bias_label
	MinScore *float64   // bias_score >= MinScore
	MaxScore *float64   // bias_score <= MaxScore
	Search   string     // case-insensitive substring match on title or content
	Ordering string     // published_at | -published_at | bias_score | -bias_score
}

// Store is the relational article store.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const articleColumns = `id, title, content, image_url, source_name, url, published_at, fetched_at, bias_label, bias_score, is_active`

// InsertIfAbsent inserts the article unless a row with the same
// (title, source_name) pair or the same url already exists. It reports
// whether a row was created; a conflict, including one raised by a
// concurrent insert, is not an error.
func (s *Store) InsertIfAbsent(ctx context.Context, a *models.Article) (bool, error) {
	if a.BiasLabel == "" {
		a.BiasLabel = models.BiasUnclassified
	}
	a.FetchedAt = time.Now().UTC().Truncate(time.Second)

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO articles(title, content, image_url, source_name, url, published_at, fetched_at, bias_label, bias_score, is_active)
		VALUES(?,?,?,?,?,?,?,?,?,1)`,
		a.Title, a.Content, a.ImageURL, a.SourceName, a.URL,
		formatTime(a.PublishedAt), formatTime(a.FetchedAt), a.BiasLabel, a.BiasScore,
	)
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}
	a.ID = id
	a.IsActive = true
	return true, nil
}

// List returns one page of active articles matching the filter, plus the
// total match count across all pages. Pages are 1-based.
func (s *Store) List(ctx context.Context, f Filter, page int) ([]models.Article, int, error) {
	if page < 1 {
		page = 1
	}
	where, args := buildWhere(f)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM articles %s ORDER BY %s LIMIT %d OFFSET %d`,
		articleColumns, where, orderClause(f.Ordering), PageSize, (page-1)*PageSize)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var out []models.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	return out, total, rows.Err()
}

// GetActive returns the active article with the given id, or ErrNotFound
// when the id is unknown or the row is soft-deleted.
func (s *Store) GetActive(ctx context.Context, id int64) (*models.Article, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id=? AND is_active=1`, id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// SetActive toggles the soft-delete flag. ErrNotFound when the id is unknown.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE articles SET is_active=? WHERE id=?`, boolInt(active), id)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates over the full store, inactive rows included.
func (s *Store) Stats(ctx context.Context, now time.Time) (*models.Stats, error) {
	st := &models.Stats{Timestamp: now}

	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), AVG(bias_score) FROM articles`).Scan(&st.TotalArticles, &avg)
	if err != nil {
		return nil, fmt.Errorf("stats totals: %w", err)
	}
	if avg.Valid {
		st.AverageBiasScore = math.Round(avg.Float64*100) / 100
	}

	cutoff := formatTime(now.UTC().AddDate(0, 0, -7))
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles WHERE published_at >= ?`, cutoff).Scan(&st.Last7DaysAdded)
	if err != nil {
		return nil, fmt.Errorf("stats recent count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_name, COUNT(*) AS cnt FROM articles
		GROUP BY source_name ORDER BY cnt DESC, source_name LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("stats by source: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sc models.SourceCount
		if err := rows.Scan(&sc.SourceName, &sc.Count); err != nil {
			return nil, err
		}
		st.BySource = append(st.BySource, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	biasRows, err := s.db.QueryContext(ctx, `
		SELECT bias_label, COUNT(*) FROM articles
		GROUP BY bias_label ORDER BY bias_label`)
	if err != nil {
		return nil, fmt.Errorf("stats by bias: %w", err)
	}
	defer biasRows.Close()
	for biasRows.Next() {
		var bc models.BiasCount
		if err := biasRows.Scan(&bc.BiasLabel, &bc.Count); err != nil {
			return nil, err
		}
		st.ByBias = append(st.ByBias, bc)
	}
	return st, biasRows.Err()
}

// Sources returns every distinct source name in the store, alphabetically.
func (s *Store) Sources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT source_name FROM articles ORDER BY source_name`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func buildWhere(f Filter) (string, []interface{}) {
	conds := []string{"is_active=1"}
	var args []interface{}

	if f.FromDate != nil {
		conds = append(conds, "published_at >= ?")
		args = append(args, formatTime(*f.FromDate))
	}
	if f.ToDate != nil {
		conds = append(conds, "published_at <= ?")
		args = append(args, formatTime(*f.ToDate))
	}
	if f.Source != "" {
		conds = append(conds, "source_name = ? COLLATE NOCASE")
		args = append(args, f.Source)
	}
	if f.Bias != "" {
		conds = append(conds, "bias_label = ?")
		args = append(args, f.Bias)
	}
	if f.MinScore != nil {
		conds = append(conds, "bias_score >= ?")
		args = append(args, *f.MinScore)
	}
	if f.MaxScore != nil {
		conds = append(conds, "bias_score <= ?")
		args = append(args, *f.MaxScore)
	}
	if f.Search != "" {
		conds = append(conds, `(title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\')`)
		pattern := "%" + escapeLike(f.Search) + "%"
		args = append(args, pattern, pattern)
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// orderClause maps an ordering token to SQL. Unknown tokens are rejected at
// the API layer; anything else falls back to the default ordering.
func orderClause(ordering string) string {
	switch ordering {
	case "published_at":
		return "published_at ASC"
	case "bias_score":
		return "bias_score ASC"
	case "-bias_score":
		return "bias_score DESC"
	default:
		return "published_at DESC"
	}
}

// escapeLike neutralizes LIKE wildcards in user-supplied search text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row scanner) (*models.Article, error) {
	var a models.Article
	var published, fetched string
	var active int
	err := row.Scan(&a.ID, &a.Title, &a.Content, &a.ImageURL, &a.SourceName,
		&a.URL, &published, &fetched, &a.BiasLabel, &a.BiasScore, &active)
	if err != nil {
		return nil, err
	}
	if a.PublishedAt, err = parseTime(published); err != nil {
		return nil, fmt.Errorf("scan published_at: %w", err)
	}
	if a.FetchedAt, err = parseTime(fetched); err != nil {
		return nil, fmt.Errorf("scan fetched_at: %w", err)
	}
	a.IsActive = active == 1
	return &a, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.ParseInLocation(timeLayout, s, time.UTC)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
