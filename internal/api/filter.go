package api

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/newslens/newslens/internal/store"
)

var validate = validator.New()

// listQuery is the raw query-parameter shape of the list endpoint. All
// fields are optional and combine with logical AND.
type listQuery struct {
	Page     int      `query:"page"`
	FromDate string   `query:"from_date"`
	ToDate   string   `query:"to_date"`
	Source   string   `query:"source"`
	Bias     string   `query:"bias" validate:"omitempty,oneof=left center right unclassified"`
	MinScore *float64 `query:"min_score" validate:"omitempty,gte=-1,lte=1"`
	MaxScore *float64 `query:"max_score" validate:"omitempty,gte=-1,lte=1"`
	Search   string   `query:"search"`
	Ordering string   `query:"ordering" validate:"omitempty,oneof=published_at -published_at bias_score -bias_score"`
}

// parseListQuery translates query parameters into a store filter. Malformed
// values are a client error, never a silent no-op.
func parseListQuery(c *fiber.Ctx) (store.Filter, int, error) {
	var q listQuery
	if err := c.QueryParser(&q); err != nil {
		return store.Filter{}, 0, fmt.Errorf("invalid query parameters: %w", err)
	}
	if err := validate.Struct(&q); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return store.Filter{}, 0, fmt.Errorf("invalid value for %s", errs[0].Field())
		}
		return store.Filter{}, 0, err
	}

	f := store.Filter{
		Source:   q.Source,
		Bias:     q.Bias,
		MinScore: q.MinScore,
		MaxScore: q.MaxScore,
		Search:   q.Search,
		Ordering: q.Ordering,
	}

	if q.FromDate != "" {
		t, err := parseDate(q.FromDate)
		if err != nil {
			return store.Filter{}, 0, fmt.Errorf("invalid from_date: %q", q.FromDate)
		}
		f.FromDate = &t
	}
	if q.ToDate != "" {
		t, err := parseDate(q.ToDate)
		if err != nil {
			return store.Filter{}, 0, fmt.Errorf("invalid to_date: %q", q.ToDate)
		}
		f.ToDate = &t
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	return f, page, nil
}

// parseDate accepts RFC3339 timestamps or bare YYYY-MM-DD dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}
