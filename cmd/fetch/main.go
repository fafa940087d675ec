package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/newslens/newslens/internal/config"
	"github.com/newslens/newslens/internal/db"
	"github.com/newslens/newslens/internal/logger"
	"github.com/newslens/newslens/internal/news"
	"github.com/newslens/newslens/internal/store"
)

// fetch is the operator/cron entrypoint: one fetch-and-persist run,
// counts reported on stdout.
func main() {
	count := flag.Int("count", 0, "number of articles to fetch (default: NEWS_PAGE_SIZE)")
	country := flag.String("country", "", "country code (default: NEWS_COUNTRY)")
	flag.Parse()

	cfg := config.Load()
	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: "stderr",
		Pretty: cfg.Env == "development",
	}); err != nil {
		panic(err)
	}
	log := logger.Get()

	if *count <= 0 {
		*count = cfg.NewsPageSize
	}
	if *country == "" {
		*country = cfg.NewsCountry
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to open database")
		os.Exit(1)
	}
	defer database.Close()

	svc, err := news.NewService(cfg, store.New(database), nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize news service")
		os.Exit(1)
	}

	fmt.Printf("Fetching %d articles from %s...\n", *count, *country)
	result := svc.FetchAndSave(context.Background(), *country, *count)
	fmt.Printf("Done! Saved: %d, Skipped: %d, Errors: %d\n",
		result.Saved, result.Skipped, result.Errors)
}
