package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) the SQLite database at path and applies the schema.
// Use ":memory:" for an in-memory database in tests.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS articles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			source_name TEXT NOT NULL DEFAULT 'Unknown',
			url TEXT NOT NULL UNIQUE,
			published_at DATETIME NOT NULL,
			fetched_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			bias_label TEXT NOT NULL DEFAULT 'unclassified',
			bias_score REAL NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			UNIQUE(title, source_name)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_articles_source_published ON articles(source_name, published_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_articles_bias_published ON articles(bias_label, published_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
