package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS languages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    code TEXT NOT NULL UNIQUE COLLATE NOCASE CHECK(length(code) <= 8),
    name TEXT,
    is_active INTEGER DEFAULT 1
);

CREATE TABLE IF NOT EXISTS subscribers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    chat_id INTEGER NOT NULL UNIQUE,
    registered_at TEXT DEFAULT (datetime('now')),
    is_active INTEGER DEFAULT 1,
    language_id INTEGER REFERENCES languages(id)
);

CREATE TABLE IF NOT EXISTS articles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT NOT NULL UNIQUE COLLATE NOCASE,
    discovered_at TEXT DEFAULT (datetime('now')),
    published_at TEXT,
    language_id INTEGER NOT NULL REFERENCES languages(id),
    content TEXT,
    has_summary INTEGER DEFAULT 0,
    has_all_summaries INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS summaries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    article_id INTEGER NOT NULL REFERENCES articles(id),
    language_id INTEGER NOT NULL REFERENCES languages(id),
    created_at TEXT DEFAULT (datetime('now')),
    content TEXT NOT NULL,
    is_translation_pending INTEGER DEFAULT 0,
    UNIQUE (article_id, language_id)
);

CREATE TABLE IF NOT EXISTS deliveries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    summary_id INTEGER NOT NULL REFERENCES summaries(id),
    subscriber_id INTEGER NOT NULL REFERENCES subscribers(id),
    is_sent INTEGER DEFAULT 0,
    UNIQUE (summary_id, subscriber_id)
);

CREATE INDEX IF NOT EXISTS idx_articles_url ON articles(url);
CREATE INDEX IF NOT EXISTS idx_articles_pending ON articles(has_summary, has_all_summaries);
CREATE INDEX IF NOT EXISTS idx_summaries_article ON summaries(article_id);
CREATE INDEX IF NOT EXISTS idx_deliveries_unsent ON deliveries(is_sent);
CREATE INDEX IF NOT EXISTS idx_subscribers_language ON subscribers(language_id);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
