package database

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestMigrateNewDB(t *testing.T) {
	db := openTestDB(t)

	version, err := schemaVersion(db.conn)
	if err != nil {
		t.Fatalf("schemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
}

// A database written before user_version stamping already holds the full
// pipeline schema. Opening it must stamp it in place, keeping the rows.
func TestMigrateUnstampedDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "unstamped.db")

	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	stmts := []string{
		`CREATE TABLE languages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT UNIQUE NOT NULL,
			is_active INTEGER DEFAULT 1
		)`,
		`CREATE TABLE subscribers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER UNIQUE NOT NULL,
			language_id INTEGER NOT NULL,
			is_active INTEGER DEFAULT 1
		)`,
		`CREATE TABLE articles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT UNIQUE NOT NULL,
			language_id INTEGER NOT NULL,
			discovered_at TEXT DEFAULT (datetime('now')),
			published_at TEXT,
			content TEXT,
			has_summary INTEGER DEFAULT 0,
			has_all_summaries INTEGER DEFAULT 0
		)`,
		`CREATE TABLE summaries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			article_id INTEGER NOT NULL,
			language_id INTEGER NOT NULL,
			created_at TEXT DEFAULT (datetime('now')),
			content TEXT NOT NULL,
			is_translation_pending INTEGER DEFAULT 0,
			UNIQUE (article_id, language_id)
		)`,
		`CREATE TABLE deliveries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			summary_id INTEGER NOT NULL,
			subscriber_id INTEGER NOT NULL,
			is_sent INTEGER DEFAULT 0,
			UNIQUE (summary_id, subscriber_id)
		)`,
		`INSERT INTO languages (code) VALUES ('RU')`,
		`INSERT INTO articles (url, language_id) VALUES ('https://news.example/old', 1)`,
	}
	for _, stmt := range stmts {
		if _, err := raw.Exec(stmt); err != nil {
			t.Fatalf("seeding unstamped db: %v", err)
		}
	}
	raw.Close()

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	version, err := schemaVersion(db.conn)
	if err != nil {
		t.Fatalf("schemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d after stamping, got %d", latestVersion(), version)
	}

	urls, err := db.ArticleURLs()
	if err != nil {
		t.Fatalf("ArticleURLs: %v", err)
	}
	if _, ok := urls["https://news.example/old"]; !ok {
		t.Error("expected pre-existing article to survive stamping")
	}
}

func TestMigrateIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "idem.db")

	db1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	db1.Close()

	db2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db2.Close()

	version, err := schemaVersion(db2.conn)
	if err != nil {
		t.Fatalf("schemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
}

func TestSchemaVersionNewDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	version, err := schemaVersion(conn)
	if err != nil {
		t.Fatalf("schemaVersion: %v", err)
	}
	if version != 0 {
		t.Errorf("expected version 0 on new db, got %d", version)
	}
}

func TestHasUnstampedSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "fresh.db")
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	unstamped, err := hasUnstampedSchema(conn)
	if err != nil {
		t.Fatalf("hasUnstampedSchema: %v", err)
	}
	if unstamped {
		t.Error("expected no unstamped schema in an empty database")
	}

	// A lone articles table is not the pipeline schema; stamping requires
	// the full table set.
	if _, err := conn.Exec("CREATE TABLE articles (id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	unstamped, err = hasUnstampedSchema(conn)
	if err != nil {
		t.Fatalf("hasUnstampedSchema: %v", err)
	}
	if unstamped {
		t.Error("expected partial table set not to register as unstamped schema")
	}
}
