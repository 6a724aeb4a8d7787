package database

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"
)

// ArticleURLs returns the full set of known article URLs, lower-cased.
func (db *DB) ArticleURLs() (map[string]struct{}, error) {
	rows, err := db.conn.Query("SELECT url FROM articles")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		known[strings.ToLower(u)] = struct{}{}
	}
	return known, rows.Err()
}

// InsertArticles inserts a batch of articles in one transaction. A row that
// violates the URL uniqueness constraint is dropped and the rest of the
// batch proceeds; any other failure rolls the whole batch back. Returns the
// number of rows actually inserted.
func (db *DB) InsertArticles(batch []NewArticle) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin article batch: %w", err)
	}

	inserted := 0
	for _, a := range batch {
		_, err := tx.Exec(
			`INSERT INTO articles (url, published_at, language_id, content, has_summary, has_all_summaries)
			VALUES (?, ?, ?, ?, ?, ?)`,
			strings.ToLower(a.URL), a.PublishedAt, a.LanguageID, a.Content,
			boolToInt(a.HasSummary), boolToInt(a.HasAllSummaries),
		)
		if isUniqueViolation(err) {
			log.Printf("article %s already known, dropped from batch", a.URL)
			continue
		}
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("inserting article %s: %w", a.URL, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit article batch: %w", err)
	}
	return inserted, nil
}

// PendingSummaryArticles returns articles younger than maxAge whose fan-out
// has not completed, ordered by id. That includes articles with a stored
// source summary whose translation sweep was interrupted.
func (db *DB) PendingSummaryArticles(maxAge time.Duration) ([]Article, error) {
	rows, err := db.conn.Query(
		`SELECT a.id, a.url, a.discovered_at, a.published_at, a.language_id, l.code,
			a.content, a.has_summary, a.has_all_summaries
		FROM articles a JOIN languages l ON l.id = a.language_id
		WHERE a.has_all_summaries = 0
			AND a.discovered_at >= datetime('now', ?)
		ORDER BY a.id`,
		agoModifier(maxAge),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// SetArticleFlags updates the summarization state of one article.
func (db *DB) SetArticleFlags(articleID int64, hasSummary, hasAllSummaries bool) error {
	_, err := db.conn.Exec(
		"UPDATE articles SET has_summary = ?, has_all_summaries = ? WHERE id = ?",
		boolToInt(hasSummary), boolToInt(hasAllSummaries), articleID,
	)
	return err
}

// GetArticleByID returns a single article by ID, or nil if absent.
func (db *DB) GetArticleByID(articleID int64) (*Article, error) {
	row := db.conn.QueryRow(
		`SELECT a.id, a.url, a.discovered_at, a.published_at, a.language_id, l.code,
			a.content, a.has_summary, a.has_all_summaries
		FROM articles a JOIN languages l ON l.id = a.language_id
		WHERE a.id = ?`, articleID,
	)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// RecentArticles returns the newest articles, most recent first.
func (db *DB) RecentArticles(limit int) ([]Article, error) {
	rows, err := db.conn.Query(
		`SELECT a.id, a.url, a.discovered_at, a.published_at, a.language_id, l.code,
			a.content, a.has_summary, a.has_all_summaries
		FROM articles a JOIN languages l ON l.id = a.language_id
		ORDER BY a.id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// agoModifier renders a negative sqlite datetime modifier, e.g. "-36 hours".
func agoModifier(age time.Duration) string {
	return fmt.Sprintf("-%d seconds", int64(age.Seconds()))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanArticles(rows *sql.Rows) ([]Article, error) {
	var articles []Article
	for rows.Next() {
		var a Article
		var hasSummary, hasAll int
		if err := rows.Scan(&a.ID, &a.URL, &a.DiscoveredAt, &a.PublishedAt,
			&a.LanguageID, &a.LanguageCode, &a.Content, &hasSummary, &hasAll); err != nil {
			return nil, err
		}
		a.HasSummary = hasSummary != 0
		a.HasAllSummaries = hasAll != 0
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func scanArticle(row *sql.Row) (*Article, error) {
	var a Article
	var hasSummary, hasAll int
	if err := row.Scan(&a.ID, &a.URL, &a.DiscoveredAt, &a.PublishedAt,
		&a.LanguageID, &a.LanguageCode, &a.Content, &hasSummary, &hasAll); err != nil {
		return nil, err
	}
	a.HasSummary = hasSummary != 0
	a.HasAllSummaries = hasAll != 0
	return &a, nil
}
