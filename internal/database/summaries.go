package database

import (
	"database/sql"
	"fmt"
)

// InsertSummary persists one per-language summary and, in the same
// transaction, creates one delivery row for every subscriber currently
// active in that language. The subscriber set is snapshotted here: later
// language changes do not touch these deliveries. A source-language
// summary is inserted with translationPending set until the translation
// sweep for its article finishes. Returns the summary ID, or 0 if a
// summary for (article, language) already exists.
func (db *DB) InsertSummary(articleID, languageID int64, content string, translationPending bool) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin summary insert: %w", err)
	}

	result, err := tx.Exec(
		"INSERT INTO summaries (article_id, language_id, content, is_translation_pending) VALUES (?, ?, ?, ?)",
		articleID, languageID, content, translationPending,
	)
	if isUniqueViolation(err) {
		tx.Rollback()
		return 0, nil
	}
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("inserting summary for article %d language %d: %w", articleID, languageID, err)
	}

	summaryID, err := result.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	if _, err := tx.Exec(
		`INSERT INTO deliveries (summary_id, subscriber_id)
		SELECT ?, id FROM subscribers WHERE is_active = 1 AND language_id = ?`,
		summaryID, languageID,
	); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("creating deliveries for summary %d: %w", summaryID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit summary insert: %w", err)
	}
	return summaryID, nil
}

// ClearTranslationPending marks all summaries of an article as no longer
// awaiting translations.
func (db *DB) ClearTranslationPending(articleID int64) error {
	_, err := db.conn.Exec(
		"UPDATE summaries SET is_translation_pending = 0 WHERE article_id = ?", articleID,
	)
	if err != nil {
		return fmt.Errorf("clearing translation pending on article %d: %w", articleID, err)
	}
	return nil
}

// SummariesForArticle returns all summaries of one article ordered by
// language id.
func (db *DB) SummariesForArticle(articleID int64) ([]Summary, error) {
	rows, err := db.conn.Query(
		`SELECT id, article_id, language_id, created_at, content, is_translation_pending
		FROM summaries WHERE article_id = ? ORDER BY language_id`,
		articleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// GetSummary returns the summary for (article, language), or nil if absent.
func (db *DB) GetSummary(articleID, languageID int64) (*Summary, error) {
	row := db.conn.QueryRow(
		`SELECT id, article_id, language_id, created_at, content, is_translation_pending
		FROM summaries WHERE article_id = ? AND language_id = ?`,
		articleID, languageID,
	)
	var s Summary
	if err := row.Scan(&s.ID, &s.ArticleID, &s.LanguageID, &s.CreatedAt, &s.Content, &s.IsTranslationPending); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func scanSummaries(rows *sql.Rows) ([]Summary, error) {
	var summaries []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.ArticleID, &s.LanguageID, &s.CreatedAt, &s.Content, &s.IsTranslationPending); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
