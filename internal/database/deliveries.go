package database

import (
	"fmt"
	"strings"
	"time"
)

// PendingDeliveries returns up to limit unsent deliveries for active
// subscribers whose summary is younger than maxAge and whose article has
// finished fan-out. Rows are ordered by the summary's owning article id so
// that all deliveries for one article are contiguous.
func (db *DB) PendingDeliveries(limit int, maxAge time.Duration) ([]PendingDelivery, error) {
	rows, err := db.conn.Query(
		`SELECT d.id, s.article_id, sub.chat_id, s.content, a.url, a.published_at
		FROM deliveries d
		JOIN summaries s ON s.id = d.summary_id
		JOIN subscribers sub ON sub.id = d.subscriber_id
		JOIN articles a ON a.id = s.article_id
		WHERE d.is_sent = 0
			AND sub.is_active = 1
			AND a.has_all_summaries = 1
			AND s.created_at >= datetime('now', ?)
		ORDER BY s.article_id, d.id
		LIMIT ?`,
		agoModifier(maxAge), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []PendingDelivery
	for rows.Next() {
		var p PendingDelivery
		if err := rows.Scan(&p.ID, &p.ArticleID, &p.ChatID, &p.Content, &p.URL, &p.PublishedAt); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// MarkDeliveriesSent flips is_sent for the given delivery ids in one
// transaction. The transition is monotonic: rows are never set back.
func (db *DB) MarkDeliveriesSent(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin mark sent: %w", err)
	}
	if _, err := tx.Exec(
		"UPDATE deliveries SET is_sent = 1 WHERE id IN ("+placeholders+")", args...,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("marking %d deliveries sent: %w", len(ids), err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mark sent: %w", err)
	}
	return nil
}

// DeliveriesForSummary returns (subscriber_id, is_sent) pairs for a summary.
func (db *DB) DeliveriesForSummary(summaryID int64) (map[int64]bool, error) {
	rows, err := db.conn.Query(
		"SELECT subscriber_id, is_sent FROM deliveries WHERE summary_id = ?", summaryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]bool)
	for rows.Next() {
		var subscriberID int64
		var sent int
		if err := rows.Scan(&subscriberID, &sent); err != nil {
			return nil, err
		}
		out[subscriberID] = sent != 0
	}
	return out, rows.Err()
}

// GetStats returns aggregate store statistics.
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM articles", &stats.Articles},
		{"SELECT COUNT(*) FROM articles WHERE has_summary = 0 AND has_all_summaries = 0", &stats.PendingArticles},
		{"SELECT COUNT(*) FROM summaries", &stats.Summaries},
		{"SELECT COUNT(*) FROM subscribers", &stats.Subscribers},
		{"SELECT COUNT(*) FROM subscribers WHERE is_active = 1", &stats.ActiveSubscribers},
		{"SELECT COUNT(*) FROM deliveries", &stats.Deliveries},
		{"SELECT COUNT(*) FROM deliveries WHERE is_sent = 0", &stats.PendingDeliveries},
		{"SELECT COUNT(*) FROM languages", &stats.Languages},
	}

	for _, c := range counts {
		if err := db.conn.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting: %w", err)
		}
	}
	return stats, nil
}
