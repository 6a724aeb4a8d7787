package database

import "database/sql"

// GetSubscriberByChatID returns the subscriber for a chat, or nil if unknown.
func (db *DB) GetSubscriberByChatID(chatID int64) (*Subscriber, error) {
	row := db.conn.QueryRow(
		"SELECT id, chat_id, registered_at, is_active, language_id FROM subscribers WHERE chat_id = ?",
		chatID,
	)
	var s Subscriber
	var active int
	if err := row.Scan(&s.ID, &s.ChatID, &s.RegisteredAt, &active, &s.LanguageID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	s.IsActive = active != 0
	return &s, nil
}

// RegisterSubscriber creates a subscriber on first contact or reactivates an
// existing one. Returns the subscriber row either way.
func (db *DB) RegisterSubscriber(chatID int64) (*Subscriber, error) {
	existing, err := db.GetSubscriberByChatID(chatID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !existing.IsActive {
			if err := db.SetSubscriberActive(chatID, true); err != nil {
				return nil, err
			}
			existing.IsActive = true
		}
		return existing, nil
	}

	if _, err := db.conn.Exec(
		"INSERT INTO subscribers (chat_id) VALUES (?)", chatID,
	); err != nil {
		// A concurrent first contact may have won the insert.
		if !isUniqueViolation(err) {
			return nil, err
		}
	}
	return db.GetSubscriberByChatID(chatID)
}

// SetSubscriberActive toggles a subscriber on block/unblock events.
// Subscribers are never deleted.
func (db *DB) SetSubscriberActive(chatID int64, active bool) error {
	_, err := db.conn.Exec(
		"UPDATE subscribers SET is_active = ? WHERE chat_id = ?",
		boolToInt(active), chatID,
	)
	return err
}

// SetSubscriberLanguage sets the preferred language. This affects which
// future summaries the subscriber receives; deliveries already created keep
// their snapshot membership.
func (db *DB) SetSubscriberLanguage(chatID, languageID int64) error {
	_, err := db.conn.Exec(
		"UPDATE subscribers SET language_id = ? WHERE chat_id = ?",
		languageID, chatID,
	)
	return err
}
