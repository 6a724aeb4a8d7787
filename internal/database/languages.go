package database

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
)

// SeedLanguages inserts the given languages, skipping codes already present.
// Codes are stored upper-cased. Returns the number of rows inserted.
func (db *DB) SeedLanguages(langs []Language) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin language seed: %w", err)
	}

	inserted := 0
	for _, l := range langs {
		_, err := tx.Exec(
			"INSERT INTO languages (code, name, is_active) VALUES (?, ?, 1)",
			strings.ToUpper(l.Code), l.Name,
		)
		if isUniqueViolation(err) {
			log.Printf("language %s already known, skipped", l.Code)
			continue
		}
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("inserting language %s: %w", l.Code, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit language seed: %w", err)
	}
	return inserted, nil
}

// GetLanguageByCode returns the language with the given code
// (case-insensitive), or nil if absent.
func (db *DB) GetLanguageByCode(code string) (*Language, error) {
	row := db.conn.QueryRow(
		"SELECT id, code, name, is_active FROM languages WHERE code = ?",
		strings.ToUpper(code),
	)
	var l Language
	var active int
	if err := row.Scan(&l.ID, &l.Code, &l.Name, &active); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	l.IsActive = active != 0
	return &l, nil
}

// ActiveLanguages returns all active languages ordered by code.
func (db *DB) ActiveLanguages() ([]Language, error) {
	rows, err := db.conn.Query(
		"SELECT id, code, name, is_active FROM languages WHERE is_active = 1 ORDER BY code",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLanguages(rows)
}

// ActiveSubscriberLanguages returns the distinct set of active languages held
// by currently-active subscribers, ordered by id. This is the fan-out target
// set: languages with no active subscriber receive no translation.
func (db *DB) ActiveSubscriberLanguages() ([]Language, error) {
	rows, err := db.conn.Query(
		`SELECT DISTINCT l.id, l.code, l.name, l.is_active
		FROM languages l JOIN subscribers s ON s.language_id = l.id
		WHERE s.is_active = 1 AND l.is_active = 1
		ORDER BY l.id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLanguages(rows)
}

// SetLanguageActive toggles fan-out into a language. Existing summaries in a
// deactivated language are kept.
func (db *DB) SetLanguageActive(code string, active bool) error {
	_, err := db.conn.Exec(
		"UPDATE languages SET is_active = ? WHERE code = ?",
		boolToInt(active), strings.ToUpper(code),
	)
	return err
}

func scanLanguages(rows *sql.Rows) ([]Language, error) {
	var langs []Language
	for rows.Next() {
		var l Language
		var active int
		if err := rows.Scan(&l.ID, &l.Code, &l.Name, &active); err != nil {
			return nil, err
		}
		l.IsActive = active != 0
		langs = append(langs, l)
	}
	return langs, rows.Err()
}
