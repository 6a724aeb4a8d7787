package database

import (
	"database/sql"
	"fmt"
	"log"
)

// schemaVersion reads the PRAGMA user_version stamp.
func schemaVersion(conn *sql.DB) (int, error) {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// hasUnstampedSchema reports whether the pipeline tables already exist
// while user_version is still 0. Databases written before versioning was
// introduced carry the full version-1 schema and must be stamped, not
// re-created.
func hasUnstampedSchema(conn *sql.DB) (bool, error) {
	var count int
	err := conn.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name IN ('articles', 'summaries', 'deliveries')`,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking for unstamped schema: %w", err)
	}
	return count == 3, nil
}

// migrate applies every migration newer than the database's stamp.
func migrate(conn *sql.DB) error {
	current, err := schemaVersion(conn)
	if err != nil {
		return err
	}

	if current == 0 {
		unstamped, err := hasUnstampedSchema(conn)
		if err != nil {
			return err
		}
		if unstamped {
			log.Printf("Found unstamped digest schema, recording it as version 1")
			if _, err := conn.Exec("PRAGMA user_version = 1"); err != nil {
				return fmt.Errorf("stamping unversioned database: %w", err)
			}
			current = 1
		}
	}

	latest := latestVersion()
	if current >= latest {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		log.Printf("Migrating database to version %d: %s", m.Version, m.Description)

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		// The driver rejects PRAGMA inside a transaction, so the stamp
		// lands after commit. A crash between the two only re-runs the
		// migration, which its DDL tolerates.
		if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			return fmt.Errorf("setting version %d: %w", m.Version, err)
		}
	}

	return nil
}
