// Package db keeps the clip history index in SQLite.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// FileName is the database file inside the base directory.
const FileName = "cliptitle.db"

// Init initializes the SQLite database at baseDir/cliptitle.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.cliptitle.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Best-effort, may not work on all platforms
	_ = os.Chmod(baseDir, 0700)

	// Pragmas in the connection string apply to every pooled connection
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: clip history
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS clips (
		  id           TEXT PRIMARY KEY,
		  file_path    TEXT NOT NULL,
		  title        TEXT NOT NULL,
		  title_source TEXT,
		  action       TEXT NOT NULL,
		  fingerprint  TEXT NOT NULL,
		  content_type TEXT,
		  domain       TEXT,
		  language     TEXT,
		  chars        INTEGER NOT NULL,
		  created_at   INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_clips_created
		ON clips(created_at DESC, id DESC);

		CREATE INDEX IF NOT EXISTS idx_clips_file_path
		ON clips(file_path);

		CREATE INDEX IF NOT EXISTS idx_clips_content_type
		ON clips(content_type)
		WHERE content_type IS NOT NULL;
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
