package database

import (
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const migrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)
`

// Migrate applies (direction "up") or reverts (direction "down") the SQL files in fsys.
// Applied versions are tracked in schema_migrations so re-running "up" is a no-op.
func Migrate(db *sql.DB, fsys fs.FS, direction string) error {
	if direction != "up" && direction != "down" {
		return fmt.Errorf("invalid migration direction %q", direction)
	}

	if _, err := db.Exec(migrationsTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	suffix := "." + direction + ".sql"
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("failed to read migration directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	if direction == "down" {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}

	for _, name := range files {
		version := strings.TrimSuffix(name, suffix)

		applied, err := isApplied(db, version)
		if err != nil {
			return err
		}
		if (direction == "up" && applied) || (direction == "down" && !applied) {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		log.Info().Str("migration", name).Msg("applying migration")
		if err := apply(db, version, direction, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
	}
	return nil
}

func isApplied(db *sql.DB, version string) (bool, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, version).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check migration %s: %w", version, err)
	}
	return count > 0, nil
}

func apply(db *sql.DB, version, direction, content string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(content); err != nil {
		return err
	}

	if direction == "up" {
		_, err = tx.Exec(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, version, time.Now().Unix())
	} else {
		_, err = tx.Exec(`DELETE FROM schema_migrations WHERE version = ?`, version)
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}
