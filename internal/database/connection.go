package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/example/lexiday/pkg/config"
)

// Connect establishes a connection to the configured database and makes sure
// the schema exists
func Connect(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	driver := "sqlite3"
	if cfg.Type == "postgres" {
		driver = "postgres"
	}

	if driver == "sqlite3" && cfg.Path != "" && cfg.Path != ":memory:" {
		// Create data directory if it doesn't exist
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlx.Connect(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite3" {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		db.SetMaxOpenConns(1) // SQLite doesn't support multiple writers
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
	}

	if err := InitializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenMemory opens a private in-memory SQLite database with the schema applied
func OpenMemory() (*sqlx.DB, error) {
	return Connect(config.DatabaseConfig{Type: "sqlite", DSN: ":memory:", Path: ":memory:"})
}

// InitializeSchema creates necessary tables if they don't exist
func InitializeSchema(db *sqlx.DB) error {
	for _, stmt := range schema(db.DriverName()) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

func schema(driver string) []string {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	ts := "TIMESTAMP"
	if driver == "postgres" {
		serial = "BIGSERIAL PRIMARY KEY"
		ts = "TIMESTAMPTZ"
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			full_name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_profiles (
			user_id TEXT PRIMARY KEY,
			full_name TEXT NOT NULL DEFAULT '',
			username TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			level TEXT NOT NULL DEFAULT 'Beginner',
			learning_goals TEXT NOT NULL DEFAULT '[]',
			total_words INTEGER NOT NULL DEFAULT 0,
			current_streak INTEGER NOT NULL DEFAULT 0,
			is_new_user BOOLEAN NOT NULL DEFAULT TRUE,
			timezone TEXT NOT NULL DEFAULT 'UTC',
			reminders_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			reminder_hour INTEGER NOT NULL DEFAULT 9,
			telegram_chat_id BIGINT NOT NULL DEFAULT 0,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_progress (
			user_id TEXT PRIMARY KEY,
			words_learned INTEGER NOT NULL DEFAULT 0,
			current_streak INTEGER NOT NULL DEFAULT 0,
			last_learning_date TEXT,
			weekly_progress TEXT NOT NULL DEFAULT '[]',
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS learned_words (
			id ` + serial + `,
			user_id TEXT NOT NULL,
			word TEXT NOT NULL,
			meaning TEXT NOT NULL DEFAULT '',
			emoji TEXT NOT NULL DEFAULT '',
			learned_date TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL,
			UNIQUE(user_id, word)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_learned_words_user_created ON learned_words (user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS lesson_bank (
			id ` + serial + `,
			word TEXT NOT NULL UNIQUE,
			definition TEXT NOT NULL DEFAULT '',
			story TEXT NOT NULL DEFAULT '',
			emoji TEXT NOT NULL DEFAULT '',
			level TEXT NOT NULL DEFAULT 'Beginner',
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS kv_cache (
			cache_key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			expires_at ` + ts + `,
			updated_at ` + ts + ` NOT NULL
		)`,
	}
}
