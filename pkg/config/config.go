package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	AI        AIConfig
	Lesson    LessonConfig
	Auth      AuthConfig
	Reminders ReminderConfig
	Storage   StorageConfig
	// Warnings collects values that could not be parsed and fell back to defaults
	Warnings []string
}

type ServerConfig struct {
	Addr string
	Env  string
}

type DatabaseConfig struct {
	Type string // "sqlite" or "postgres"
	DSN  string
	Path string // For SQLite: file path
}

type AIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type LessonConfig struct {
	Timeout         time.Duration
	DefaultTimezone string
}

type AuthConfig struct {
	SessionTTL       time.Duration
	AttemptsPerMin   int
	AttemptsBurst    int
	MinPasswordChars int
}

type ReminderConfig struct {
	Enabled       bool
	TelegramToken string
	AppURL        string
}

type StorageConfig struct {
	BackupDir string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	dbType := getEnv("DB_TYPE", "sqlite")
	if dbType != "sqlite" && dbType != "postgres" {
		return nil, fmt.Errorf("unsupported DB_TYPE %q", dbType)
	}
	dsn, dbPath := buildDSN(dbType)

	cfg.Server = ServerConfig{
		Addr: getEnv("HTTP_ADDR", ":8080"),
		Env:  getEnv("ENV", "development"),
	}
	cfg.Database = DatabaseConfig{
		Type: dbType,
		DSN:  dsn,
		Path: dbPath,
	}
	cfg.AI = AIConfig{
		APIKey:  getEnv("OPENAI_API_KEY", ""),
		Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		BaseURL: getEnv("OPENAI_BASE_URL", ""),
	}
	cfg.Lesson = LessonConfig{
		Timeout:         cfg.duration("LESSON_TIMEOUT", 20*time.Second),
		DefaultTimezone: getEnv("DEFAULT_TIMEZONE", "UTC"),
	}
	cfg.Auth = AuthConfig{
		SessionTTL:       cfg.duration("SESSION_TTL", 30*24*time.Hour),
		AttemptsPerMin:   cfg.integer("AUTH_RATE_LIMIT", 5),
		AttemptsBurst:    cfg.integer("AUTH_RATE_BURST", 5),
		MinPasswordChars: 8,
	}
	cfg.Reminders = ReminderConfig{
		Enabled:       getEnv("ENABLE_SCHEDULER", "true") != "false",
		TelegramToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		AppURL:        getEnv("APP_URL", ""),
	}
	cfg.Storage = StorageConfig{
		BackupDir: getEnv("BACKUP_DIR", "./data/backups"),
	}

	if _, err := time.LoadLocation(cfg.Lesson.DefaultTimezone); err != nil {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("DEFAULT_TIMEZONE %q is invalid, using UTC", cfg.Lesson.DefaultTimezone))
		cfg.Lesson.DefaultTimezone = "UTC"
	}

	return cfg, nil
}

// IsProduction reports whether the server runs with production settings
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

func buildDSN(dbType string) (string, string) {
	if dbType == "postgres" {
		// PostgreSQL configuration
		dbHost := getEnv("DB_HOST", "localhost")
		dbPort := getEnv("DB_PORT", "5432")
		dbUser := getEnv("DB_USER", "postgres")
		dbPassword := getEnv("DB_PASSWORD", "postgres")
		dbName := getEnv("DB_NAME", "lexiday")
		sslMode := getEnv("DB_SSLMODE", "disable")

		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			dbHost, dbPort, dbUser, dbPassword, dbName, sslMode,
		)
		return dsn, ""
	}

	// SQLite configuration (default for development)
	dbPath := getEnv("SQLITE_PATH", "./data/lexiday.db")
	dsn := dbPath + "?_foreign_keys=on&_busy_timeout=5000"
	return dsn, dbPath
}

func (c *Config) duration(key string, def time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("%s=%q is not a valid duration, using %s", key, raw, def))
		return def
	}
	return d
}

func (c *Config) integer(key string, def int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("%s=%q is not a positive integer, using %d", key, raw, def))
		return def
	}
	return n
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
