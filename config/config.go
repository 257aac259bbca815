// Package config loads application settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	domain "github.com/example/task-manager/domain/task"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting.
type Config struct {
	DBPath          string
	DBDriver        string
	DBDebug         bool
	HTTPAddr        string
	CORSOrigins     string
	PriorityOrder   domain.PriorityOrder
	ShutdownTimeout time.Duration
	LogLevel        slog.Level
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		DBPath:          "tasks.db",
		DBDriver:        "sqlite3",
		HTTPAddr:        ":3000",
		CORSOrigins:     "*",
		PriorityOrder:   domain.PriorityOrderSeverity,
		ShutdownTimeout: 30 * time.Second,
		LogLevel:        slog.LevelInfo,
	}
}

// Load reads the optional dotenv files (".env" when none are given) and
// then the TASKS_* environment variables. Variables already set in the
// environment win over dotenv values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	if v := getenv("TASKS_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("TASKS_DB_DRIVER"); v != "" {
		switch v {
		case "sqlite3", "sqlite":
			cfg.DBDriver = v
		default:
			return Config{}, fmt.Errorf("invalid TASKS_DB_DRIVER %q: want sqlite3 or sqlite", v)
		}
	}
	if v := getenv("TASKS_DB_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TASKS_DB_DEBUG %q: %w", v, err)
		}
		cfg.DBDebug = b
	}
	if v := getenv("TASKS_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := getenv("TASKS_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = v
	}
	if v := getenv("TASKS_PRIORITY_ORDER"); v != "" {
		order, err := domain.ParsePriorityOrder(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TASKS_PRIORITY_ORDER: %w", err)
		}
		cfg.PriorityOrder = order
	}
	if v := getenv("TASKS_SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid TASKS_SHUTDOWN_TIMEOUT %q", v)
		}
		cfg.ShutdownTimeout = d
	}
	if v := getenv("TASKS_LOG_LEVEL"); v != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.ToUpper(v))); err != nil {
			return Config{}, fmt.Errorf("invalid TASKS_LOG_LEVEL %q: %w", v, err)
		}
		cfg.LogLevel = level
	}

	return cfg, nil
}
