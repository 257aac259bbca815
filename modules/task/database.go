package task

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	// pure-Go driver, registered as "sqlite"
	_ "modernc.org/sqlite"
)

const (
	// DriverCGO is the mattn/go-sqlite3 driver bundled with gorm.io/driver/sqlite.
	DriverCGO = "sqlite3"
	// DriverPureGo is modernc.org/sqlite, usable with CGO_ENABLED=0.
	DriverPureGo = "sqlite"
)

// DatabaseConfig selects the SQLite file and driver.
type DatabaseConfig struct {
	Path   string
	Driver string
	Debug  bool
}

// OpenDatabase connects to SQLite and creates the schema.
func OpenDatabase(cfg DatabaseConfig) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", DriverCGO:
		dialector = sqlite.Open(cfg.Path)
	case DriverPureGo:
		dialector = sqlite.New(sqlite.Config{DriverName: DriverPureGo, DSN: cfg.Path})
	default:
		return nil, fmt.Errorf("unsupported sqlite driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// SQLite has a single writer; one connection also keeps ":memory:" databases alive.
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the tasks table when missing.
func Migrate(db *gorm.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT,
		priority TEXT NOT NULL,
		dueDate INTEGER NOT NULL,
		isCompleted BOOLEAN NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status_due ON tasks (isCompleted, dueDate);
	`

	if err := db.Exec(schema).Error; err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
