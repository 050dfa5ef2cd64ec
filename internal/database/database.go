package database

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MarcoPoloResearchLab/docrev/internal/docs"
	"github.com/MarcoPoloResearchLab/docrev/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	// DriverSQLite selects the embedded pure-Go SQLite driver.
	DriverSQLite = "sqlite"
	// DriverPostgres selects PostgreSQL through pgx.
	DriverPostgres = "postgres"

	sqliteForeignKeysPragma = "_pragma=foreign_keys(1)"
	sqliteBusyTimeoutPragma = "_pragma=busy_timeout(5000)"
)

// ErrUnsupportedDriver indicates an unknown database.driver value.
var ErrUnsupportedDriver = errors.New("database: unsupported driver")

// Config selects the storage backend.
type Config struct {
	Driver string
	DSN    string
}

// Open connects to the configured database and brings the schema up to date.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	return openDialector(dialector, normalizeDriver(cfg.Driver), logger)
}

// openDialector connects through dialector and migrates. The pool is closed
// on every failure after the connection opened.
func openDialector(dialector gorm.Dialector, driver string, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		if closer, ok := db.ConnPool.(io.Closer); ok {
			_ = closer.Close()
		}
		return nil, err
	}

	if driver == DriverSQLite {
		// SQLite serializes writers; one connection keeps transactions from
		// failing with SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db, logger); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info("database initialized", zap.String("driver", driver))
	return db, nil
}

// Migrate creates or updates every table and applies pending named migrations.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	models := append([]any{&users.Identity{}}, docs.Models()...)
	models = append(models, &migrationRecord{})
	if err := db.AutoMigrate(models...); err != nil {
		return err
	}
	return applyMigrations(db, logger)
}

func dialectorFor(cfg Config) (gorm.Dialector, error) {
	switch normalizeDriver(cfg.Driver) {
	case DriverSQLite:
		return sqlite.Open(sqliteDSN(cfg.DSN)), nil
	case DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}

func normalizeDriver(driver string) string {
	normalized := strings.ToLower(strings.TrimSpace(driver))
	switch normalized {
	case "", "sqlite3":
		return DriverSQLite
	case "postgresql", "pgx":
		return DriverPostgres
	default:
		return normalized
	}
}

// sqliteDSN enables foreign keys and a busy timeout unless the caller set them.
func sqliteDSN(dsn string) string {
	result := dsn
	for _, pragma := range []string{sqliteForeignKeysPragma, sqliteBusyTimeoutPragma} {
		name := strings.SplitN(pragma, "(", 2)[0]
		if strings.Contains(result, name) {
			continue
		}
		separator := "?"
		if strings.Contains(result, "?") {
			separator = "&"
		}
		result += separator + pragma
	}
	return result
}
