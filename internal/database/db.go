package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"shared-tasks/internal/config"
	"shared-tasks/pkg/logger"
)

// Supported values for DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite3"
)

var (
	pool *sql.DB
	once sync.Once
)

// DB returns the global database connection pool (initialized on first use).
// It returns nil when DATABASE_URL is missing or the driver is unknown.
func DB(ctx context.Context) *sql.DB {
	once.Do(func() {
		cfg := config.Get()
		if cfg.DatabaseURL == "" {
			logger.Error(ctx, "DATABASE_URL is not set")
			return
		}
		db, err := Open(cfg.DBDriver, cfg.DatabaseURL, cfg.DBPoolSize)
		if err != nil {
			logger.Error(ctx, "Failed to open database", "error", err, "driver", cfg.DBDriver)
			return
		}
		pool = db
		logger.Info(ctx, "Database pool initialized", "driver", cfg.DBDriver, "max_open", cfg.DBPoolSize)
	})
	return pool
}

// Open opens a pool for one of the supported drivers.
func Open(driver, dsn string, poolSize int) (*sql.DB, error) {
	switch driver {
	case DriverPostgres, DriverPgx, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// sqlite serializes writers; a single connection also keeps :memory: databases shared.
		poolSize = 1
	}
	if poolSize <= 0 {
		poolSize = 1
	}
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns((poolSize + 1) / 2)
	return db, nil
}
