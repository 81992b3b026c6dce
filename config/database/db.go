package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"mdnotes/config"
	"mdnotes/pkg/logger"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

const (
	pingAttempts = 5
	pingInterval = 2 * time.Second
)

type dialect struct {
	driver string
	goose  string
	dir    string
}

var dialects = map[string]dialect{
	config.StorePostgres: {driver: "postgres", goose: "postgres", dir: "migrations/postgres"},
	config.StoreSQLite:   {driver: "sqlite3", goose: "sqlite3", dir: "migrations/sqlite"},
}

// Open connects to the configured SQL store and applies pending migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db, cfg.Driver); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Connect opens the database and pings it, retrying a few times in case of
// temporary DNS or network blips.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	d, ok := dialects[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}

	dsn := cfg.PostgresDSN()
	if cfg.Driver == config.StoreSQLite {
		dsn = cfg.SQLitePath + "?_busy_timeout=5000"
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		logger.Sugar.Errorf("Failed to open database connection: %v", err)
		return nil, err
	}
	if cfg.Driver == config.StoreSQLite {
		// one connection keeps an in-memory database alive and serializes writers
		db.SetMaxOpenConns(1)
	}

	for i := 0; i < pingAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			logger.Sugar.Infof("Successfully connected to the %s database", cfg.Driver)
			return db, nil
		}
		logger.Sugar.Infof("Database connection failed, retrying in %s... (%v)", pingInterval, err)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(pingInterval):
		}
	}
	db.Close()
	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", pingAttempts, err)
}

// Migrate applies the embedded migrations for driver.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	d, ok := dialects[driver]
	if !ok {
		return fmt.Errorf("unsupported store driver %q", driver)
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(d.goose); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, d.dir); err != nil {
		logger.Sugar.Errorf("Failed to apply %s migrations: %v", driver, err)
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
