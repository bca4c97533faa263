package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"careportal/internal/config"
)

// DB is a connection pool together with the SQL dialect of its driver.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open initializes the database connection for cfg.DBDriver and verifies it.
func Open(ctx context.Context, cfg config.Config) (*DB, error) {
	dialect, err := DialectFor(cfg.DBDriver)
	if err != nil {
		return nil, err
	}

	dsn, err := dataSourceName(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.DBDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == SQLite {
		// 書き込みトランザクションの競合 (database is locked) を避ける
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(16)
		db.SetConnMaxIdleTime(5 * time.Minute)
		db.SetConnMaxLifetime(time.Hour)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, Dialect: dialect}, nil
}

// OpenSQLite opens (creating if needed) a sqlite database file and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	db, err := Open(ctx, config.Config{DBDriver: "sqlite3", DBPath: path})
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func dataSourceName(cfg config.Config) (string, error) {
	switch cfg.DBDriver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBName,
		), nil
	case "sqlite3":
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create database directory: %w", err)
		}
		return "file:" + cfg.DBPath + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", nil
	case "pgx":
		return cfg.DBURL, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
}
