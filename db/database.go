package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"ClipForge/config"
	"ClipForge/logger"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "modernc.org/sqlite"             // SQLite driver, pure Go
)

// Dialect 结构化缓存使用的 SQL 方言
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

// ConnectDB establishes a MySQL connection. The caller owns the handle.
func ConnectDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err = conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Successfully connected to the database.", logger.String("host", cfg.DBHost))
	return conn, nil
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite 只允许一个写连接
	conn.SetMaxOpenConns(1)
	for _, pragma := range []string{`PRAGMA journal_mode=WAL`, `PRAGMA busy_timeout=5000`} {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("configure sqlite: %w", err)
		}
	}
	return conn, nil
}

// InitSchema creates the cached_assets table if it does not exist.
func InitSchema(ctx context.Context, conn *sql.DB, dialect Dialect) error {
	var query string
	switch dialect {
	case DialectMySQL:
		query = `
		CREATE TABLE IF NOT EXISTS cached_assets (
			store VARCHAR(32) NOT NULL,
			identity VARCHAR(191) NOT NULL,
			source_name VARCHAR(255) NOT NULL,
			data LONGBLOB,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			PRIMARY KEY (store, identity)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	case DialectSQLite:
		query = `
		CREATE TABLE IF NOT EXISTS cached_assets (
			store TEXT NOT NULL,
			identity TEXT NOT NULL,
			source_name TEXT NOT NULL,
			data BLOB,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (store, identity)
		);`
	default:
		return fmt.Errorf("unsupported dialect %q", dialect)
	}

	if _, err := conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("error creating cached_assets table: %w", err)
	}
	return nil
}
