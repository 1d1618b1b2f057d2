package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	sqlite3 "github.com/mattn/go-sqlite3"

	"sensorhub-server/internal/config"
)

const pingTimeout = 5 * time.Second

var databaseNameRe = regexp.MustCompile(`^[A-Za-z0-9_$]+$`)

// Open returns the process-wide connection pool. The caller owns it and must Close it on shutdown.
func Open(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if cfg.LogQueries {
		connector, err := NewLoggingConnector(driverFor(cfg.Driver), dsn, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("db connector: %w", err)
		}
		db = sql.OpenDB(connector)
	} else {
		db, err = sql.Open(cfg.Driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}

	if isMemorySQLite(cfg) {
		// Every SQLite connection to :memory: opens its own empty database, and closing the
		// last one discards it. Pin the pool to a single connection that never expires.
		if cfg.MaxOpenConns != 1 {
			slog.Warn("in-memory sqlite: limiting pool to one connection", "dbMaxOpenConns", cfg.MaxOpenConns)
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns >= 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	// Validate connectivity early
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// EnsureDatabase creates the target MySQL database when it does not exist yet.
// It is a no-op for SQLite, whose file is created on first open.
func EnsureDatabase(ctx context.Context, cfg config.DBConfig) error {
	if cfg.Driver != config.DriverMySQL {
		return nil
	}

	dsn, err := BuildDSN(cfg)
	if err != nil {
		return err
	}
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return fmt.Errorf("parse mysql dsn: %w", err)
	}
	name := mc.DBName
	if name == "" {
		return nil
	}
	if !databaseNameRe.MatchString(name) {
		return fmt.Errorf("refusing to create database with name %q", name)
	}
	mc.DBName = ""

	server, err := sql.Open(config.DriverMySQL, mc.FormatDSN())
	if err != nil {
		return fmt.Errorf("db open server: %w", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			slog.Error("close bootstrap connection", "error", err)
		}
	}()

	if _, err := server.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS `"+name+"`"); err != nil {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	slog.Info("database created/verified", "database", name)
	return nil
}

// BuildDSN turns the DB config into a driver-specific data source name.
func BuildDSN(cfg config.DBConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	switch cfg.Driver {
	case config.DriverSQLite:
		return buildSQLiteDSN(cfg.Path)
	case config.DriverMySQL:
		return buildMySQLDSN(cfg), nil
	default:
		return "", fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
}

// isMemorySQLite reports whether cfg points at a private in-memory SQLite database.
func isMemorySQLite(cfg config.DBConfig) bool {
	if cfg.Driver != config.DriverSQLite {
		return false
	}
	target := cfg.DSN
	if target == "" {
		target = cfg.Path
	}
	if strings.Contains(target, "cache=shared") {
		return false
	}
	return target == ":memory:" ||
		strings.HasPrefix(target, "file::memory:") ||
		strings.Contains(target, "mode=memory")
}

func buildSQLiteDSN(path string) (string, error) {
	// Ensure directory exists for file-backed sqlite db
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	// - busy_timeout: helps with "database is locked" when the pool has several writers
	// - journal_mode=WAL: readers do not block the writer
	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

func buildMySQLDSN(cfg config.DBConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"time_zone": "'+00:00'"}
	return mc.FormatDSN()
}

func driverFor(name string) driver.Driver {
	if name == config.DriverMySQL {
		return &mysql.MySQLDriver{}
	}
	return &sqlite3.SQLiteDriver{}
}
