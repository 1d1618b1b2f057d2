package db

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"

	"sensorhub-server/internal/config"
	"sensorhub-server/internal/migrate"
)

func TestBuildDSN_explicitDSNWins(t *testing.T) {
	cfg := config.DBConfig{Driver: config.DriverMySQL, DSN: "u:p@tcp(h:1)/x", Host: "ignored"}
	got, err := BuildDSN(cfg)
	if err != nil {
		t.Fatalf("BuildDSN: %v", err)
	}
	if got != "u:p@tcp(h:1)/x" {
		t.Errorf("BuildDSN = %q; want explicit DSN", got)
	}
}

func TestBuildDSN_sqlite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "weather.db")

	got, err := BuildDSN(config.DBConfig{Driver: config.DriverSQLite, Path: path})
	if err != nil {
		t.Fatalf("BuildDSN: %v", err)
	}
	if !strings.HasPrefix(got, "file:"+path+"?") {
		t.Errorf("BuildDSN = %q; want file: prefix with path", got)
	}
	for _, p := range []string{"_busy_timeout=5000", "_journal_mode=WAL"} {
		if !strings.Contains(got, p) {
			t.Errorf("BuildDSN = %q; missing %s", got, p)
		}
	}

	t.Run("file: prefix with query is extended", func(t *testing.T) {
		got, err := BuildDSN(config.DBConfig{Driver: config.DriverSQLite, Path: "file:x.db?mode=rwc"})
		if err != nil {
			t.Fatalf("BuildDSN: %v", err)
		}
		if !strings.HasPrefix(got, "file:x.db?mode=rwc&") {
			t.Errorf("BuildDSN = %q; want params appended with &", got)
		}
	})
}

func TestBuildDSN_mysql(t *testing.T) {
	cfg := config.DBConfig{
		Driver:   config.DriverMySQL,
		Host:     "db.local",
		Port:     3307,
		User:     "weather",
		Password: "p@ss",
		Name:     "esp32_weather",
	}
	dsn, err := BuildDSN(cfg)
	if err != nil {
		t.Fatalf("BuildDSN: %v", err)
	}
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("ParseDSN(%q): %v", dsn, err)
	}
	if mc.Addr != "db.local:3307" || mc.User != "weather" || mc.Passwd != "p@ss" || mc.DBName != "esp32_weather" {
		t.Errorf("parsed config = %+v; want fields from DBConfig", mc)
	}
	if !mc.ParseTime {
		t.Error("ParseTime = false; want true")
	}
}

func TestBuildDSN_unknownDriver(t *testing.T) {
	if _, err := BuildDSN(config.DBConfig{Driver: "oracle"}); err == nil {
		t.Fatal("BuildDSN(oracle) error = nil; want error")
	}
}

func TestOpen_sqliteFile(t *testing.T) {
	cfg := config.DBConfig{
		Driver:       config.DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "app.db"),
		MaxOpenConns: 10,
		MaxIdleConns: 2,
	}
	conn, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() {
		if err := Close(conn); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	if got := conn.Stats().MaxOpenConnections; got != 10 {
		t.Errorf("MaxOpenConnections = %d; want 10", got)
	}
}

func TestOpen_withQueryLogging(t *testing.T) {
	cfg := config.DBConfig{
		Driver:     config.DriverSQLite,
		Path:       filepath.Join(t.TempDir(), "logged.db"),
		LogQueries: true,
	}
	conn, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = Close(conn) }()

	var one int
	if err := conn.QueryRow(`SELECT 1`).Scan(&one); err != nil || one != 1 {
		t.Fatalf("SELECT 1 = %d, %v", one, err)
	}
}

func TestClose_nil(t *testing.T) {
	if err := Close(nil); err != nil {
		t.Fatalf("Close(nil) = %v; want nil", err)
	}
}

func TestEnsureDatabase_sqliteNoop(t *testing.T) {
	if err := EnsureDatabase(context.Background(), config.DBConfig{Driver: config.DriverSQLite}); err != nil {
		t.Fatalf("EnsureDatabase(sqlite) = %v; want nil", err)
	}
}

func TestEnsureDatabase_rejectsUnsafeName(t *testing.T) {
	cfg := config.DBConfig{Driver: config.DriverMySQL, Host: "127.0.0.1", Port: 1, User: "root", Name: "x`; DROP"}
	err := EnsureDatabase(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "refusing") {
		t.Fatalf("EnsureDatabase = %v; want refusing error", err)
	}
}

func TestOpen_sqliteMemorySharesOneDatabase(t *testing.T) {
	ctx := context.Background()
	cfg := config.DBConfig{
		Driver:          config.DriverSQLite,
		Path:            ":memory:",
		MaxOpenConns:    10,
		MaxIdleConns:    0,
		ConnMaxLifetime: time.Millisecond,
	}
	conn, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = Close(conn) }()

	if got := conn.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d; want 1", got)
	}
	if err := migrate.Run(ctx, conn, config.DriverSQLite); err != nil {
		t.Fatalf("migrate.Run: %v", err)
	}

	// Each checkout must see the migrated schema, also after the configured lifetime elapsed.
	for i := range 3 {
		c, err := conn.Conn(ctx)
		if err != nil {
			t.Fatalf("Conn #%d: %v", i, err)
		}
		var n int
		err = c.QueryRowContext(ctx, `SELECT COUNT(*) FROM weather_readings`).Scan(&n)
		_ = c.Close()
		if err != nil {
			t.Fatalf("count on conn #%d: %v", i, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var n int
			if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM weather_readings`).Scan(&n); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent count: %v", err)
	}
}

func TestIsMemorySQLite(t *testing.T) {
	tests := []struct {
		cfg  config.DBConfig
		want bool
	}{
		{cfg: config.DBConfig{Driver: config.DriverSQLite, Path: ":memory:"}, want: true},
		{cfg: config.DBConfig{Driver: config.DriverSQLite, Path: "file::memory:"}, want: true},
		{cfg: config.DBConfig{Driver: config.DriverSQLite, DSN: "file:x?mode=memory"}, want: true},
		{cfg: config.DBConfig{Driver: config.DriverSQLite, DSN: "file:x?mode=memory&cache=shared"}, want: false},
		{cfg: config.DBConfig{Driver: config.DriverSQLite, Path: "data/weather.db"}, want: false},
		{cfg: config.DBConfig{Driver: config.DriverMySQL, Path: ":memory:"}, want: false},
	}
	for _, tt := range tests {
		if got := isMemorySQLite(tt.cfg); got != tt.want {
			t.Errorf("isMemorySQLite(%+v) = %v; want %v", tt.cfg, got, tt.want)
		}
	}
}
