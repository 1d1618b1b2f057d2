package migrate

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func TestRun_createsSchemaAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	require.NoError(t, Run(ctx, db, "sqlite3"))

	_, err := db.Exec(`INSERT INTO weather_readings (temperature, humidity, light_value, timestamp) VALUES (20.5, 50, 300, '2025-01-01T00:00:00.000000Z')`)
	require.NoError(t, err)

	// A second run must neither fail nor drop the row.
	require.NoError(t, Run(ctx, db, "sqlite3"))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM weather_readings`).Scan(&n))
	require.Equal(t, 1, n)

	applied, err := appliedVersions(ctx, db)
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"0001": true}, applied)
}

func TestRun_createsTimestampIndex(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, Run(context.Background(), db, "sqlite3"))

	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_weather_readings_timestamp'`).Scan(&name)
	require.NoError(t, err)
}

func TestRun_unknownDialect(t *testing.T) {
	db := openMemory(t)
	err := Run(context.Background(), db, "postgres")
	require.ErrorContains(t, err, "unsupported dialect")
}

func TestEmbeddedMigrations_everyDialectHasFiles(t *testing.T) {
	for dialect := range migrationsTableDDL {
		pending, err := pendingMigrations(sqlFS, dialect, map[string]bool{})
		require.NoError(t, err, dialect)
		require.NotEmpty(t, pending, dialect)
		for _, m := range pending {
			require.NotEmpty(t, splitStatements(m.body), "%s/%s", dialect, m.name)
		}
	}
}

func TestPendingMigrations_orderAndSkip(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/sqlite3/0002_second.sql": {Data: []byte("SELECT 2;")},
		"sql/sqlite3/0001_first.sql":  {Data: []byte("SELECT 1;")},
		"sql/sqlite3/0003_third.sql":  {Data: []byte("SELECT 3;")},
		"sql/sqlite3/README.md":       {Data: []byte("not a migration")},
	}

	pending, err := pendingMigrations(fsys, "sqlite3", map[string]bool{"0002": true})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "0001", pending[0].version)
	require.Equal(t, "0003", pending[1].version)
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		in      string
		version string
		name    string
		ok      bool
	}{
		{in: "0001_weather_readings.sql", version: "0001", name: "weather_readings", ok: true},
		{in: "12_short.sql", ok: false},
		{in: "0001_missing_ext", ok: false},
	}
	for _, tt := range tests {
		v, n, ok := parseMigrationFilename(tt.in)
		require.Equal(t, tt.ok, ok, tt.in)
		require.Equal(t, tt.version, v, tt.in)
		require.Equal(t, tt.name, n, tt.in)
	}
}

func TestSplitStatements(t *testing.T) {
	body := "CREATE TABLE a (x INT);\n\nCREATE INDEX i ON a(x);   \r\nSELECT 'a;b'"
	got := splitStatements(body)
	require.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a(x)", "SELECT 'a;b'"}, got)
}
