// Package migrate bootstraps the relational schema using a versioned migration table.
// Migration files live under sql/<dialect>/ and are named with a 4-digit prefix for
// order: 0001_name.sql, 0002_other.sql. Statements inside a file are separated by a
// semicolon at the end of a line. Every statement must be idempotent
// (CREATE ... IF NOT EXISTS) so a half-applied file can be re-run safely.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
)

//go:embed sql/*/*.sql
var sqlFS embed.FS

const (
	migrationsDir = "sql"
	tableName     = "schema_migrations"
)

var (
	migrationFileRe  = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)
	statementSplitRe = regexp.MustCompile(`;[ \t]*(\r?\n|$)`)
)

var migrationsTableDDL = map[string]string{
	"sqlite3": `
		CREATE TABLE IF NOT EXISTS ` + tableName + ` (
			version    TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)`,
	"mysql": `
		CREATE TABLE IF NOT EXISTS ` + tableName + ` (
			version    VARCHAR(16)  NOT NULL PRIMARY KEY,
			name       VARCHAR(255) NOT NULL,
			applied_at VARCHAR(40)  NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

type migration struct {
	version string
	name    string
	body    string
}

// Run ensures the schema_migrations table exists, then applies any embedded
// migrations for dialect that have not yet been run, in order by version.
func Run(ctx context.Context, db *sql.DB, dialect string) error {
	if err := ensureMigrationsTable(ctx, db, dialect); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}

	pending, err := pendingMigrations(sqlFS, dialect, applied)
	if err != nil {
		return err
	}

	for _, m := range pending {
		if err := apply(ctx, db, m); err != nil {
			return fmt.Errorf("apply %s: %w", m.version+"_"+m.name+".sql", err)
		}
		slog.Info("migration applied", "dialect", dialect, "version", m.version, "name", m.name)
	}
	if len(pending) == 0 {
		slog.Debug("schema up to date", "dialect", dialect)
	}

	return nil
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB, dialect string) error {
	ddl, ok := migrationsTableDDL[dialect]
	if !ok {
		return fmt.Errorf("unsupported dialect %q", dialect)
	}
	_, err := db.ExecContext(ctx, ddl)
	return err
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM "+tableName)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close migration rows", "error", err)
		}
	}()
	out := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

func pendingMigrations(fsys fs.FS, dialect string, applied map[string]bool) ([]migration, error) {
	dir := migrationsDir + "/" + dialect
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}

	var pending []migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, name, ok := parseMigrationFilename(e.Name())
		if !ok || applied[version] {
			continue
		}
		body, err := fs.ReadFile(fsys, dir+"/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		pending = append(pending, migration{version: version, name: name, body: string(body)})
	}

	sort.Slice(pending, func(i, j int) bool { return pending[i].version < pending[j].version })
	return pending, nil
}

func parseMigrationFilename(filename string) (version, name string, ok bool) {
	m := migrationFileRe.FindStringSubmatch(filename)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

func splitStatements(body string) []string {
	var out []string
	for _, s := range statementSplitRe.Split(body, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// apply runs statements one by one: MySQL commits DDL implicitly, so wrapping
// them in a transaction would not make the file atomic anyway.
func apply(ctx context.Context, db *sql.DB, m migration) error {
	for _, stmt := range splitStatements(m.body) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	_, err := db.ExecContext(ctx,
		"INSERT INTO "+tableName+" (version, name, applied_at) VALUES (?, ?, ?)",
		m.version, m.name, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}
