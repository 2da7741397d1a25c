// Package database persists generated maps and generation conflicts in
// SQLite or PostgreSQL.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Database wraps the SQL connection and provides persistence operations.
type Database struct {
	db      *sql.DB
	dialect Dialect
	qb      *QueryBuilder
}

// Open opens or creates the SQLite database at the given path.
func Open(path string) (*Database, error) {
	return OpenWithConfig(DefaultConfig(path))
}

// OpenWithConfig opens the database described by cfg and brings its schema
// up to date.
func OpenWithConfig(cfg Config) (*Database, error) {
	dialect := NewDialect(DialectType(cfg.Driver))

	var (
		db  *sql.DB
		err error
	)
	switch DialectType(cfg.Driver) {
	case DialectPostgres:
		db, err = openPostgres(cfg.Postgres)
	case DialectSQLite, "":
		db, err = openSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run %q: %w", stmt, err)
		}
	}

	d := &Database{
		db:      db,
		dialect: dialect,
		qb:      NewQueryBuilder(dialect),
	}

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return d, nil
}

func openSQLite(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// PRAGMAs are per connection; a single connection keeps them in force
	db.SetMaxOpenConns(1)

	return db, nil
}

func openPostgres(cfg PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL %s@%s:%d/%s: %w",
			cfg.User, cfg.Host, cfg.Port, cfg.Database, err)
	}

	return db, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// migrate creates the database schema if it doesn't exist.
func (d *Database) migrate() error {
	pk := d.dialect.AutoIncrementPrimaryKey()

	migrations := []string{
		// One row per distinct generated map
		`CREATE TABLE IF NOT EXISTS maps (
			id ` + pk + `,
			fingerprint TEXT UNIQUE NOT NULL,
			ruleset TEXT NOT NULL,
			seed BIGINT NOT NULL,
			attempt_seed BIGINT NOT NULL,
			attempts INTEGER NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			tiles TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// One row per failed attempt
		`CREATE TABLE IF NOT EXISTS conflicts (
			id ` + pk + `,
			ruleset TEXT NOT NULL,
			seed BIGINT NOT NULL,
			attempt INTEGER NOT NULL,
			cell_row INTEGER NOT NULL,
			cell_col INTEGER NOT NULL,
			direction TEXT NOT NULL,
			source_row INTEGER NOT NULL,
			source_col INTEGER NOT NULL,
			source_tiles TEXT NOT NULL,
			neighbor_before TEXT NOT NULL,
			allowed TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_maps_seed ON maps(seed)`,
		`CREATE INDEX IF NOT EXISTS idx_maps_ruleset ON maps(ruleset)`,
		`CREATE INDEX IF NOT EXISTS idx_conflicts_ruleset ON conflicts(ruleset)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	return nil
}

// insert runs an INSERT and returns the new row's id, using RETURNING where
// the dialect has no LastInsertId.
func (d *Database) insert(query string, args ...any) (int64, error) {
	if d.dialect.SupportsLastInsertID() {
		result, err := d.db.Exec(d.qb.Build(query), args...)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	}

	var id int64
	if err := d.db.QueryRow(d.qb.BuildWithReturning(query, "id"), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// DB returns the underlying sql.DB for advanced operations.
func (d *Database) DB() *sql.DB {
	return d.db
}

// Dialect returns the SQL dialect in use.
func (d *Database) Dialect() Dialect {
	return d.dialect
}
