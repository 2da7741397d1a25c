package database

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDialect(t *testing.T) {
	assert.IsType(t, &SQLiteDialect{}, NewDialect(DialectSQLite))
	assert.IsType(t, &PostgresDialect{}, NewDialect(DialectPostgres))
	// Unknown dialect should default to SQLite
	assert.IsType(t, &SQLiteDialect{}, NewDialect("unknown"))
}

func TestSQLiteDialect(t *testing.T) {
	d := &SQLiteDialect{}

	assert.Equal(t, "sqlite", d.DriverName())
	for _, pos := range []int{1, 2, 10} {
		assert.Equal(t, "?", d.Placeholder(pos), "Placeholder(%d)", pos)
	}
	assert.True(t, d.SupportsLastInsertID())
	assert.Empty(t, d.ReturningClause("id"))
	assert.Equal(t, "INTEGER PRIMARY KEY AUTOINCREMENT", d.AutoIncrementPrimaryKey())

	stmts := d.InitStatements()
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "WAL")
}

func TestSQLiteDialect_IsDuplicateKeyError(t *testing.T) {
	d := &SQLiteDialect{}
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("some random error"), false},
		{errors.New("UNIQUE constraint failed: maps.fingerprint"), true},
		{fmt.Errorf("insert: %w", errors.New("UNIQUE constraint failed: maps.fingerprint")), true},
		{errors.New("NOT NULL constraint failed: maps.tiles"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.IsDuplicateKeyError(tt.err), "IsDuplicateKeyError(%v)", tt.err)
	}
}

func TestPostgresDialect(t *testing.T) {
	d := &PostgresDialect{}

	assert.Equal(t, "postgres", d.DriverName())

	tests := []struct {
		position int
		want     string
	}{
		{1, "$1"},
		{2, "$2"},
		{10, "$10"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.Placeholder(tt.position))
	}

	assert.False(t, d.SupportsLastInsertID())
	assert.Equal(t, " RETURNING id", d.ReturningClause("id"))
	assert.Equal(t, "BIGSERIAL PRIMARY KEY", d.AutoIncrementPrimaryKey())
	assert.Empty(t, d.InitStatements())
}

func TestPostgresDialect_IsDuplicateKeyError(t *testing.T) {
	d := &PostgresDialect{}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("duplicate key value violates unique constraint"), false},
		{"unique violation", &pq.Error{Code: "23505"}, true},
		{"wrapped", fmt.Errorf("save: %w", &pq.Error{Code: "23505"}), true},
		{"foreign key", &pq.Error{Code: "23503"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.IsDuplicateKeyError(tt.err))
		})
	}
}

func TestQueryBuilder_Build(t *testing.T) {
	tests := []struct {
		dialect Dialect
		input   string
		want    string
	}{
		{&SQLiteDialect{}, "SELECT id FROM maps WHERE seed = ? AND ruleset = ?", "SELECT id FROM maps WHERE seed = ? AND ruleset = ?"},
		{&PostgresDialect{}, "SELECT id FROM maps", "SELECT id FROM maps"},
		{&PostgresDialect{}, "SELECT id FROM maps WHERE seed = ?", "SELECT id FROM maps WHERE seed = $1"},
		{&PostgresDialect{}, "SELECT id FROM maps WHERE seed = ? AND ruleset = ?", "SELECT id FROM maps WHERE seed = $1 AND ruleset = $2"},
		{&PostgresDialect{}, "SELECT '?' AS q FROM maps WHERE seed = ?", "SELECT '?' AS q FROM maps WHERE seed = $1"},
	}
	for _, tt := range tests {
		qb := NewQueryBuilder(tt.dialect)
		assert.Equal(t, tt.want, qb.Build(tt.input), "%s Build(%q)", tt.dialect.DriverName(), tt.input)
	}
}

func TestQueryBuilder_BuildWithReturning(t *testing.T) {
	query := "INSERT INTO conflicts (ruleset, seed) VALUES (?, ?)"

	assert.Equal(t, query, NewQueryBuilder(&SQLiteDialect{}).BuildWithReturning(query, "id"))
	assert.Equal(t,
		"INSERT INTO conflicts (ruleset, seed) VALUES ($1, $2) RETURNING id",
		NewQueryBuilder(&PostgresDialect{}).BuildWithReturning(query, "id"))
}

func TestDefaultConfig(t *testing.T) {
	path := "/path/to/test.db"
	cfg := DefaultConfig(path)

	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, path, cfg.SQLitePath)
	assert.Equal(t, 5432, cfg.Postgres.Port)
}

func TestDefaultPostgresConfig(t *testing.T) {
	cfg := DefaultPostgresConfig()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "db.example.com",
		Port:     5433,
		User:     "gen",
		Password: "secret",
		Database: "maps",
		SSLMode:  "require",
	}

	assert.Equal(t,
		"host=db.example.com port=5433 user=gen password=secret dbname=maps sslmode=require timezone=UTC",
		cfg.DSN())
}

func TestDialect_InterfaceCompliance(t *testing.T) {
	var _ Dialect = (*SQLiteDialect)(nil)
	var _ Dialect = (*PostgresDialect)(nil)
}
