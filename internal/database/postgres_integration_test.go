package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawnchairsociety/tilegen/internal/wfc"
)

// getPostgresTestConfig returns PostgreSQL config if available, nil otherwise.
// Set TILEGEN_TEST_POSTGRES to run PostgreSQL tests; the connection is read
// from these variables:
//
//	TILEGEN_TEST_POSTGRES_HOST (default: localhost)
//	TILEGEN_TEST_POSTGRES_PORT (default: 5432)
//	TILEGEN_TEST_POSTGRES_USER (default: tilegen)
//	TILEGEN_TEST_POSTGRES_PASSWORD (default: tilegen)
//	TILEGEN_TEST_POSTGRES_DATABASE (default: tilegen_test)
func getPostgresTestConfig() *Config {
	if os.Getenv("TILEGEN_TEST_POSTGRES") == "" {
		return nil
	}

	env := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}

	port, err := strconv.Atoi(env("TILEGEN_TEST_POSTGRES_PORT", "5432"))
	if err != nil {
		port = 5432
	}

	return &Config{
		Driver: "postgres",
		Postgres: PostgresConfig{
			Host:            env("TILEGEN_TEST_POSTGRES_HOST", "localhost"),
			Port:            port,
			User:            env("TILEGEN_TEST_POSTGRES_USER", "tilegen"),
			Password:        env("TILEGEN_TEST_POSTGRES_PASSWORD", "tilegen"),
			Database:        env("TILEGEN_TEST_POSTGRES_DATABASE", "tilegen_test"),
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 1 * time.Minute,
		},
	}
}

// getTestDatabases returns a SQLite database and, when configured, a
// PostgreSQL one with empty tables.
func getTestDatabases(t *testing.T) map[string]*Database {
	dbs := make(map[string]*Database)

	sqliteDB, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "failed to open SQLite database")
	dbs["sqlite"] = sqliteDB

	if cfg := getPostgresTestConfig(); cfg != nil {
		pgDB, err := OpenWithConfig(*cfg)
		require.NoError(t, err, "failed to open PostgreSQL database")
		for _, table := range []string{"maps", "conflicts"} {
			_, err := pgDB.db.Exec(fmt.Sprintf("DELETE FROM %s", table))
			require.NoError(t, err, "failed to clean %s", table)
		}
		dbs["postgres"] = pgDB
	}

	t.Cleanup(func() {
		for _, db := range dbs {
			db.Close()
		}
	})
	return dbs
}

func TestDialects_SaveMapDeduplicates(t *testing.T) {
	for name, db := range getTestDatabases(t) {
		t.Run(name, func(t *testing.T) {
			id1, created1, err := db.SaveMap(testMap(1, sampleTiles))
			require.NoError(t, err)
			id2, created2, err := db.SaveMap(testMap(2, sampleTiles))
			require.NoError(t, err)
			assert.True(t, created1)
			assert.False(t, created2)
			assert.Equal(t, id1, id2)

			rec, err := db.GetMap(id1)
			require.NoError(t, err)
			assert.Equal(t, int64(1), rec.Seed, "the first request's seed is kept")
		})
	}
}

func TestDialects_ConflictStats(t *testing.T) {
	for name, db := range getTestDatabases(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				_, err := db.RecordConflict(wfc.ConflictReport{
					Ruleset: "pair",
					Attempt: i,
					Seed:    wfc.AttemptSeed(7, i),
					Conflict: &wfc.ConflictError{
						Row: 0, Col: 1, SourceRow: 0, SourceCol: 0,
						Direction: wfc.Right,
						Allowed:   []wfc.TileKind{"Y"},
					},
				})
				require.NoError(t, err)
			}

			stats, err := db.ConflictStats("pair")
			require.NoError(t, err)
			require.Len(t, stats, 1)
			assert.Equal(t, 3, stats[0].Count)

			recent, err := db.RecentConflicts("pair", 2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, 2, recent[0].Attempt, "newest first")
			assert.Equal(t, []wfc.TileKind{"Y"}, recent[0].Allowed)
		})
	}
}

func TestDialects_ConcurrentSaves(t *testing.T) {
	for name, db := range getTestDatabases(t) {
		t.Run(name, func(t *testing.T) {
			const workers = 8

			var wg sync.WaitGroup
			errs := make(chan error, workers*2)

			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(worker int) {
					defer wg.Done()
					// Every worker saves the shared map and one of its own
					if _, _, err := db.SaveMap(testMap(int64(worker), sampleTiles)); err != nil {
						errs <- fmt.Errorf("worker %d shared: %w", worker, err)
					}
					own := [][]wfc.TileKind{{wfc.TileKind(fmt.Sprintf("tile_%d", worker))}}
					if _, _, err := db.SaveMap(testMap(int64(worker), own)); err != nil {
						errs <- fmt.Errorf("worker %d own: %w", worker, err)
					}
				}(i)
			}

			wg.Wait()
			close(errs)
			for err := range errs {
				t.Error(err)
			}

			maps, err := db.ListMaps(100)
			require.NoError(t, err)
			assert.Len(t, maps, workers+1)
		})
	}
}
