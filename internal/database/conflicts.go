package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lawnchairsociety/tilegen/internal/wfc"
)

// ConflictStat counts failed attempts that ended at one cell and direction.
type ConflictStat struct {
	Row       int
	Col       int
	Direction string
	Count     int
}

// ConflictRecord is one stored conflict with its full diagnostic.
type ConflictRecord struct {
	ID                   int64
	Ruleset              string
	Seed                 int64
	Attempt              int
	Row, Col             int
	SourceRow, SourceCol int
	Direction            string
	SourceTiles          []wfc.TileKind
	NeighborBefore       []wfc.TileKind
	Allowed              []wfc.TileKind
	CreatedAt            time.Time
}

// RecordConflict stores the diagnostic of one failed generation attempt.
func (d *Database) RecordConflict(report wfc.ConflictReport) (int64, error) {
	c := report.Conflict
	if c == nil {
		return 0, fmt.Errorf("conflict report for %s attempt %d has no conflict", report.Ruleset, report.Attempt)
	}

	id, err := d.insert(`
		INSERT INTO conflicts (ruleset, seed, attempt, cell_row, cell_col, direction,
			source_row, source_col, source_tiles, neighbor_before, allowed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.Ruleset, report.Seed, report.Attempt, c.Row, c.Col, c.Direction.String(),
		c.SourceRow, c.SourceCol, joinKinds(c.SourceTiles), joinKinds(c.NeighborBefore),
		joinKinds(c.Allowed))
	if err != nil {
		return 0, fmt.Errorf("failed to insert conflict: %w", err)
	}
	return id, nil
}

// ConflictStats groups a ruleset's recorded conflicts by cell and direction,
// most frequent first. Conflicts piling up at one spot point at the
// adjacency table; conflicts spread evenly are usually bad luck.
func (d *Database) ConflictStats(ruleset string) ([]ConflictStat, error) {
	rows, err := d.db.Query(d.qb.Build(`
		SELECT cell_row, cell_col, direction, COUNT(*) AS n
		FROM conflicts
		WHERE ruleset = ?
		GROUP BY cell_row, cell_col, direction
		ORDER BY n DESC, cell_row, cell_col, direction`),
		ruleset)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer rows.Close()

	var stats []ConflictStat
	for rows.Next() {
		var s ConflictStat
		if err := rows.Scan(&s.Row, &s.Col, &s.Direction, &s.Count); err != nil {
			return nil, fmt.Errorf("failed to scan conflict stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// RecentConflicts returns a ruleset's latest conflicts, newest first.
func (d *Database) RecentConflicts(ruleset string, limit int) ([]ConflictRecord, error) {
	rows, err := d.db.Query(d.qb.Build(`
		SELECT id, ruleset, seed, attempt, cell_row, cell_col, direction,
			source_row, source_col, source_tiles, neighbor_before, allowed, created_at
		FROM conflicts
		WHERE ruleset = ?
		ORDER BY id DESC
		LIMIT ?`),
		ruleset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer rows.Close()

	var records []ConflictRecord
	for rows.Next() {
		var (
			r                         ConflictRecord
			source, neighbor, allowed string
			createdAt                 sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Ruleset, &r.Seed, &r.Attempt, &r.Row, &r.Col, &r.Direction,
			&r.SourceRow, &r.SourceCol, &source, &neighbor, &allowed, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		r.SourceTiles = splitKinds(source)
		r.NeighborBefore = splitKinds(neighbor)
		r.Allowed = splitKinds(allowed)
		if createdAt.Valid {
			r.CreatedAt = createdAt.Time
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountConflicts returns how many conflicts are recorded for a ruleset.
func (d *Database) CountConflicts(ruleset string) (int, error) {
	var n int
	err := d.db.QueryRow(d.qb.Build("SELECT COUNT(*) FROM conflicts WHERE ruleset = ?"), ruleset).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count conflicts: %w", err)
	}
	return n, nil
}

func joinKinds(kinds []wfc.TileKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, " ")
}

func splitKinds(s string) []wfc.TileKind {
	fields := strings.Fields(s)
	kinds := make([]wfc.TileKind, len(fields))
	for i, f := range fields {
		kinds[i] = wfc.TileKind(f)
	}
	return kinds
}
