package database

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/lawnchairsociety/tilegen/internal/wfc"
)

// ErrMapNotFound is returned when no stored map matches a lookup.
var ErrMapNotFound = errors.New("map not found")

// MapSummary is a stored map without its tiles.
type MapSummary struct {
	ID          int64
	Fingerprint string
	Ruleset     string
	Seed        int64
	AttemptSeed int64
	Attempts    int
	Width       int
	Height      int
	CreatedAt   time.Time
}

// MapRecord is a stored map with its tiles.
type MapRecord struct {
	MapSummary
	Tiles [][]wfc.TileKind
}

// GeneratedMap converts the record back into generator output.
func (r *MapRecord) GeneratedMap() *wfc.GeneratedMap {
	return &wfc.GeneratedMap{
		Ruleset:     r.Ruleset,
		Width:       r.Width,
		Height:      r.Height,
		Seed:        r.Seed,
		AttemptSeed: r.AttemptSeed,
		Attempts:    r.Attempts,
		Tiles:       r.Tiles,
	}
}

// Fingerprint identifies a map by content: ruleset, dimensions and tiles.
// Maps that came from different seeds but look the same share a fingerprint.
func Fingerprint(ruleset string, tiles [][]wfc.TileKind) (string, error) {
	encoded, err := encodeTiles(tiles)
	if err != nil {
		return "", err
	}

	height := len(tiles)
	width := 0
	if height > 0 {
		width = len(tiles[0])
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(h, "%s\x00%dx%d\x00", ruleset, width, height)
	h.Write([]byte(encoded))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// encodeTiles stores one CSV record per row. Empty names are rejected: a
// one-column row of "" would be written as a blank line, which csv skips.
func encodeTiles(tiles [][]wfc.TileKind) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for r, row := range tiles {
		record := make([]string, len(row))
		for c, k := range row {
			if k == "" {
				return "", fmt.Errorf("failed to encode tiles: cell (%d,%d): %w", r, c, wfc.ErrEmptyTileName)
			}
			record[c] = string(k)
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("failed to encode tiles: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to encode tiles: %w", err)
	}
	return buf.String(), nil
}

func decodeTiles(data string, width, height int) ([][]wfc.TileKind, error) {
	r := csv.NewReader(strings.NewReader(data))
	r.FieldsPerRecord = width

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to decode tiles: %w", err)
	}
	if len(records) != height {
		return nil, fmt.Errorf("failed to decode tiles: %d rows, want %d", len(records), height)
	}

	tiles := make([][]wfc.TileKind, height)
	for r, record := range records {
		tiles[r] = make([]wfc.TileKind, width)
		for c, name := range record {
			tiles[r][c] = wfc.TileKind(name)
		}
	}
	return tiles, nil
}

// SaveMap stores a generated map unless an identical one is already stored.
// It returns the row id and whether a new row was created.
func (d *Database) SaveMap(m *wfc.GeneratedMap) (int64, bool, error) {
	encoded, err := encodeTiles(m.Tiles)
	if err != nil {
		return 0, false, err
	}
	fingerprint, err := Fingerprint(m.Ruleset, m.Tiles)
	if err != nil {
		return 0, false, err
	}

	id, err := d.insert(`
		INSERT INTO maps (fingerprint, ruleset, seed, attempt_seed, attempts, width, height, tiles)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		fingerprint, m.Ruleset, m.Seed, m.AttemptSeed, m.Attempts, m.Width, m.Height, encoded)
	if err == nil {
		return id, true, nil
	}
	if !d.dialect.IsDuplicateKeyError(err) {
		return 0, false, fmt.Errorf("failed to insert map: %w", err)
	}

	existing, err := d.GetMapByFingerprint(fingerprint)
	if err != nil {
		return 0, false, err
	}
	return existing.ID, false, nil
}

const mapColumns = "id, fingerprint, ruleset, seed, attempt_seed, attempts, width, height, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner, extra ...any) (MapSummary, error) {
	var s MapSummary
	var createdAt sql.NullTime
	dest := append([]any{
		&s.ID, &s.Fingerprint, &s.Ruleset, &s.Seed, &s.AttemptSeed,
		&s.Attempts, &s.Width, &s.Height, &createdAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return s, err
	}
	if createdAt.Valid {
		s.CreatedAt = createdAt.Time
	}
	return s, nil
}

// GetMap returns a stored map by id.
func (d *Database) GetMap(id int64) (*MapRecord, error) {
	return d.getMap("id = ?", id)
}

// GetMapByFingerprint returns a stored map by content fingerprint.
func (d *Database) GetMapByFingerprint(fingerprint string) (*MapRecord, error) {
	return d.getMap("fingerprint = ?", fingerprint)
}

func (d *Database) getMap(where string, arg any) (*MapRecord, error) {
	var encoded string
	row := d.db.QueryRow(d.qb.Build("SELECT "+mapColumns+", tiles FROM maps WHERE "+where), arg)

	summary, err := scanSummary(row, &encoded)
	if err == sql.ErrNoRows {
		return nil, ErrMapNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get map: %w", err)
	}

	tiles, err := decodeTiles(encoded, summary.Width, summary.Height)
	if err != nil {
		return nil, fmt.Errorf("map %d: %w", summary.ID, err)
	}

	return &MapRecord{MapSummary: summary, Tiles: tiles}, nil
}

// ListMaps returns up to limit stored maps, newest first.
func (d *Database) ListMaps(limit int) ([]MapSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	return d.listMaps("SELECT "+mapColumns+" FROM maps ORDER BY id DESC LIMIT ?", limit)
}

// FindMapsBySeed returns every stored map requested with seed, oldest first.
func (d *Database) FindMapsBySeed(seed int64) ([]MapSummary, error) {
	return d.listMaps("SELECT "+mapColumns+" FROM maps WHERE seed = ? ORDER BY id", seed)
}

func (d *Database) listMaps(query string, args ...any) ([]MapSummary, error) {
	rows, err := d.db.Query(d.qb.Build(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query maps: %w", err)
	}
	defer rows.Close()

	var maps []MapSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan map: %w", err)
		}
		maps = append(maps, s)
	}
	return maps, rows.Err()
}

// ShortFingerprint returns the first 12 hex digits, enough to tell maps apart
// in a listing.
func ShortFingerprint(fingerprint string) string {
	if len(fingerprint) <= 12 {
		return fingerprint
	}
	return fingerprint[:12]
}
