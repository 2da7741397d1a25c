package wfc

import (
	"fmt"
	"math"
)

// TileSet bundles the tile universe with its adjacency and weight tables.
// The order of Tiles fixes the iteration order used by weighted collapse.
type TileSet struct {
	Name    string
	Tiles   []TileKind
	Rules   AdjacencyTable
	Weights WeightTable
}

// Validate checks the preconditions NewGrid enforces, without building a grid.
func (ts *TileSet) Validate() error {
	_, err := compileRules(ts.Tiles, ts.Rules, ts.Weights)
	return err
}

// ruleIndex is the compiled, integer-coded form of a TileSet.
type ruleIndex struct {
	kinds   []TileKind
	codes   map[TileKind]int
	words   int
	weights []float64

	// compat[d] holds one bitset window per tile code: the codes allowed in
	// direction d of that tile.
	compat [4][]uint64
}

// compileRules assigns each tile a code and precomputes compat masks.
// References to tiles outside the universe are dropped: they can never be in
// a domain anyway.
func compileRules(tiles []TileKind, rules AdjacencyTable, weights WeightTable) (*ruleIndex, error) {
	if len(tiles) == 0 {
		return nil, ErrNoTiles
	}

	idx := &ruleIndex{
		kinds:   make([]TileKind, len(tiles)),
		codes:   make(map[TileKind]int, len(tiles)),
		words:   wordsFor(len(tiles)),
		weights: make([]float64, len(tiles)),
	}

	for i, k := range tiles {
		if k == "" {
			return nil, fmt.Errorf("%w: tile %d", ErrEmptyTileName, i)
		}
		if _, dup := idx.codes[k]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTile, k)
		}
		idx.codes[k] = i
		idx.kinds[i] = k

		w := weights.Weight(k)
		if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: %q has weight %v", ErrInvalidWeight, k, w)
		}
		idx.weights[i] = w
	}

	for _, d := range AllDirections() {
		idx.compat[d] = make([]uint64, len(tiles)*idx.words)
	}

	for i, k := range tiles {
		sides, ok := rules[k]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingRule, k)
		}
		for _, d := range AllDirections() {
			mask := idx.compatOf(d, i)
			for _, other := range sides.Allowed(d) {
				if code, known := idx.codes[other]; known {
					mask.set(code)
				}
			}
		}
	}

	return idx, nil
}

// compatOf returns the codes allowed in direction d of tile code t
func (idx *ruleIndex) compatOf(d Direction, t int) bitset {
	return bitset(idx.compat[d][t*idx.words : (t+1)*idx.words : (t+1)*idx.words])
}

// kindsOf decodes a bitset back into tile names, in code order
func (idx *ruleIndex) kindsOf(b bitset) []TileKind {
	out := make([]TileKind, 0, b.count())
	for t := b.next(0); t >= 0; t = b.next(t + 1) {
		out = append(out, idx.kinds[t])
	}
	return out
}

// Verify checks that a finished map is locally consistent: every in-bounds
// neighbour of every cell is allowed by the adjacency table.
func Verify(tiles [][]TileKind, rules AdjacencyTable) error {
	if len(tiles) == 0 || len(tiles[0]) == 0 {
		return ErrInvalidSize
	}
	width := len(tiles[0])
	for r, row := range tiles {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrNotRectangular, r, len(row), width)
		}
	}

	height := len(tiles)
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			for _, d := range AllDirections() {
				dr, dc := d.Offset()
				nr, nc := r+dr, c+dc
				if nr < 0 || nr >= height || nc < 0 || nc >= width {
					continue
				}
				if !rules.Allows(tiles[r][c], d, tiles[nr][nc]) {
					return fmt.Errorf("%w: %q at (%d,%d) does not allow %q to its %s",
						ErrInconsistent, tiles[r][c], r, c, tiles[nr][nc], d)
				}
			}
		}
	}
	return nil
}
