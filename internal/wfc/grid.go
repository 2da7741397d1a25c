package wfc

import (
	"fmt"
	"math"
)

// Random is the source of randomness for weighted collapse.
// *rand.Rand satisfies it.
type Random interface {
	Float64() float64
}

// Grid is the constraint grid for one generation run.
//
// Every cell starts with the full tile universe as its domain. Domains only
// ever shrink. A Grid is not safe for concurrent use and is not reusable once
// it has failed.
type Grid struct {
	width, height int
	rules         *ruleIndex
	rnd           Random

	// domains is the arena of per-cell bitsets, row-major, rules.words each.
	domains []uint64
	// sizes caches the popcount of each cell's domain.
	sizes []int

	allowed bitset // scratch: union of compat masks
	before  bitset // scratch: neighbour domain prior to intersection
	stack   []int

	steps int
	err   error
}

// NewGrid validates its inputs and returns a grid with every domain full.
func NewGrid(width, height int, tiles []TileKind, rules AdjacencyTable, weights WeightTable, rnd Random) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if width > math.MaxInt32/height {
		return nil, fmt.Errorf("%w: %dx%d is too large", ErrInvalidSize, width, height)
	}
	if rnd == nil {
		return nil, ErrNilRandom
	}

	idx, err := compileRules(tiles, rules, weights)
	if err != nil {
		return nil, err
	}

	cells := width * height
	g := &Grid{
		width:   width,
		height:  height,
		rules:   idx,
		rnd:     rnd,
		domains: make([]uint64, cells*idx.words),
		sizes:   make([]int, cells),
		allowed: make(bitset, idx.words),
		before:  make(bitset, idx.words),
		stack:   make([]int, 0, 64),
	}

	for i := 0; i < cells; i++ {
		g.cell(i).fill(len(idx.kinds))
		g.sizes[i] = len(idx.kinds)
	}

	return g, nil
}

// NewGrid builds a grid over this tile set.
func (ts *TileSet) NewGrid(width, height int, rnd Random) (*Grid, error) {
	return NewGrid(width, height, ts.Tiles, ts.Rules, ts.Weights, rnd)
}

// Width returns the number of columns
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows
func (g *Grid) Height() int { return g.height }

// Steps returns how many cells have been collapsed by choice so far.
func (g *Grid) Steps() int { return g.steps }

// Err returns the conflict that stopped the run, if any.
func (g *Grid) Err() error { return g.err }

// Entropy returns the domain size of a cell. Like slice indexing, it panics
// if row or col is out of range.
func (g *Grid) Entropy(row, col int) int {
	return g.sizes[g.index(row, col)]
}

// Domain returns the tiles still possible at a cell, in universe order.
// It panics if row or col is out of range.
func (g *Grid) Domain(row, col int) []TileKind {
	return g.rules.kindsOf(g.cell(g.index(row, col)))
}

// Decided reports whether every cell holds exactly one tile.
func (g *Grid) Decided() bool {
	if g.err != nil {
		return false
	}
	for _, n := range g.sizes {
		if n != 1 {
			return false
		}
	}
	return true
}

// Run collapses the grid until every cell is decided or a conflict occurs.
func (g *Grid) Run() ([][]TileKind, error) {
	for {
		done, err := g.Step()
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}
	return g.Tiles()
}

// Step performs one select-collapse-propagate cycle.
// It returns done=true once no undecided cell remains.
func (g *Grid) Step() (bool, error) {
	if g.err != nil {
		return false, g.err
	}

	i := g.lowestEntropyCell()
	if i < 0 {
		return true, nil
	}

	g.steps++
	g.collapse(i)

	if err := g.propagate(i); err != nil {
		g.err = err
		return false, err
	}
	return false, nil
}

// Tiles returns the decided map, row-major.
func (g *Grid) Tiles() ([][]TileKind, error) {
	if g.err != nil {
		return nil, g.err
	}
	out := make([][]TileKind, g.height)
	for r := 0; r < g.height; r++ {
		out[r] = make([]TileKind, g.width)
		for c := 0; c < g.width; c++ {
			i := r*g.width + c
			if g.sizes[i] != 1 {
				return nil, fmt.Errorf("%w: cell (%d,%d) has %d candidates", ErrIncomplete, r, c, g.sizes[i])
			}
			out[r][c] = g.rules.kinds[g.cell(i).next(0)]
		}
	}
	return out, nil
}

// index maps row, col to a cell index. A column past the edge would alias
// the next row, so both coordinates are checked.
func (g *Grid) index(row, col int) int {
	if row < 0 || row >= g.height || col < 0 || col >= g.width {
		panic(fmt.Sprintf("wfc: cell (%d,%d) outside %dx%d grid", row, col, g.width, g.height))
	}
	return row*g.width + col
}

// cell returns the domain window for flat index i
func (g *Grid) cell(i int) bitset {
	w := g.rules.words
	return bitset(g.domains[i*w : (i+1)*w : (i+1)*w])
}

// lowestEntropyCell scans row-major and returns the first undecided cell
// with the smallest domain, or -1 when all cells are decided.
func (g *Grid) lowestEntropyCell() int {
	best := -1
	bestSize := math.MaxInt
	for i, n := range g.sizes {
		if n > 1 && n < bestSize {
			best = i
			bestSize = n
		}
	}
	return best
}

// collapse reduces cell i to one tile drawn in proportion to tile weights.
func (g *Grid) collapse(i int) int {
	dom := g.cell(i)
	weights := g.rules.weights

	total := 0.0
	for t := dom.next(0); t >= 0; t = dom.next(t + 1) {
		total += weights[t]
	}

	draw := g.rnd.Float64() * total
	chosen, acc := -1, 0.0
	for t := dom.next(0); t >= 0; t = dom.next(t + 1) {
		acc += weights[t]
		chosen = t
		if acc >= draw {
			break
		}
	}

	dom.clear()
	dom.set(chosen)
	g.sizes[i] = 1
	return chosen
}

// propagate narrows neighbour domains outward from cell start until nothing
// else shrinks.
func (g *Grid) propagate(start int) error {
	g.stack = append(g.stack[:0], start)

	for len(g.stack) > 0 {
		i := g.stack[len(g.stack)-1]
		g.stack = g.stack[:len(g.stack)-1]

		r, c := i/g.width, i%g.width
		src := g.cell(i)

		for _, d := range AllDirections() {
			dr, dc := d.Offset()
			nr, nc := r+dr, c+dc
			if nr < 0 || nr >= g.height || nc < 0 || nc >= g.width {
				continue
			}
			n := nr*g.width + nc

			g.allowedFrom(src, d)
			nb := g.cell(n)
			copy(g.before, nb)
			nb.intersect(g.allowed)

			size := nb.count()
			if size == 0 {
				g.sizes[n] = 0
				return &ConflictError{
					Row:            nr,
					Col:            nc,
					SourceRow:      r,
					SourceCol:      c,
					Direction:      d,
					SourceTiles:    g.rules.kindsOf(src),
					NeighborBefore: g.rules.kindsOf(g.before),
					Allowed:        g.rules.kindsOf(g.allowed),
				}
			}
			if size < g.sizes[n] {
				g.sizes[n] = size
				g.stack = append(g.stack, n)
			}
		}
	}
	return nil
}

// allowedFrom fills g.allowed with the union of compat masks in direction d
// over every tile in src.
func (g *Grid) allowedFrom(src bitset, d Direction) {
	g.allowed.clear()
	for t := src.next(0); t >= 0; t = src.next(t + 1) {
		g.allowed.union(g.rules.compatOf(d, t))
	}
}
