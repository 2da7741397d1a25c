package wfc

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSize    = errors.New("wfc: invalid grid size")
	ErrNoTiles        = errors.New("wfc: tile universe is empty")
	ErrDuplicateTile  = errors.New("wfc: duplicate tile in universe")
	ErrEmptyTileName  = errors.New("wfc: tile name is empty")
	ErrMissingRule    = errors.New("wfc: adjacency table has no entry for tile")
	ErrInvalidWeight  = errors.New("wfc: tile weight must be positive and finite")
	ErrNilRandom      = errors.New("wfc: random source is nil")
	ErrContradiction  = errors.New("wfc: contradiction - no valid tiles for cell")
	ErrMaxIterations  = errors.New("wfc: exceeded maximum iterations")
	ErrNoSolution     = errors.New("wfc: failed to find valid solution")
	ErrIncomplete     = errors.New("wfc: grid is not fully collapsed")
	ErrInconsistent   = errors.New("wfc: adjacent tiles violate adjacency table")
	ErrNotRectangular = errors.New("wfc: map rows have different lengths")
)

// ConflictError reports a cell whose domain became empty during propagation.
// Row/Col is the emptied cell; SourceRow/SourceCol is the cell being propagated
// from, and Direction points from the source towards the emptied cell.
type ConflictError struct {
	Row, Col             int
	SourceRow, SourceCol int
	Direction            Direction

	// SourceTiles were still possible in the source cell.
	SourceTiles []TileKind
	// NeighborBefore is the emptied cell's domain just before the intersection.
	NeighborBefore []TileKind
	// Allowed is the union of what SourceTiles accept in Direction.
	Allowed []TileKind
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("wfc: conflict at cell (%d,%d): nothing in %v fits %s of (%d,%d) holding %v",
		e.Row, e.Col, e.NeighborBefore, e.Direction, e.SourceRow, e.SourceCol, e.SourceTiles)
}

// Unwrap lets errors.Is(err, ErrContradiction) match.
func (e *ConflictError) Unwrap() error {
	return ErrContradiction
}
