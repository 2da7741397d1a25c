package wfc

// TileKind names a tile variant, e.g. "floor_one_wall_90".
type TileKind string

// String returns the tile name
func (k TileKind) String() string {
	return string(k)
}

// Direction represents a cardinal direction in the grid
type Direction int

const (
	Top Direction = iota
	Right
	Bottom
	Left
)

// String returns the string representation of a Direction
func (d Direction) String() string {
	switch d {
	case Top:
		return "top"
	case Right:
		return "right"
	case Bottom:
		return "bottom"
	case Left:
		return "left"
	default:
		return "unknown"
	}
}

// Opposite returns the opposite direction
func (d Direction) Opposite() Direction {
	switch d {
	case Top:
		return Bottom
	case Right:
		return Left
	case Bottom:
		return Top
	case Left:
		return Right
	default:
		return d
	}
}

// Offset returns the (row, col) delta of one step in this direction.
// Rows grow downwards.
func (d Direction) Offset() (dr, dc int) {
	switch d {
	case Top:
		return -1, 0
	case Right:
		return 0, 1
	case Bottom:
		return 1, 0
	case Left:
		return 0, -1
	default:
		return 0, 0
	}
}

// ParseDirection converts a direction name back into a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "top":
		return Top, true
	case "right":
		return Right, true
	case "bottom":
		return Bottom, true
	case "left":
		return Left, true
	default:
		return 0, false
	}
}

// AllDirections returns all four cardinal directions
func AllDirections() []Direction {
	return []Direction{Top, Right, Bottom, Left}
}

// Sides lists the tiles allowed next to a tile, one set per direction.
// Indexed by Direction.
type Sides [4][]TileKind

// Allowed returns the tiles allowed in the given direction.
func (s Sides) Allowed(d Direction) []TileKind {
	if d < Top || d > Left {
		return nil
	}
	return s[d]
}

// AdjacencyTable maps every tile to the neighbours it accepts on each side.
//
// The relation is directional. If A allows B to its right, B should allow A to
// its left; the engine does not check this (see ruleset.Asymmetries).
type AdjacencyTable map[TileKind]Sides

// Allows reports whether `to` may appear in direction d of `from`.
func (t AdjacencyTable) Allows(from TileKind, d Direction, to TileKind) bool {
	sides, ok := t[from]
	if !ok {
		return false
	}
	for _, k := range sides.Allowed(d) {
		if k == to {
			return true
		}
	}
	return false
}

// WeightTable biases the random choice when a cell collapses.
type WeightTable map[TileKind]float64

// DefaultWeight is used for tiles absent from a WeightTable.
const DefaultWeight = 1.0

// Weight returns the weight of k, or DefaultWeight if unset.
func (w WeightTable) Weight(k TileKind) float64 {
	if v, ok := w[k]; ok {
		return v
	}
	return DefaultWeight
}
