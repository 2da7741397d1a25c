package ruleset

import "github.com/lawnchairsociety/tilegen/internal/wfc"

// Dungeon tile kinds. Rotations are clockwise degrees of the wall side.
const (
	Wall             wfc.TileKind = "wall"
	Floor            wfc.TileKind = "floor"
	FloorOneWall0    wfc.TileKind = "floor_one_wall_0"
	FloorOneWall90   wfc.TileKind = "floor_one_wall_90"
	FloorOneWall180  wfc.TileKind = "floor_one_wall_180"
	FloorOneWall270  wfc.TileKind = "floor_one_wall_270"
	FloorTwoWalls0   wfc.TileKind = "floor_two_wall_0"
	FloorTwoWalls90  wfc.TileKind = "floor_two_wall_90"
	FloorTwoWalls180 wfc.TileKind = "floor_two_wall_180"
	FloorTwoWalls270 wfc.TileKind = "floor_two_wall_270"
)

// DungeonName is the registry name of the built-in dungeon ruleset
const DungeonName = "dungeon"

// Neighbour groups shared by many sides
var (
	// What may sit above a tile whose top edge is open floor
	openAbove = []wfc.TileKind{Floor, FloorOneWall0, FloorOneWall90, FloorOneWall180, FloorTwoWalls90, FloorTwoWalls180}
	// What may sit right of a tile whose right edge is open floor
	openRight = []wfc.TileKind{Floor, FloorOneWall0, FloorOneWall90, FloorOneWall270, FloorTwoWalls0, FloorTwoWalls90}
	// What may sit below a tile whose bottom edge is open floor
	openBelow = []wfc.TileKind{Floor, FloorOneWall0, FloorOneWall180, FloorOneWall270, FloorTwoWalls0, FloorTwoWalls270}
	// What may sit left of a tile whose left edge is open floor
	openLeft = []wfc.TileKind{Floor, FloorOneWall90, FloorOneWall180, FloorOneWall270, FloorTwoWalls180, FloorTwoWalls270}

	wallAbove = []wfc.TileKind{Wall, FloorOneWall270, FloorTwoWalls0, FloorTwoWalls270}
	wallRight = []wfc.TileKind{Wall, FloorOneWall180, FloorTwoWalls180, FloorTwoWalls270}
	wallBelow = []wfc.TileKind{Wall, FloorOneWall90, FloorTwoWalls90, FloorTwoWalls180}
	wallLeft  = []wfc.TileKind{Wall, FloorOneWall0, FloorTwoWalls0, FloorTwoWalls90}
)

// Dungeon returns the built-in wall and floor ruleset. Solid walls and open
// floor dominate; the edge pieces are rare so rooms come out large.
func Dungeon() *wfc.TileSet {
	return &wfc.TileSet{
		Name: DungeonName,
		Tiles: []wfc.TileKind{
			Wall, Floor,
			FloorOneWall0, FloorOneWall90, FloorOneWall180, FloorOneWall270,
			FloorTwoWalls0, FloorTwoWalls90, FloorTwoWalls180, FloorTwoWalls270,
		},
		Rules: wfc.AdjacencyTable{
			Wall: {
				wallAbove,
				with(wallRight, FloorOneWall90),
				wallBelow,
				wallLeft,
			},
			Floor:           {openAbove, openRight, openBelow, openLeft},
			FloorOneWall0:   {openAbove, wallRight, openBelow, openLeft},
			FloorOneWall90:  {wallAbove, openRight, openBelow, with(openLeft, Wall)},
			FloorOneWall180: {openAbove, openRight, openBelow, wallLeft},
			FloorOneWall270: {openAbove, openRight, wallBelow, openLeft},

			FloorTwoWalls0:   {openAbove, wallRight, wallBelow, openLeft},
			FloorTwoWalls90:  {wallAbove, wallRight, openBelow, openLeft},
			FloorTwoWalls180: {wallAbove, openRight, openBelow, wallLeft},
			FloorTwoWalls270: {openAbove, openRight, wallBelow, wallLeft},
		},
		Weights: wfc.WeightTable{
			Wall:             10.0,
			Floor:            15.0,
			FloorOneWall0:    0.2,
			FloorOneWall90:   0.2,
			FloorOneWall180:  0.2,
			FloorOneWall270:  0.2,
			FloorTwoWalls0:   0.2,
			FloorTwoWalls90:  0.2,
			FloorTwoWalls180: 0.2,
			FloorTwoWalls270: 0.2,
		},
	}
}

// with returns a copy of base with extra appended
func with(base []wfc.TileKind, extra ...wfc.TileKind) []wfc.TileKind {
	out := make([]wfc.TileKind, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}
