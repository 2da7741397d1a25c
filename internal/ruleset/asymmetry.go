package ruleset

import (
	"fmt"

	"github.com/lawnchairsociety/tilegen/internal/wfc"
)

// Asymmetry is a rule that only one side of a pair agrees to: From accepts
// To in Direction, but To does not accept From in the opposite direction.
type Asymmetry struct {
	From      wfc.TileKind
	Direction wfc.Direction
	To        wfc.TileKind
}

func (a Asymmetry) String() string {
	return fmt.Sprintf("%s allows %s on its %s, but %s does not allow %s on its %s",
		a.From, a.To, a.Direction, a.To, a.From, a.Direction.Opposite())
}

// Asymmetries lists every one-sided rule in the tile set, in universe and
// direction order. The generator does not repair these; they usually make
// conflicts more frequent or skew the output, so authors should fix them.
func Asymmetries(ts *wfc.TileSet) []Asymmetry {
	inUniverse := make(map[wfc.TileKind]bool, len(ts.Tiles))
	for _, k := range ts.Tiles {
		inUniverse[k] = true
	}

	var found []Asymmetry
	for _, from := range ts.Tiles {
		for _, d := range wfc.AllDirections() {
			for _, to := range ts.Rules[from].Allowed(d) {
				if !inUniverse[to] {
					continue
				}
				if !ts.Rules.Allows(to, d.Opposite(), from) {
					found = append(found, Asymmetry{From: from, Direction: d, To: to})
				}
			}
		}
	}
	return found
}
