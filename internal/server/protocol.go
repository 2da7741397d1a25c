package server

import (
	"errors"

	"github.com/lawnchairsociety/tilegen/internal/wfc"
)

// Message types exchanged over /ws. Every message is one JSON text frame.
const (
	TypeGenerate = "generate"
	TypeRulesets = "rulesets"
	TypeMap      = "map"
	TypeError    = "error"
)

// Request is a client message. Zero Width, Height or Ruleset and a missing
// Seed fall back to the generation defaults from the config file.
type Request struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Seed    *int64 `json:"seed,omitempty"`
	Ruleset string `json:"ruleset,omitempty"`
}

// Response is a server message. ID echoes the request's ID.
type Response struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	*MapPayload

	Rulesets []string         `json:"rulesets,omitempty"`
	Error    string           `json:"error,omitempty"`
	Conflict *ConflictPayload `json:"conflict,omitempty"`
}

// MapPayload carries a generated map.
type MapPayload struct {
	Ruleset     string           `json:"ruleset"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
	Seed        int64            `json:"seed"`
	AttemptSeed int64            `json:"attempt_seed"`
	Attempts    int              `json:"attempts"`
	Tiles       [][]wfc.TileKind `json:"tiles"`

	// MapID is the database row, when the service stores maps.
	MapID int64 `json:"map_id,omitempty"`
}

// ConflictPayload is the last attempt's conflict when generation gives up.
type ConflictPayload struct {
	Row            int            `json:"row"`
	Col            int            `json:"col"`
	SourceRow      int            `json:"source_row"`
	SourceCol      int            `json:"source_col"`
	Direction      string         `json:"direction"`
	SourceTiles    []wfc.TileKind `json:"source_tiles"`
	NeighborBefore []wfc.TileKind `json:"neighbor_before"`
	Allowed        []wfc.TileKind `json:"allowed"`
}

func mapResponse(id string, m *wfc.GeneratedMap, mapID int64) Response {
	return Response{
		Type: TypeMap,
		ID:   id,
		MapPayload: &MapPayload{
			Ruleset:     m.Ruleset,
			Width:       m.Width,
			Height:      m.Height,
			Seed:        m.Seed,
			AttemptSeed: m.AttemptSeed,
			Attempts:    m.Attempts,
			Tiles:       m.Tiles,
			MapID:       mapID,
		},
	}
}

func errorResponse(id string, err error) Response {
	resp := Response{Type: TypeError, ID: id, Error: err.Error()}

	var conflict *wfc.ConflictError
	if errors.As(err, &conflict) {
		resp.Conflict = &ConflictPayload{
			Row:            conflict.Row,
			Col:            conflict.Col,
			SourceRow:      conflict.SourceRow,
			SourceCol:      conflict.SourceCol,
			Direction:      conflict.Direction.String(),
			SourceTiles:    conflict.SourceTiles,
			NeighborBefore: conflict.NeighborBefore,
			Allowed:        conflict.Allowed,
		}
	}
	return resp
}
