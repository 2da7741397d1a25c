package wfc

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/lawnchairsociety/tilegen/internal/logger"
)

// ctxCheckInterval is how many steps run between context checks
const ctxCheckInterval = 64

// MapConfig contains parameters for map generation
type MapConfig struct {
	Width       int   // Columns
	Height      int   // Rows
	Seed        int64 // Base seed; attempt n uses AttemptSeed(Seed, n)
	MaxAttempts int   // Fresh grids to try before giving up
	MaxSteps    int   // Collapses allowed per attempt (0 = unlimited)
}

// DefaultMapConfig returns reasonable defaults for a map
func DefaultMapConfig(width, height int, seed int64) *MapConfig {
	return &MapConfig{
		Width:       width,
		Height:      height,
		Seed:        seed,
		MaxAttempts: 50,
	}
}

// GeneratedMap represents the output of map generation
type GeneratedMap struct {
	Ruleset     string
	Width       int
	Height      int
	Seed        int64 // Base seed requested
	AttemptSeed int64 // Seed of the attempt that succeeded
	Attempts    int
	Tiles       [][]TileKind // [row][col]
}

// At returns the tile at (row, col)
func (m *GeneratedMap) At(row, col int) TileKind {
	return m.Tiles[row][col]
}

// ConflictReport describes one failed attempt
type ConflictReport struct {
	Ruleset  string
	Attempt  int
	Seed     int64
	Conflict *ConflictError
}

// Generator runs constraint grids until one completes, re-seeding after each
// conflict. The grids themselves never backtrack.
type Generator struct {
	config  *MapConfig
	tileset *TileSet

	// OnConflict, if set, is called for every failed attempt.
	OnConflict func(ConflictReport)
}

// NewGenerator creates a new map generator
func NewGenerator(config *MapConfig, tileset *TileSet) *Generator {
	return &Generator{
		config:  config,
		tileset: tileset,
	}
}

// AttemptSeed returns the seed used for the given zero-based attempt.
func AttemptSeed(seed int64, attempt int) int64 {
	return seed + int64(attempt)*1000
}

// Generate produces a fully collapsed map. Precondition errors, context
// cancellation and the step guard end generation immediately; conflicts
// trigger a new attempt.
func (g *Generator) Generate(ctx context.Context) (*GeneratedMap, error) {
	// Surface precondition violations once instead of per attempt
	if err := g.tileset.Validate(); err != nil {
		return nil, err
	}
	if g.config.Width <= 0 || g.config.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, g.config.Width, g.config.Height)
	}

	maxAttempts := g.config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	log := logger.With(
		"ruleset", g.tileset.Name,
		"width", g.config.Width,
		"height", g.config.Height,
		"seed", g.config.Seed,
	)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		seed := AttemptSeed(g.config.Seed, attempt)
		tiles, err := g.attempt(ctx, seed)
		if err == nil {
			log.Info("Map generated", "attempt", attempt+1, "attempt_seed", seed)
			return &GeneratedMap{
				Ruleset:     g.tileset.Name,
				Width:       g.config.Width,
				Height:      g.config.Height,
				Seed:        g.config.Seed,
				AttemptSeed: seed,
				Attempts:    attempt + 1,
				Tiles:       tiles,
			}, nil
		}

		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			return nil, err
		}

		log.Debug("Generation attempt hit a conflict",
			"attempt", attempt+1,
			"attempt_seed", seed,
			"row", conflict.Row,
			"col", conflict.Col,
			"direction", conflict.Direction.String(),
			"source_row", conflict.SourceRow,
			"source_col", conflict.SourceCol,
			"source_tiles", conflict.SourceTiles,
			"neighbor_before", conflict.NeighborBefore,
			"allowed", conflict.Allowed,
		)
		if g.OnConflict != nil {
			g.OnConflict(ConflictReport{
				Ruleset:  g.tileset.Name,
				Attempt:  attempt,
				Seed:     seed,
				Conflict: conflict,
			})
		}
		lastErr = err
	}

	log.Warn("Map generation gave up", "attempts", maxAttempts)
	if lastErr != nil {
		return nil, fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
	}
	return nil, ErrNoSolution
}

// attempt runs one grid to completion under the step and context guards.
func (g *Generator) attempt(ctx context.Context, seed int64) ([][]TileKind, error) {
	grid, err := g.tileset.NewGrid(g.config.Width, g.config.Height, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, err
	}
	return g.run(ctx, grid)
}

// run steps grid until it is decided. At most MaxSteps collapses happen.
func (g *Generator) run(ctx context.Context, grid *Grid) ([][]TileKind, error) {
	for step := 0; ; step++ {
		if step%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if limit := g.config.MaxSteps; limit > 0 && grid.Steps() >= limit && !grid.Decided() {
			return nil, fmt.Errorf("%w: %d steps", ErrMaxIterations, limit)
		}

		done, err := grid.Step()
		if err != nil {
			return nil, err
		}
		if done {
			return grid.Tiles()
		}
	}
}
