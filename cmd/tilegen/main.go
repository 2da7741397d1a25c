// Command tilegen generates tile maps with wave function collapse.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/mitchellh/go-homedir"

	"github.com/lawnchairsociety/tilegen/internal/config"
	"github.com/lawnchairsociety/tilegen/internal/database"
	"github.com/lawnchairsociety/tilegen/internal/logger"
	"github.com/lawnchairsociety/tilegen/internal/ruleset"
)

const desc = `Generates rectangular tile maps from adjacency rulesets.

Each cell starts with every tile possible. The most constrained cell is
collapsed to one tile, chosen by weight, and its neighbours are narrowed to
what the rules allow. A grid that runs into a dead end is thrown away and
retried with the next attempt seed (seed + attempt*1000).`

// CLI is the root command line.
type CLI struct {
	Config string `short:"c" default:"tilegen.yaml" help:"Path to the YAML config file."`

	Generate GenerateCmd `cmd:"" help:"Generate a map."`
	Validate ValidateCmd `cmd:"" help:"Check ruleset files and report asymmetric rules."`
	Export   ExportCmd   `cmd:"" help:"Write a registered ruleset as YAML."`
	Check    CheckCmd    `cmd:"" help:"Check that a map file obeys its ruleset."`
	Serve    ServeCmd    `cmd:"" help:"Run the websocket generation service."`
	History  HistoryCmd  `cmd:"" help:"List stored maps or conflict hot spots."`
	Show     ShowCmd     `cmd:"" help:"Print a stored map."`
}

// App is what every command runs against.
type App struct {
	Config   *config.Config
	Rulesets *ruleset.Registry
	Stdout   io.Writer
}

// OpenDatabase opens the configured database.
func (a *App) OpenDatabase() (*database.Database, error) {
	db, err := database.OpenWithConfig(a.Config.Database)
	if err != nil {
		return nil, err
	}
	logger.Debug("Database opened", "driver", a.Config.Database.Driver)
	return db, nil
}

// Seed is an optional seed flag. "random" picks one from the clock.
type Seed struct {
	Set   bool
	Value int64
}

func (s *Seed) Decode(ctx *kong.DecodeContext) error {
	var raw string
	if err := ctx.Scan.PopValueInto("seed", &raw); err != nil {
		return err
	}
	return s.parse(raw)
}

func (s *Seed) parse(raw string) error {
	if strings.EqualFold(raw, "random") {
		s.Set, s.Value = true, time.Now().UnixNano()
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("seed must be an integer or \"random\", got %q", raw)
	}
	s.Set, s.Value = true, v
	return nil
}

// Or returns the seed, or def when the flag was not given.
func (s Seed) Or(def int64) int64 {
	if s.Set {
		return s.Value
	}
	return def
}

// newApp loads everything commands share: logging, config, rulesets.
func newApp(configPath string, stdout io.Writer) (*App, error) {
	path, err := homedir.Expand(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to expand config path: %w", err)
	}

	logConfig, err := logger.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using default logging\n", err)
	}
	if err := logger.Initialize(logConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	registry := ruleset.NewRegistry()
	if err := registry.LoadFiles(cfg.Rulesets); err != nil {
		return nil, err
	}
	logger.Debug("Rulesets loaded", "names", registry.Names())

	return &App{Config: cfg, Rulesets: registry, Stdout: stdout}, nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("tilegen"),
		kong.Description(desc),
		kong.UsageOnError(),
	)

	app, err := newApp(cli.Config, os.Stdout)
	kctx.FatalIfErrorf(err)

	kctx.FatalIfErrorf(kctx.Run(app))
}
