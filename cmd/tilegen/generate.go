package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lawnchairsociety/tilegen/internal/database"
	"github.com/lawnchairsociety/tilegen/internal/logger"
	"github.com/lawnchairsociety/tilegen/internal/mapfile"
	"github.com/lawnchairsociety/tilegen/internal/wfc"
)

// GenerateCmd generates one map. Unset flags fall back to the config file.
type GenerateCmd struct {
	Width    int    `short:"W" help:"Map width in tiles."`
	Height   int    `short:"H" help:"Map height in tiles."`
	Seed     Seed   `short:"s" help:"Base seed, or \"random\"."`
	Ruleset  string `short:"r" help:"Ruleset name."`
	Attempts int    `help:"Attempts before giving up."`

	Out    string `short:"o" help:"Also write the map to this YAML file."`
	Format string `short:"f" enum:"text,yaml,none" default:"text" help:"Stdout format: text, yaml or none."`
	Save   bool   `help:"Store the map and every conflict in the database."`
}

func (c *GenerateCmd) Run(app *App) error {
	gen := app.Config.Generation

	mc := wfc.DefaultMapConfig(or(c.Width, gen.Width), or(c.Height, gen.Height), c.Seed.Or(gen.Seed))
	mc.MaxAttempts = or(c.Attempts, gen.MaxAttempts)
	mc.MaxSteps = gen.MaxSteps

	name := c.Ruleset
	if name == "" {
		name = gen.Ruleset
	}
	tileset, ok := app.Rulesets.Get(name)
	if !ok {
		return fmt.Errorf("unknown ruleset %q, have %v", name, app.Rulesets.Names())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout := gen.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	generator := wfc.NewGenerator(mc, tileset)

	var db *database.Database
	if c.Save {
		var err error
		if db, err = app.OpenDatabase(); err != nil {
			return err
		}
		defer db.Close()

		generator.OnConflict = func(report wfc.ConflictReport) {
			if _, err := db.RecordConflict(report); err != nil {
				logger.Error("Failed to record conflict", "error", err)
			}
		}
	}

	m, err := generator.Generate(ctx)
	if err != nil {
		return err
	}

	if db != nil {
		id, created, err := db.SaveMap(m)
		if err != nil {
			return err
		}
		logger.Info("Map stored", "map_id", id, "new", created)
	}

	if c.Out != "" {
		if err := mapfile.WriteFile(c.Out, m); err != nil {
			return err
		}
		logger.Info("Map written", "path", c.Out)
	}

	return printMap(app, m, c.Format)
}

func printMap(app *App, m *wfc.GeneratedMap, format string) error {
	switch format {
	case "yaml":
		return mapfile.Write(app.Stdout, m)
	case "none":
		return nil
	default:
		_, err := fmt.Fprint(app.Stdout, mapfile.Text(m.Tiles))
		return err
	}
}

func or(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}
