package main

import (
	"errors"
	"fmt"

	"github.com/lawnchairsociety/tilegen/internal/mapfile"
	"github.com/lawnchairsociety/tilegen/internal/ruleset"
	"github.com/lawnchairsociety/tilegen/internal/wfc"
)

var errAsymmetric = errors.New("ruleset has asymmetric rules")

// ValidateCmd loads ruleset files and lists asymmetric rules. Without
// files it checks every registered ruleset.
type ValidateCmd struct {
	Files  []string `arg:"" optional:"" help:"Ruleset YAML files."`
	Strict bool     `help:"Fail when a ruleset has asymmetric rules."`
}

func (c *ValidateCmd) Run(app *App) error {
	var rulesets []*wfc.TileSet
	if len(c.Files) == 0 {
		for _, name := range app.Rulesets.Names() {
			ts, _ := app.Rulesets.Get(name)
			rulesets = append(rulesets, ts)
		}
	}
	for _, path := range c.Files {
		ts, err := ruleset.LoadFile(path)
		if err != nil {
			return err
		}
		rulesets = append(rulesets, ts)
	}

	failed := false
	for _, ts := range rulesets {
		asym := ruleset.Asymmetries(ts)
		fmt.Fprintf(app.Stdout, "%s: %d tiles, %d asymmetric rules\n", ts.Name, len(ts.Tiles), len(asym))
		for _, a := range asym {
			fmt.Fprintf(app.Stdout, "  %s\n", a)
		}
		if len(asym) > 0 && c.Strict {
			failed = true
		}
	}

	if failed {
		return errAsymmetric
	}
	return nil
}

// ExportCmd writes a registered ruleset, built-in or loaded, as YAML.
type ExportCmd struct {
	Name string `arg:"" help:"Ruleset name."`
	Out  string `short:"o" help:"Output file. Defaults to stdout."`
}

func (c *ExportCmd) Run(app *App) error {
	ts, ok := app.Rulesets.Get(c.Name)
	if !ok {
		return fmt.Errorf("unknown ruleset %q, have %v", c.Name, app.Rulesets.Names())
	}
	if c.Out == "" {
		return ruleset.Save(app.Stdout, ts)
	}
	if err := ruleset.SaveFile(c.Out, ts); err != nil {
		return err
	}
	fmt.Fprintf(app.Stdout, "Ruleset %s written to %s\n", ts.Name, c.Out)
	return nil
}

// CheckCmd verifies a map file against the ruleset named inside it.
type CheckCmd struct {
	File    string `arg:"" type:"existingfile" help:"Map YAML file."`
	Ruleset string `short:"r" help:"Check against this ruleset instead."`
}

func (c *CheckCmd) Run(app *App) error {
	m, err := mapfile.ReadFile(c.File)
	if err != nil {
		return err
	}

	name := c.Ruleset
	if name == "" {
		name = m.Ruleset
	}
	ts, ok := app.Rulesets.Get(name)
	if !ok {
		return fmt.Errorf("unknown ruleset %q, have %v", name, app.Rulesets.Names())
	}

	if err := wfc.Verify(m.Tiles, ts.Rules); err != nil {
		return fmt.Errorf("%s: %w", c.File, err)
	}
	fmt.Fprintf(app.Stdout, "%s: %dx%d map is consistent with %s\n", c.File, m.Width, m.Height, ts.Name)
	return nil
}
