package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/lawnchairsociety/tilegen/internal/database"
	"github.com/lawnchairsociety/tilegen/internal/mapfile"
)

// HistoryCmd lists stored maps, or where a ruleset's attempts keep failing.
type HistoryCmd struct {
	Limit     int    `short:"n" default:"20" help:"Maps to list, newest first."`
	Seed      Seed   `short:"s" help:"Only maps requested with this seed."`
	Conflicts string `help:"Show conflict hot spots for this ruleset instead."`
}

func (c *HistoryCmd) Run(app *App) error {
	db, err := app.OpenDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if c.Conflicts != "" {
		return c.printConflicts(app, db)
	}

	var maps []database.MapSummary
	if c.Seed.Set {
		maps, err = db.FindMapsBySeed(c.Seed.Value)
	} else {
		maps, err = db.ListMaps(c.Limit)
	}
	if err != nil {
		return err
	}

	if len(maps) == 0 {
		fmt.Fprintln(app.Stdout, "No stored maps.")
		return nil
	}

	tw := tabwriter.NewWriter(app.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFINGERPRINT\tRULESET\tSIZE\tSEED\tATTEMPTS\tCREATED")
	for _, m := range maps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%dx%d\t%d\t%d\t%s\n",
			m.ID, database.ShortFingerprint(m.Fingerprint), m.Ruleset, m.Width, m.Height,
			m.Seed, m.Attempts, m.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func (c *HistoryCmd) printConflicts(app *App, db *database.Database) error {
	stats, err := db.ConflictStats(c.Conflicts)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Fprintf(app.Stdout, "No conflicts recorded for %s.\n", c.Conflicts)
		return nil
	}

	total := 0
	for _, s := range stats {
		total += s.Count
	}
	fmt.Fprintf(app.Stdout, "%d conflicts recorded for %s\n\n", total, c.Conflicts)

	tw := tabwriter.NewWriter(app.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tCOL\tDIRECTION\tCOUNT")
	for _, s := range stats {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\n", s.Row, s.Col, s.Direction, s.Count)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	recent, err := db.RecentConflicts(c.Conflicts, 1)
	if err != nil {
		return err
	}
	if len(recent) == 1 {
		r := recent[0]
		fmt.Fprintf(app.Stdout, "\nLatest: cell (%d,%d) %s of (%d,%d)\n", r.Row, r.Col, r.Direction, r.SourceRow, r.SourceCol)
		fmt.Fprintf(app.Stdout, "  source tiles:    %v\n", r.SourceTiles)
		fmt.Fprintf(app.Stdout, "  allowed:         %v\n", r.Allowed)
		fmt.Fprintf(app.Stdout, "  neighbor before: %v\n", r.NeighborBefore)
	}
	return nil
}

// ShowCmd prints a stored map.
type ShowCmd struct {
	ID     int64  `arg:"" help:"Map id, as listed by history."`
	Format string `short:"f" enum:"text,yaml" default:"text" help:"Output format: text or yaml."`
	Out    string `short:"o" help:"Also write the map to this YAML file."`
}

func (c *ShowCmd) Run(app *App) error {
	db, err := app.OpenDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := db.GetMap(c.ID)
	if err != nil {
		return fmt.Errorf("map %d: %w", c.ID, err)
	}
	m := rec.GeneratedMap()

	if c.Out != "" {
		if err := mapfile.WriteFile(c.Out, m); err != nil {
			return err
		}
	}
	return printMap(app, m, c.Format)
}
