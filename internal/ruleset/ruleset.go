// Package ruleset loads, saves and inspects tile sets for the map generator.
package ruleset

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/tilegen/internal/wfc"
)

// RulesetYAML is the on-disk form of a tile set
type RulesetYAML struct {
	Name  string     `yaml:"name"`
	Tiles []TileYAML `yaml:"tiles"`
}

// TileYAML is one tile and the neighbours it accepts on each side.
// A missing side accepts nothing.
type TileYAML struct {
	Name   string   `yaml:"name"`
	Weight *float64 `yaml:"weight,omitempty"`
	Top    []string `yaml:"top,flow"`
	Right  []string `yaml:"right,flow"`
	Bottom []string `yaml:"bottom,flow"`
	Left   []string `yaml:"left,flow"`
}

// Load parses and validates a ruleset. Tiles keep their file order, which
// is also the order candidates are considered in during collapse.
func Load(r io.Reader) (*wfc.TileSet, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var doc RulesetYAML
	if err := decoder.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("ruleset is empty: %w", wfc.ErrNoTiles)
		}
		return nil, fmt.Errorf("failed to parse ruleset: %w", err)
	}

	ts := fromYAML(&doc)
	if err := ts.Validate(); err != nil {
		return nil, fmt.Errorf("ruleset %q: %w", ts.Name, err)
	}
	return ts, nil
}

// LoadFile reads a ruleset from disk. When the file has no name the file's
// base name is used.
func LoadFile(path string) (*wfc.TileSet, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand path %q: %w", path, err)
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset: %w", err)
	}

	ts, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if ts.Name == "" {
		ts.Name = strings.TrimSuffix(filepath.Base(expanded), filepath.Ext(expanded))
	}
	return ts, nil
}

func fromYAML(doc *RulesetYAML) *wfc.TileSet {
	ts := &wfc.TileSet{
		Name:    doc.Name,
		Tiles:   make([]wfc.TileKind, 0, len(doc.Tiles)),
		Rules:   make(wfc.AdjacencyTable, len(doc.Tiles)),
		Weights: make(wfc.WeightTable),
	}

	for _, t := range doc.Tiles {
		kind := wfc.TileKind(t.Name)
		ts.Tiles = append(ts.Tiles, kind)

		var sides wfc.Sides
		sides[wfc.Top] = kinds(t.Top)
		sides[wfc.Right] = kinds(t.Right)
		sides[wfc.Bottom] = kinds(t.Bottom)
		sides[wfc.Left] = kinds(t.Left)
		ts.Rules[kind] = sides

		if t.Weight != nil {
			ts.Weights[kind] = *t.Weight
		}
	}

	return ts
}

func kinds(names []string) []wfc.TileKind {
	out := make([]wfc.TileKind, len(names))
	for i, n := range names {
		out[i] = wfc.TileKind(n)
	}
	return out
}

// Save writes a ruleset as YAML with a short header
func Save(w io.Writer, ts *wfc.TileSet) error {
	fmt.Fprintf(w, "# Ruleset %s\n", ts.Name)
	fmt.Fprintf(w, "# Tiles: %d\n\n", len(ts.Tiles))

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(toYAML(ts)); err != nil {
		return fmt.Errorf("failed to encode ruleset: %w", err)
	}
	return encoder.Close()
}

// SaveFile writes a ruleset to path
func SaveFile(path string, ts *wfc.TileSet) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("failed to expand path %q: %w", path, err)
	}

	f, err := os.Create(expanded)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := Save(f, ts); err != nil {
		return err
	}
	return f.Close()
}

func toYAML(ts *wfc.TileSet) *RulesetYAML {
	doc := &RulesetYAML{Name: ts.Name}

	for _, kind := range ts.Tiles {
		sides := ts.Rules[kind]
		tile := TileYAML{
			Name:   string(kind),
			Top:    names(sides[wfc.Top]),
			Right:  names(sides[wfc.Right]),
			Bottom: names(sides[wfc.Bottom]),
			Left:   names(sides[wfc.Left]),
		}
		if w, ok := ts.Weights[kind]; ok {
			tile.Weight = &w
		}
		doc.Tiles = append(doc.Tiles, tile)
	}

	return doc
}

func names(ks []wfc.TileKind) []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = string(k)
	}
	return out
}
