// Package mapfile reads and writes generated maps as YAML documents.
package mapfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/tilegen/internal/wfc"
)

// MapYAML is the on-disk form of a generated map
type MapYAML struct {
	Ruleset     string     `yaml:"ruleset"`
	Width       int        `yaml:"width"`
	Height      int        `yaml:"height"`
	Seed        int64      `yaml:"seed"`
	AttemptSeed int64      `yaml:"attempt_seed"`
	Attempts    int        `yaml:"attempts"`
	Rows        [][]string `yaml:"rows"`
}

// Write encodes a map with a header comment. Rows are written one per line
// so the file reads like the map itself.
func Write(w io.Writer, m *wfc.GeneratedMap) error {
	fmt.Fprintf(w, "# Map %dx%d - %s ruleset\n", m.Width, m.Height, m.Ruleset)
	fmt.Fprintf(w, "# Generated with seed: %d (attempt %d, seed %d)\n\n", m.Seed, m.Attempts, m.AttemptSeed)

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(mapNode(m)); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}

// WriteFile writes a map to path
func WriteFile(path string, m *wfc.GeneratedMap) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("failed to expand path %q: %w", path, err)
	}

	f, err := os.Create(expanded)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := Write(f, m); err != nil {
		return err
	}
	return f.Close()
}

// mapNode builds the document by hand to keep field order and to put each
// row in flow style
func mapNode(m *wfc.GeneratedMap) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode}

	addScalarField(node, "ruleset", m.Ruleset, "!!str")
	addScalarField(node, "width", strconv.Itoa(m.Width), "!!int")
	addScalarField(node, "height", strconv.Itoa(m.Height), "!!int")
	addScalarField(node, "seed", strconv.FormatInt(m.Seed, 10), "!!int")
	addScalarField(node, "attempt_seed", strconv.FormatInt(m.AttemptSeed, 10), "!!int")
	addScalarField(node, "attempts", strconv.Itoa(m.Attempts), "!!int")

	rows := &yaml.Node{Kind: yaml.SequenceNode}
	for _, row := range m.Tiles {
		rowNode := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, k := range row {
			rowNode.Content = append(rowNode.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(k)})
		}
		rows.Content = append(rows.Content, rowNode)
	}
	node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: "rows"}, rows)

	return node
}

func addScalarField(node *yaml.Node, key, value, tag string) {
	node.Content = append(node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value},
	)
}

// Read decodes a map document and checks that the rows match the declared
// dimensions.
func Read(r io.Reader) (*wfc.GeneratedMap, error) {
	var doc MapYAML
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse map YAML: %w", err)
	}

	if doc.Width <= 0 || doc.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", wfc.ErrInvalidSize, doc.Width, doc.Height)
	}
	if len(doc.Rows) != doc.Height {
		return nil, fmt.Errorf("%w: %d rows, height is %d", wfc.ErrNotRectangular, len(doc.Rows), doc.Height)
	}

	tiles := make([][]wfc.TileKind, len(doc.Rows))
	for r, row := range doc.Rows {
		if len(row) != doc.Width {
			return nil, fmt.Errorf("%w: row %d has %d tiles, width is %d", wfc.ErrNotRectangular, r, len(row), doc.Width)
		}
		tiles[r] = make([]wfc.TileKind, len(row))
		for c, name := range row {
			tiles[r][c] = wfc.TileKind(name)
		}
	}

	return &wfc.GeneratedMap{
		Ruleset:     doc.Ruleset,
		Width:       doc.Width,
		Height:      doc.Height,
		Seed:        doc.Seed,
		AttemptSeed: doc.AttemptSeed,
		Attempts:    doc.Attempts,
		Tiles:       tiles,
	}, nil
}

// ReadFile reads a map document from path
func ReadFile(path string) (*wfc.GeneratedMap, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand path %q: %w", path, err)
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read map file: %w", err)
	}

	m, err := Read(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Text lays a map out as space-separated columns padded to the longest
// tile name, one row per line.
func Text(tiles [][]wfc.TileKind) string {
	width := 0
	for _, row := range tiles {
		for _, k := range row {
			if len(k) > width {
				width = len(k)
			}
		}
	}

	var sb strings.Builder
	for _, row := range tiles {
		for c, k := range row {
			if c == len(row)-1 {
				sb.WriteString(string(k))
				break
			}
			sb.WriteString(string(k))
			sb.WriteString(strings.Repeat(" ", width-len(k)+1))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
