package ruleset

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lawnchairsociety/tilegen/internal/wfc"
)

// Registry holds named rulesets. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	rulesets map[string]*wfc.TileSet
}

// NewRegistry creates a registry holding the built-in rulesets
func NewRegistry() *Registry {
	r := &Registry{rulesets: make(map[string]*wfc.TileSet)}
	r.rulesets[DungeonName] = Dungeon()
	return r
}

// Register adds or replaces a ruleset under its own name after validating it
func (r *Registry) Register(ts *wfc.TileSet) error {
	if ts.Name == "" {
		return fmt.Errorf("ruleset has no name")
	}
	if err := ts.Validate(); err != nil {
		return fmt.Errorf("ruleset %q: %w", ts.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rulesets[ts.Name] = ts
	return nil
}

// LoadFiles loads rulesets from disk. Map keys name the rulesets and
// override any name inside the file.
func (r *Registry) LoadFiles(paths map[string]string) error {
	// Deterministic error reporting
	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ts, err := LoadFile(paths[name])
		if err != nil {
			return err
		}
		ts.Name = name
		if err := r.Register(ts); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a ruleset by name
func (r *Registry) Get(name string) (*wfc.TileSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ts, ok := r.rulesets[name]
	return ts, ok
}

// Names returns all registered names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.rulesets))
	for name := range r.rulesets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
