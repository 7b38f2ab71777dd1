// Package policy holds the versioned limit-rule table: per-category
// caps over calendar windows, plus shared pools whose member categories
// draw down one combined cap. The table is data, not code, so caps and
// categories change without touching the aggregation engine.
package policy

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"lofawell/internal/core"
)

//go:embed default_policy.json
var defaultPolicyJSON []byte

// Rule caps a single category over one window.
type Rule struct {
	Category core.Category   `json:"category"`
	Window   core.WindowKind `json:"window"`
	Cap      int64           `json:"cap"`
}

// Pool caps the combined usage of several categories over one window.
type Pool struct {
	Name       string          `json:"name"`
	Categories []core.Category `json:"categories"`
	Window     core.WindowKind `json:"window"`
	Cap        int64           `json:"cap"`
}

// Table is one revision of the limit configuration.
type Table struct {
	Version string `json:"version"`
	Rules   []Rule `json:"rules"`
	Pools   []Pool `json:"pools"`
}

// Default returns the embedded policy table.
func Default() (*Table, error) {
	return Parse(defaultPolicyJSON)
}

// LoadFile reads a policy table from an external JSON file, letting a
// deployment override the embedded revision.
func LoadFile(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Table, error) {
	var t Table
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse policy table: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Table) validate() error {
	seen := map[core.Category]string{}
	for _, p := range t.Pools {
		if p.Name == "" {
			return fmt.Errorf("policy table: pool without a name")
		}
		if !p.Window.Valid() {
			return fmt.Errorf("policy table: pool %q has invalid window %q", p.Name, p.Window)
		}
		for _, c := range p.Categories {
			if prev, ok := seen[c]; ok {
				return fmt.Errorf("policy table: category %q in pools %q and %q", c, prev, p.Name)
			}
			seen[c] = p.Name
		}
	}
	for _, r := range t.Rules {
		if !r.Window.Valid() {
			return fmt.Errorf("policy table: rule for %q has invalid window %q", r.Category, r.Window)
		}
		if r.Cap < 0 {
			return fmt.Errorf("policy table: rule for %q has negative cap", r.Category)
		}
	}
	return nil
}

// RuleFor returns the individual rule covering a category, if any.
func (t *Table) RuleFor(c core.Category) (Rule, bool) {
	for _, r := range t.Rules {
		if r.Category == c {
			return r, true
		}
	}
	return Rule{}, false
}

// PoolFor returns the shared pool containing a category, if any. A
// category belongs to at most one pool (enforced at load time).
func (t *Table) PoolFor(c core.Category) (Pool, bool) {
	for _, p := range t.Pools {
		for _, member := range p.Categories {
			if member == c {
				return p, true
			}
		}
	}
	return Pool{}, false
}
