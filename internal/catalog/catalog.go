// Package catalog serves the read-only materials reference embedded in the binary.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed materials.yaml
var materialsYAML []byte

// Material describes one recyclable (or not) material family
type Material struct {
	Code        string `yaml:"code" json:"code"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Category    string `yaml:"category" json:"category"`
	ResinCode   *int   `yaml:"resin_code,omitempty" json:"resinCode,omitempty"`
	Recyclable  bool   `yaml:"recyclable" json:"recyclable"`
}

// Catalog is an immutable, ordered set of materials
type Catalog struct {
	materials []Material
	byKey     map[string]int
}

type catalogFile struct {
	Materials []Material `yaml:"materials"`
}

// Parse builds a catalog from YAML
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse materials catalog: %w", err)
	}

	c := &Catalog{
		materials: f.Materials,
		byKey:     make(map[string]int, len(f.Materials)*2),
	}
	for i, m := range f.Materials {
		if m.Code == "" || m.Name == "" {
			return nil, fmt.Errorf("material %d: code and name are required", i)
		}
		for _, key := range []string{strings.ToLower(m.Code), strings.ToLower(m.Name)} {
			if _, dup := c.byKey[key]; dup && c.materials[c.byKey[key]].Code != m.Code {
				return nil, fmt.Errorf("material %q: duplicate key %q", m.Code, key)
			}
			c.byKey[key] = i
		}
	}
	return c, nil
}

var (
	loadOnce sync.Once
	loaded   *Catalog
	loadErr  error
)

// Load returns the embedded catalog
func Load() (*Catalog, error) {
	loadOnce.Do(func() {
		loaded, loadErr = Parse(materialsYAML)
	})
	return loaded, loadErr
}

// All returns a copy of every material in catalog order
func (c *Catalog) All() []Material {
	out := make([]Material, len(c.materials))
	copy(out, c.materials)
	return out
}

// Lookup finds a material by code or name, case-insensitively
func (c *Catalog) Lookup(code string) (Material, bool) {
	i, ok := c.byKey[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return Material{}, false
	}
	return c.materials[i], true
}

// Len returns the number of materials
func (c *Catalog) Len() int {
	return len(c.materials)
}
