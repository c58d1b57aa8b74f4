package tools

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Spec documents a tool to the model.
type Spec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Input       string `yaml:"input"`
}

// Catalog is the set of tool specs known at startup.
type Catalog struct {
	specs map[string]Spec
}

type catalogFile struct {
	Tools []Spec `yaml:"tools"`
}

// LoadCatalog parses the embedded tool catalog.
func LoadCatalog() (Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog parses a YAML tool catalog.
func ParseCatalog(content []byte) (Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return Catalog{}, fmt.Errorf("parse tool catalog: %w", err)
	}

	specs := make(map[string]Spec, len(file.Tools))
	for i, spec := range file.Tools {
		spec.Name = strings.TrimSpace(spec.Name)
		spec.Description = strings.TrimSpace(spec.Description)
		spec.Input = strings.TrimSpace(spec.Input)
		if spec.Name == "" {
			return Catalog{}, fmt.Errorf("tool catalog entry %d: missing name", i)
		}
		if _, dup := specs[spec.Name]; dup {
			return Catalog{}, fmt.Errorf("tool catalog: duplicate tool %q", spec.Name)
		}
		specs[spec.Name] = spec
	}
	return Catalog{specs: specs}, nil
}

// Lookup returns the spec registered under name.
func (c Catalog) Lookup(name string) (Spec, bool) {
	spec, ok := c.specs[name]
	return spec, ok
}
