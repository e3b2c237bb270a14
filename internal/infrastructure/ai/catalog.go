package ai

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/codepilot/assistant-api/internal/core/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// CatalogEntry is the static description of one provider.
type CatalogEntry struct {
	ID           domain.AIProvider `yaml:"id"`
	DisplayName  string            `yaml:"display_name"`
	DefaultModel string            `yaml:"default_model"`
	Hint         string            `yaml:"hint"`
}

// Catalog maps provider ids to their descriptions.
type Catalog map[domain.AIProvider]CatalogEntry

type catalogFile struct {
	Providers []CatalogEntry `yaml:"providers"`
}

// LoadCatalog returns the embedded catalog, with the entries of the YAML
// file at path (when set) overriding it field by field.
func LoadCatalog(path string) (Catalog, error) {
	cat, err := parseCatalog(defaultCatalog)
	if err != nil {
		return nil, fmt.Errorf("embedded catalog: %w", err)
	}
	if path == "" {
		return cat, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	override, err := parseCatalog(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for id, o := range override {
		e := cat[id]
		e.ID = id
		if o.DisplayName != "" {
			e.DisplayName = o.DisplayName
		}
		if o.DefaultModel != "" {
			e.DefaultModel = o.DefaultModel
		}
		if o.Hint != "" {
			e.Hint = o.Hint
		}
		cat[id] = e
	}
	return cat, nil
}

func parseCatalog(b []byte) (Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	cat := make(Catalog, len(f.Providers))
	for _, e := range f.Providers {
		if !e.ID.Valid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, e.ID)
		}
		cat[e.ID] = e
	}
	return cat, nil
}

// Entry returns the description of id, falling back to the id itself.
func (c Catalog) Entry(id domain.AIProvider) CatalogEntry {
	if e, ok := c[id]; ok {
		return e
	}
	return CatalogEntry{ID: id, DisplayName: string(id)}
}
