package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Feed formats understood by the adapters.
const (
	FormatXML = "xml"
	FormatCSV = "csv"
)

// Catalog lists the feeds a deployment ingests.
type Catalog struct {
	Sources []CatalogEntry `yaml:"sources"`
}

// CatalogEntry maps a source scope to its format and, optionally, a local
// snapshot path used by `sync --all`.
type CatalogEntry struct {
	Scope  string `yaml:"scope"`
	Format string `yaml:"format"`
	Label  string `yaml:"label,omitempty"`
	Path   string `yaml:"path,omitempty"`
}

// LoadCatalog reads and validates a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for i := range c.Sources {
		e := &c.Sources[i]
		e.Scope = strings.TrimSpace(e.Scope)
		e.Format = strings.ToLower(strings.TrimSpace(e.Format))
		if e.Scope == "" {
			return nil, fmt.Errorf("catalog entry %d: scope is required", i)
		}
		if _, dup := seen[e.Scope]; dup {
			return nil, fmt.Errorf("catalog entry %d: duplicate scope %s", i, e.Scope)
		}
		seen[e.Scope] = struct{}{}
		if e.Format != FormatXML && e.Format != FormatCSV {
			return nil, fmt.Errorf("catalog entry %s: unsupported format %q", e.Scope, e.Format)
		}
	}
	return &c, nil
}

// Lookup returns the entry for scope.
func (c *Catalog) Lookup(scope string) (CatalogEntry, bool) {
	for _, e := range c.Sources {
		if e.Scope == scope {
			return e, true
		}
	}
	return CatalogEntry{}, false
}
