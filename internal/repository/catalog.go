package repository

import (
	_ "embed"
	"fmt"
	"os"

	"MandiCast/internal/domain/models"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// LoadCatalog reads the district catalog from path, or the built-in catalog
// when path is empty.
func LoadCatalog(path string) (*models.Catalog, error) {
	b := defaultCatalog
	if path != "" {
		var err error
		if b, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
	}
	return ParseCatalog(b)
}

// ParseCatalog decodes and validates a YAML catalog document.
func ParseCatalog(b []byte) (*models.Catalog, error) {
	var c models.Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}
	return &c, nil
}
