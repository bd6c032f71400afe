// Package seed ships the default batch of building definitions appended to a
// catalog when no additions file is given.
package seed

import (
	_ "embed"
	"fmt"

	"github.com/MrWong99/buildcatalog/internal/building"
	"github.com/MrWong99/buildcatalog/internal/catalog"
)

// additions has the same shape as a catalog: {"buildings": [...]}.
//
//go:embed additions.json
var additions []byte

// Additions decodes the embedded additions document.
func Additions() ([]building.Definition, error) {
	c, err := catalog.Decode(additions, catalog.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("seed: decode embedded additions: %w", err)
	}
	return c.Buildings, nil
}
