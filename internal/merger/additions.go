package merger

import (
	"context"
	"fmt"

	"github.com/MrWong99/buildcatalog/internal/building"
	"github.com/MrWong99/buildcatalog/internal/catalog"
	"github.com/MrWong99/buildcatalog/internal/observe"
	"github.com/MrWong99/buildcatalog/internal/seed"
)

// LoadAdditions reads the additions document name through store. The
// document has the catalog shape; only its records are used.
//
// An empty name selects the built-in batch from package seed.
func LoadAdditions(ctx context.Context, store catalog.Store, name string) ([]building.Definition, error) {
	if name == "" {
		defs, err := seed.Additions()
		if err != nil {
			return nil, fmt.Errorf("merger: %w", err)
		}
		return defs, nil
	}

	c, err := store.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("merger: load additions: %w", err)
	}
	if len(c.Extra) > 0 {
		observe.Logger(ctx).Debug("ignoring top-level keys of additions document", "additions", name, "keys", len(c.Extra))
	}
	return c.Buildings, nil
}
