// Package catalog loads, merges and persists building catalogs.
//
// A catalog document is a single object holding an ordered list of
// [building.Definition] records under the "buildings" key:
//
//	{ "buildings": [ { "id": "farm", ... }, ... ] }
//
// Other top-level keys are carried through unchanged. Documents are read and
// written through a [Store]; [FileStore] works on JSON or YAML files,
// [MemStore] keeps documents in memory and [PostgresStore] keeps them in a
// JSONB column.
//
// [Merge] is the only mutation and is pure: it returns a new catalog whose
// records are the old ones followed by the additions, and it refuses to
// produce a catalog with a repeated id.
//
// Concurrent runs against the same destination are serialised only by stores
// that implement [Locker]. Without a lock, two concurrent load/merge/save
// cycles can lose one of the updates.
package catalog

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/MrWong99/buildcatalog/internal/building"
)

// BuildingsKey is the root key holding the building list.
const BuildingsKey = "buildings"

// Catalog is the in-memory form of a catalog document.
type Catalog struct {
	// Buildings is the ordered record list.
	Buildings []building.Definition `json:"buildings"`

	// Extra holds the other top-level keys of the document, compacted.
	Extra map[string]json.RawMessage `json:"-"`
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Buildings)
}

// IDs returns the record ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, c.Len())
	if c == nil {
		return ids
	}
	for _, b := range c.Buildings {
		ids = append(ids, b.ID)
	}
	return ids
}

// Clone returns a copy of c whose record slice and top-level extras can be
// modified without affecting c. Individual records are copied shallowly.
func (c *Catalog) Clone() *Catalog {
	if c == nil {
		return &Catalog{}
	}
	return &Catalog{
		Buildings: slices.Clone(c.Buildings),
		Extra:     maps.Clone(c.Extra),
	}
}
