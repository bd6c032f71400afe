package catalog

import (
	"slices"

	"github.com/MrWong99/buildcatalog/internal/building"
)

// Merge returns a new catalog holding the records of c followed by additions,
// in the order given. c is not modified.
//
// Merge fails with a [*DuplicateIDError] when an addition reuses an id already
// in c, when an id repeats within additions, or when c itself already holds a
// repeated id. On failure it returns a nil catalog.
func Merge(c *Catalog, additions []building.Definition) (*Catalog, error) {
	seen := make(map[string]bool, c.Len()+len(additions))
	var dups []string
	reported := make(map[string]bool)

	check := func(id string) {
		if seen[id] {
			if !reported[id] {
				dups = append(dups, id)
				reported[id] = true
			}
			return
		}
		seen[id] = true
	}
	for _, id := range c.IDs() {
		check(id)
	}
	for _, d := range additions {
		check(d.ID)
	}
	if len(dups) > 0 {
		return nil, &DuplicateIDError{IDs: dups}
	}

	merged := c.Clone()
	merged.Buildings = slices.Grow(merged.Buildings, len(additions))
	merged.Buildings = append(merged.Buildings, additions...)
	return merged, nil
}

// Reference is a prerequisite that points at a building id missing from the
// catalog.
type Reference struct {
	// From is the id of the building that declares the requirement.
	From string

	// Missing is the required id that no record carries.
	Missing string

	// Suggestions lists existing ids that look like Missing, best first.
	Suggestions []string
}

// maxSuggestions bounds Reference.Suggestions.
const maxSuggestions = 3

// DanglingRequirements lists every requirements.buildings entry in c that
// names an id not present in c, in catalog order. Culture nodes live outside
// the catalog and are not checked.
func DanglingRequirements(c *Catalog) []Reference {
	ids := c.IDs()
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}

	var refs []Reference
	for _, b := range c.Buildings {
		for _, req := range b.RequiredBuildings() {
			if known[req] {
				continue
			}
			refs = append(refs, Reference{
				From:        b.ID,
				Missing:     req,
				Suggestions: building.Suggest(req, ids, maxSuggestions),
			})
		}
	}
	return refs
}
