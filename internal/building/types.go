// Package building defines the building record used by the strategy game's
// data files.
//
// A [Definition] describes one constructible structure: what it costs, what
// it yields while operational, which passive modifiers it grants and which
// buildings or culture nodes gate it. Definitions are stored in catalog
// documents (see package catalog) and are otherwise treated as plain data:
// no game-balancing rules live here.
package building

import "encoding/json"

// Definition is one building record as it appears in a catalog document.
//
// A decoded record remembers which of its keys were missing or null in the
// source, so writing it back reproduces the same set of keys. Optional maps
// and lists that were present but empty ("production": {}) stay empty.
type Definition struct {
	// ID is the stable identifier. It must be unique within a catalog and is
	// never reused.
	ID string `json:"id" jsonschema:"title=Building ID,minLength=1,required"`

	// Name is the display label.
	Name string `json:"name" jsonschema:"title=Display name,required"`

	// Type classifies the building. See [Type] for the known values.
	Type Type `json:"type" jsonschema:"title=Building type,required"`

	// Cost lists resources consumed once when construction starts.
	Cost Amounts `json:"cost,omitzero"`

	// Production lists per-tick yields while the building is operational.
	Production Amounts `json:"production,omitzero"`

	// Effects lists passive modifiers granted by the building.
	Effects map[string]float64 `json:"effects,omitzero"`

	Description string `json:"description"`

	// ConstructionTime is the number of turns needed to complete the building.
	ConstructionTime int `json:"construction_time" jsonschema:"minimum=1,required"`

	// Requirements gates availability. Nil when the record has no
	// requirements key at all.
	Requirements *Requirements `json:"requirements,omitzero"`

	// MaintenanceCost lists recurring upkeep.
	MaintenanceCost Amounts `json:"maintenance_cost,omitzero"`

	// MaxPerSettlement caps concurrent instances. Nil means unlimited.
	MaxPerSettlement *int `json:"max_per_settlement,omitzero" jsonschema:"minimum=1"`

	// Tags are classification labels, in authoring order.
	Tags []string `json:"tags,omitzero"`

	// Extra holds keys not modelled above, verbatim and compacted, so that
	// records survive a load/save cycle unchanged.
	Extra map[string]json.RawMessage `json:"-" jsonschema:"-"`

	shape keyShape
}

// Requirements lists the prerequisites of a building.
type Requirements struct {
	// Buildings lists ids of buildings that must exist first.
	Buildings []string `json:"buildings,omitzero"`

	// CultureNodes lists ids of culture tree nodes that must be unlocked.
	CultureNodes []string `json:"culture_nodes,omitzero"`

	// Extra holds unmodelled requirement keys, verbatim and compacted.
	Extra map[string]json.RawMessage `json:"-" jsonschema:"-"`

	shape keyShape
}

// Amounts maps a resource name to a whole quantity. Numbers written with a
// fraction part or exponent are accepted when their value is integral
// ("scrap": 100.0 decodes as 100).
type Amounts map[string]int

// Type classifies a building. The set is open: values outside the known
// constants are accepted but reported by [Type.IsKnown].
type Type string

const (
	TypeMilitary       Type = "military"
	TypeProduction     Type = "production"
	TypeCultural       Type = "cultural"
	TypeDefensive      Type = "defensive"
	TypeInfrastructure Type = "infrastructure"
	TypeResearch       Type = "research"
)

// KnownTypes lists the building types the game ships with.
var KnownTypes = []Type{
	TypeMilitary,
	TypeProduction,
	TypeCultural,
	TypeDefensive,
	TypeInfrastructure,
	TypeResearch,
}

// IsKnown reports whether t is one of [KnownTypes].
func (t Type) IsKnown() bool {
	switch t {
	case TypeMilitary, TypeProduction, TypeCultural, TypeDefensive, TypeInfrastructure, TypeResearch:
		return true
	}
	return false
}

// RequiredBuildings returns the prerequisite building ids of d, or nil.
func (d Definition) RequiredBuildings() []string {
	if d.Requirements == nil {
		return nil
	}
	return d.Requirements.Buildings
}
