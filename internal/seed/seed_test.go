package seed_test

import (
	"testing"

	"github.com/MrWong99/buildcatalog/internal/building"
	"github.com/MrWong99/buildcatalog/internal/catalog"
	"github.com/MrWong99/buildcatalog/internal/seed"
)

func TestAdditions(t *testing.T) {
	t.Parallel()

	defs, err := seed.Additions()
	if err != nil {
		t.Fatalf("Additions: %v", err)
	}
	if len(defs) != 22 {
		t.Fatalf("Additions: expected 22 definitions, got %d", len(defs))
	}
	if defs[0].ID != "training_grounds" || defs[len(defs)-1].ID != "headquarters" {
		t.Errorf("Additions: unexpected order, first %q last %q", defs[0].ID, defs[len(defs)-1].ID)
	}

	for _, d := range defs {
		if err := building.Validate(d); err != nil {
			t.Errorf("%s: invalid definition: %v", d.ID, err)
		}
		if !d.Type.IsKnown() {
			t.Errorf("%s: unknown type %q", d.ID, d.Type)
		}
		if len(d.Extra) != 0 {
			t.Errorf("%s: unexpected unmodelled keys %v", d.ID, d.Extra)
		}
	}
}

func TestAdditions_UniqueIDs(t *testing.T) {
	t.Parallel()

	defs, err := seed.Additions()
	if err != nil {
		t.Fatalf("Additions: %v", err)
	}
	if _, err := catalog.Merge(&catalog.Catalog{}, defs); err != nil {
		t.Fatalf("Merge into empty catalog: %v", err)
	}
}

func TestAdditions_OptionalFields(t *testing.T) {
	t.Parallel()

	defs, err := seed.Additions()
	if err != nil {
		t.Fatalf("Additions: %v", err)
	}
	byID := make(map[string]building.Definition, len(defs))
	for _, d := range defs {
		byID[d.ID] = d
	}

	hq := byID["headquarters"]
	if hq.MaxPerSettlement == nil || *hq.MaxPerSettlement != 1 {
		t.Errorf("headquarters: expected max_per_settlement 1, got %v", hq.MaxPerSettlement)
	}
	if garage := byID["garage"]; garage.MaxPerSettlement != nil {
		t.Errorf("garage: expected no cap, got %d", *garage.MaxPerSettlement)
	}

	var upkeep int
	for _, d := range defs {
		if d.MaintenanceCost != nil {
			upkeep++
		}
	}
	if upkeep != 3 {
		t.Errorf("expected 3 definitions with maintenance_cost, got %d", upkeep)
	}
}
