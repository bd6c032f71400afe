package building

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Validate checks a [Definition] against the catalog's field constraints.
//
// Rules:
//   - ID and Name must be non-empty.
//   - ConstructionTime must be greater than zero.
//   - MaxPerSettlement, when set, must be at least 1.
//   - Cost and MaintenanceCost amounts must not be negative.
//   - Requirement ids must be non-empty.
//
// An unknown [Type] is not an error; callers decide whether to warn.
func Validate(def Definition) error {
	var errs []error

	if def.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if def.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if def.ConstructionTime <= 0 {
		errs = append(errs, fmt.Errorf("construction_time %d must be greater than zero", def.ConstructionTime))
	}
	if def.MaxPerSettlement != nil && *def.MaxPerSettlement < 1 {
		errs = append(errs, fmt.Errorf("max_per_settlement %d must be at least 1", *def.MaxPerSettlement))
	}
	errs = append(errs, negativeAmounts("cost", def.Cost)...)
	errs = append(errs, negativeAmounts("maintenance_cost", def.MaintenanceCost)...)

	if def.Requirements != nil {
		for i, id := range def.Requirements.Buildings {
			if id == "" {
				errs = append(errs, fmt.Errorf("requirements.buildings[%d] must not be empty", i))
			}
		}
		for i, id := range def.Requirements.CultureNodes {
			if id == "" {
				errs = append(errs, fmt.Errorf("requirements.culture_nodes[%d] must not be empty", i))
			}
		}
	}

	return errors.Join(errs...)
}

func negativeAmounts(field string, amounts Amounts) []error {
	var errs []error
	for _, res := range slices.Sorted(maps.Keys(amounts)) {
		if amounts[res] < 0 {
			errs = append(errs, fmt.Errorf("%s.%s %d must not be negative", field, res, amounts[res]))
		}
	}
	return errs
}
