package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/iancoleman/orderedmap"
	"github.com/invopop/jsonschema"

	"github.com/MrWong99/buildcatalog/internal/building"
)

// JSONSchema returns a JSON Schema describing a catalog document, for editor
// tooling and external validation. Unmodelled keys are permitted both at the
// root and on records, matching what [Decode] accepts.
func JSONSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  true,
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}

	record := reflector.Reflect(&building.Definition{})
	record.Version = ""
	record.Title = "Building Definition"
	record.Description = "One constructible structure: cost, output, effects and prerequisites."

	props := orderedmap.New()
	props.Set(BuildingsKey, &jsonschema.Schema{
		Type:  "array",
		Items: record,
	})

	return &jsonschema.Schema{
		Version:              jsonschema.Version,
		Title:                "Building Catalog",
		Description:          "Ordered list of building definitions under the buildings key.",
		Type:                 "object",
		Required:             []string{BuildingsKey},
		Properties:           props,
		AdditionalProperties: &jsonschema.Schema{},
	}
}

// MarshalJSONSchema renders [JSONSchema] with a two-space indent.
func MarshalJSONSchema() ([]byte, error) {
	data, err := json.MarshalIndent(JSONSchema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("catalog: marshal json schema: %w", err)
	}
	return append(data, '\n'), nil
}
