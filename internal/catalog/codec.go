package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/buildcatalog/internal/building"
)

// Format selects the text encoding of a catalog document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension. Anything other than
// .yaml or .yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Decode parses a catalog document.
//
// It returns an error wrapping [ErrParse] when data is not well-formed, and
// one wrapping [ErrSchema] when the root is not an object, the buildings key
// is missing or null, or a record has a field of the wrong type.
func Decode(data []byte, format Format) (*Catalog, error) {
	if format == FormatYAML {
		var err error
		if data, err = yamlToJSON(data); err != nil {
			return nil, err
		}
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrParse)
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil || root == nil {
		return nil, fmt.Errorf("%w: root must be an object", ErrSchema)
	}

	raw, ok := root[BuildingsKey]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q key", ErrSchema, BuildingsKey)
	}
	var defs []building.Definition
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSchema, BuildingsKey, err)
	}
	if defs == nil {
		return nil, fmt.Errorf("%w: %q must be a list", ErrSchema, BuildingsKey)
	}

	delete(root, BuildingsKey)
	var extra map[string]json.RawMessage
	if len(root) > 0 {
		extra = make(map[string]json.RawMessage, len(root))
		for k, v := range root {
			var buf bytes.Buffer
			if err := json.Compact(&buf, v); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrParse, k, err)
			}
			extra[k] = buf.Bytes()
		}
	}

	return &Catalog{Buildings: defs, Extra: extra}, nil
}

// Encode serialises c completely in memory. JSON output uses a two-space
// indent and ends with a newline; top-level keys are written in lexical order.
func Encode(c *Catalog, format Format) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("catalog: encode: catalog must not be nil")
	}

	root := make(map[string]any, len(c.Extra)+1)
	for k, v := range c.Extra {
		root[k] = v
	}
	buildings := c.Buildings
	if buildings == nil {
		buildings = []building.Definition{}
	}
	root[BuildingsKey] = buildings

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("catalog: encode json: %w", err)
	}
	if format != FormatYAML {
		return buf.Bytes(), nil
	}
	return jsonToYAML(buf.Bytes())
}

// yamlToJSON converts a YAML document to JSON so both formats share the same
// decoding rules.
func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		// Mappings with non-string keys have no JSON form.
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return out, nil
}

func jsonToYAML(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("catalog: encode yaml: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(plainNumbers(v)); err != nil {
		return nil, fmt.Errorf("catalog: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("catalog: encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// plainNumbers replaces json.Number values with int64 or float64 so the YAML
// encoder writes them as numbers, never in exponent form for integers.
func plainNumbers(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = plainNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = plainNumbers(e)
		}
		return x
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	}
	return v
}
