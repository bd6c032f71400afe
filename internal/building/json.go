package building

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
)

// member is one modelled key of a record, in the order it is written.
type member struct {
	key   string
	value any
	unset bool // optional field with no value
}

// keyShape records how the modelled keys of a decoded record appeared in the
// source document. Bits are indexed by member position.
type keyShape struct {
	absent uint16 // scalar keys missing from the source
	null   uint16 // keys present with a null value
}

func (d Definition) members() []member {
	return []member{
		{"id", d.ID, false},
		{"name", d.Name, false},
		{"type", d.Type, false},
		{"cost", d.Cost, d.Cost == nil},
		{"production", d.Production, d.Production == nil},
		{"effects", d.Effects, d.Effects == nil},
		{"description", d.Description, false},
		{"construction_time", d.ConstructionTime, false},
		{"requirements", d.Requirements, d.Requirements == nil},
		{"maintenance_cost", d.MaintenanceCost, d.MaintenanceCost == nil},
		{"max_per_settlement", d.MaxPerSettlement, d.MaxPerSettlement == nil},
		{"tags", d.Tags, d.Tags == nil},
	}
}

func (r Requirements) members() []member {
	return []member{
		{"buildings", r.Buildings, r.Buildings == nil},
		{"culture_nodes", r.CultureNodes, r.CultureNodes == nil},
	}
}

var (
	definitionKeys   = keysOf(Definition{}.members())
	requirementsKeys = keysOf(Requirements{}.members())
)

// definitionFields is Definition without its JSON methods.
type definitionFields Definition

// requirementsFields is Requirements without its JSON methods.
type requirementsFields Requirements

// UnmarshalJSON decodes the modelled fields, keeps every other key in Extra
// and remembers which scalar keys were missing or null. A null record is
// rejected.
func (d *Definition) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return errors.New("building: record must be an object, got null")
	}
	var fields definitionFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fields.shape = readShape(raw, definitionKeys, true)
	extra, err := unmodelled(raw, definitionKeys)
	if err != nil {
		return fmt.Errorf("building: %w", err)
	}
	fields.Extra = extra

	*d = Definition(fields)
	return nil
}

// MarshalJSON encodes the modelled fields in declaration order followed by
// the Extra keys in lexical order. Extra keys that collide with a modelled
// key are dropped. HTML characters are not escaped.
func (d Definition) MarshalJSON() ([]byte, error) {
	return encodeObject(d.members(), d.shape, d.Extra)
}

// UnmarshalJSON decodes the requirement lists and keeps every other key in
// Extra.
func (r *Requirements) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	var fields requirementsFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fields.shape = readShape(raw, requirementsKeys, false)
	extra, err := unmodelled(raw, requirementsKeys)
	if err != nil {
		return fmt.Errorf("building: requirements: %w", err)
	}
	fields.Extra = extra

	*r = Requirements(fields)
	return nil
}

// MarshalJSON encodes the requirement lists followed by the Extra keys.
func (r Requirements) MarshalJSON() ([]byte, error) {
	return encodeObject(r.members(), r.shape, r.Extra)
}

// UnmarshalJSON accepts an object of whole numbers.
func (a *Amounts) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*a = nil
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Amounts, len(raw))
	for k, v := range raw {
		n, err := wholeNumber(v)
		if err != nil {
			return fmt.Errorf("building: amount %q: %w", k, err)
		}
		out[k] = n
	}
	*a = out
	return nil
}

func wholeNumber(raw json.RawMessage) (int, error) {
	s := string(raw)
	if s == "" || (s[0] != '-' && (s[0] < '0' || s[0] > '9')) {
		return 0, fmt.Errorf("%s is not a number", s)
	}
	if i, err := strconv.ParseInt(s, 10, 0); err == nil {
		return int(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f < math.MinInt || f >= math.MaxInt {
		return 0, fmt.Errorf("%s is not a whole number", s)
	}
	return int(f), nil
}

func keysOf(members []member) []string {
	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = m.key
	}
	return keys
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

// readShape notes which keys are null and, when trackAbsent is set, which
// are missing altogether.
func readShape(raw map[string]json.RawMessage, keys []string, trackAbsent bool) keyShape {
	var s keyShape
	for i, k := range keys {
		bit := uint16(1) << i
		v, ok := raw[k]
		switch {
		case !ok && trackAbsent:
			s.absent |= bit
		case ok && isNull(v):
			s.null |= bit
		}
	}
	return s
}

// unmodelled returns the keys of raw not listed in keys, compacted.
func unmodelled(raw map[string]json.RawMessage, keys []string) (map[string]json.RawMessage, error) {
	var extra map[string]json.RawMessage
	for k, v := range raw {
		if slices.Contains(keys, k) {
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = buf.Bytes()
	}
	return extra, nil
}

func encodeObject(members []member, shape keyShape, extra map[string]json.RawMessage) ([]byte, error) {
	out := []byte{'{'}
	first := true
	add := func(key string, value []byte) error {
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		if !first {
			out = append(out, ',')
		}
		first = false
		out = append(out, k...)
		out = append(out, ':')
		out = append(out, value...)
		return nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = m.key
		bit := uint16(1) << i
		var value []byte
		switch {
		case shape.absent&bit != 0 && isZero(m.value):
			continue
		case shape.null&bit != 0 && (m.unset || isZero(m.value)):
			value = []byte("null")
		case m.unset:
			continue
		default:
			var err error
			if value, err = marshalNoEscape(m.value); err != nil {
				return nil, fmt.Errorf("building: field %q: %w", m.key, err)
			}
		}
		if err := add(m.key, value); err != nil {
			return nil, err
		}
	}

	for _, k := range slices.Sorted(maps.Keys(extra)) {
		if slices.Contains(keys, k) {
			continue
		}
		v := extra[k]
		if !json.Valid(v) {
			return nil, fmt.Errorf("building: extra field %q is not valid JSON", k)
		}
		if err := add(k, v); err != nil {
			return nil, err
		}
	}
	return append(out, '}'), nil
}

// isZero reports whether a scalar member still holds its zero value.
func isZero(v any) bool {
	switch x := v.(type) {
	case string:
		return x == ""
	case Type:
		return x == ""
	case int:
		return x == 0
	}
	return false
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
