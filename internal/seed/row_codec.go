package seed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

const refKey = "_ref"

// UnmarshalYAML preserves declaration order of row columns, which yaml.v3's
// default map decoding would otherwise discard. Mapping nodes store their
// key/value pairs in source order in Content.
func (r *Row) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("seed: row must be a mapping, got %v", node.Kind)
	}
	r.Values = make(map[string]any)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key string
		if err := node.Content[i].Decode(&key); err != nil {
			return fmt.Errorf("seed: row key: %w", err)
		}
		if key == refKey {
			if err := node.Content[i+1].Decode(&r.Ref); err != nil {
				return fmt.Errorf("seed: row _ref: %w", err)
			}
			continue
		}
		var val any
		if err := node.Content[i+1].Decode(&val); err != nil {
			return fmt.Errorf("seed: row column %q: %w", key, err)
		}
		r.Columns = append(r.Columns, key)
		r.Values[key] = val
	}
	return nil
}

// UnmarshalJSON preserves declaration order of row columns by walking the
// raw token stream instead of decoding straight into a map.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("seed: row: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("seed: row must be a JSON object")
	}

	r.Values = make(map[string]any)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("seed: row key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("seed: row key must be a string")
		}

		var val any
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("seed: row column %q: %w", key, err)
		}
		val = normalizeJSONNumber(val)

		if key == refKey {
			ref, ok := val.(string)
			if !ok {
				return fmt.Errorf("seed: row _ref must be a string")
			}
			r.Ref = ref
			continue
		}
		r.Columns = append(r.Columns, key)
		r.Values[key] = val
	}
	return nil
}

// UnmarshalTOML accepts the already-decoded generic value BurntSushi/toml
// hands to types implementing its Unmarshaler interface. Go maps have no
// stable iteration order, so TOML rows fall back to a sorted column order;
// this is a documented limitation of the supplemented TOML plan format
// (see DESIGN.md), not a correctness issue, since columns and values stay
// paired by key regardless of order.
func (r *Row) UnmarshalTOML(data any) error {
	m, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf("seed: row must be a table")
	}
	r.Values = make(map[string]any)
	keys := make([]string, 0, len(m))
	for k := range m {
		if k == refKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	r.Columns = keys
	for _, k := range keys {
		r.Values[k] = m[k]
	}
	if ref, ok := m[refKey]; ok {
		s, ok := ref.(string)
		if !ok {
			return fmt.Errorf("seed: row _ref must be a string")
		}
		r.Ref = s
	}
	return nil
}

// normalizeJSONNumber converts a json.Number leaf (and any nested in maps
// or slices) into an int64 or float64, matching the shape ResolveValue
// expects from the YAML decoder.
func normalizeJSONNumber(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, inner := range t {
			t[k] = normalizeJSONNumber(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = normalizeJSONNumber(inner)
		}
		return t
	default:
		return v
	}
}
