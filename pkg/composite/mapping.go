package composite

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/tidwall/gjson"
)

// resolver reads values out of one results-map snapshot. The JSON encoding
// used by path lookups is built once, on first use.
type resolver struct {
	results    map[string]interface{}
	transforms *Transforms
	encoded    []byte
}

func newResolver(results map[string]interface{}, transforms *Transforms) *resolver {
	return &resolver{results: results, transforms: transforms}
}

func (r *resolver) encode() ([]byte, error) {
	if r.encoded == nil {
		data, err := json.Marshal(r.results)
		if err != nil {
			return nil, fmt.Errorf("failed to encode results: %w", err)
		}
		r.encoded = data
	}
	return r.encoded, nil
}

// lookup returns the subject named by key or path, or the whole map when both are empty
func (r *resolver) lookup(key, path string) (interface{}, bool, error) {
	switch {
	case key != "":
		v, ok := r.results[key]
		return v, ok, nil
	case path != "":
		data, err := r.encode()
		if err != nil {
			return nil, false, err
		}
		res := gjson.GetBytes(data, path)
		if !res.Exists() {
			return nil, false, nil
		}
		return res.Value(), true, nil
	default:
		return r.results, true, nil
	}
}

// param computes one mapped parameter; ok is false when the source is absent
func (r *resolver) param(m ParamMapping) (interface{}, bool, error) {
	switch m.kind() {
	case MappingKey:
		return r.lookup(m.Key, "")
	case MappingPath:
		return r.lookup("", m.Path)
	case MappingValue:
		return m.Value, true, nil
	case MappingTransform:
		v, ok, err := r.lookup(m.Key, m.Path)
		if err != nil || !ok {
			return nil, ok, err
		}
		out, err := r.transforms.Apply(m.Transform, v)
		return out, err == nil, err
	}
	return nil, false, fmt.Errorf("unknown mapping kind %q", m.Kind)
}

// params builds a step's input. Without mappings the step receives the whole
// results map; mapped parameters whose source is absent are omitted.
func (r *resolver) params(mappings map[string]ParamMapping) (map[string]interface{}, error) {
	if len(mappings) == 0 {
		return copyMap(r.results), nil
	}

	out := make(map[string]interface{}, len(mappings))
	for name, m := range mappings {
		v, ok, err := r.param(m)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", name, err)
		}
		if ok {
			out[name] = v
		}
	}
	return out, nil
}

// condition evaluates a step gate; a nil condition always passes
func (r *resolver) condition(c *Condition) (bool, error) {
	if c == nil {
		return true, nil
	}

	v, ok, err := r.lookup(c.Key, c.Path)
	if err != nil {
		return false, err
	}

	switch c.Kind {
	case ConditionExists:
		return ok, nil
	case ConditionEquals:
		return ok && looselyEqual(v, c.Value), nil
	case ConditionNotEquals:
		return !ok || !looselyEqual(v, c.Value), nil
	case ConditionTruthy:
		return ok && Truthy(v), nil
	case ConditionTransform:
		out, err := r.transforms.Apply(c.Transform, v)
		if err != nil {
			return false, err
		}
		b, isBool := out.(bool)
		if !isBool {
			return false, fmt.Errorf("condition transform %s returned %T, want bool", c.Transform, out)
		}
		return b, nil
	}
	return false, fmt.Errorf("unknown condition kind %q", c.Kind)
}

// mapResult reshapes a step's raw output
func mapResult(m *ResultMapping, output interface{}, transforms *Transforms) (interface{}, error) {
	if m == nil {
		return output, nil
	}

	value := output
	if m.Path != "" {
		data, err := json.Marshal(output)
		if err != nil {
			return nil, fmt.Errorf("failed to encode step output: %w", err)
		}
		value = gjson.GetBytes(data, m.Path).Value()
	}
	if m.Transform != "" {
		out, err := transforms.Apply(m.Transform, value)
		if err != nil {
			return nil, err
		}
		value = out
	}
	return value, nil
}

// looselyEqual compares through a JSON round trip so 1, int64(1) and 1.0 match
func looselyEqual(a, b interface{}) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func normalize(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
