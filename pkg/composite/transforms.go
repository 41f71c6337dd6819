package composite

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/harun/toolengine/pkg/coretools"
)

// TransformFunc is a pure function applied to a mapped value
type TransformFunc func(value interface{}) (interface{}, error)

// Transforms is the closed set of named transforms plans may reference
type Transforms struct {
	mu    sync.RWMutex
	funcs map[string]TransformFunc
}

// NewTransforms creates an empty registry
func NewTransforms() *Transforms {
	return &Transforms{funcs: make(map[string]TransformFunc)}
}

// DefaultTransforms returns a registry holding the built-in transforms
func DefaultTransforms() *Transforms {
	t := NewTransforms()
	for name, fn := range builtinTransforms {
		t.funcs[name] = fn
	}
	return t
}

// Register adds a named transform
func (t *Transforms) Register(name string, fn TransformFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("transform requires a name and a function")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.funcs[name]; exists {
		return fmt.Errorf("transform already registered: %s", name)
	}
	t.funcs[name] = fn
	return nil
}

// Get looks up a transform
func (t *Transforms) Get(name string) (TransformFunc, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, ok := t.funcs[name]
	return fn, ok
}

// Names lists registered transforms, sorted
func (t *Transforms) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.funcs))
	for name := range t.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply runs a named transform
func (t *Transforms) Apply(name string, value interface{}) (interface{}, error) {
	fn, ok := t.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown transform: %s", name)
	}
	out, err := fn(value)
	if err != nil {
		return nil, fmt.Errorf("transform %s: %w", name, err)
	}
	return out, nil
}

var builtinTransforms = map[string]TransformFunc{
	"json":      toJSON,
	"string":    toString,
	"uppercase": stringTransform(strings.ToUpper),
	"lowercase": stringTransform(strings.ToLower),
	"trim":      stringTransform(strings.TrimSpace),
	"length":    length,
	"not":       func(v interface{}) (interface{}, error) { return !Truthy(v), nil },
	"truthy":    func(v interface{}) (interface{}, error) { return Truthy(v), nil },
	"is_empty":  func(v interface{}) (interface{}, error) { return isEmpty(v), nil },
	"keys":      keys,
}

func toJSON(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func toString(v interface{}) (interface{}, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return toJSON(v)
}

func stringTransform(fn func(string) string) TransformFunc {
	return func(v interface{}) (interface{}, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return fn(s), nil
	}
}

func length(v interface{}) (interface{}, error) {
	n, err := coretools.Length(v)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func keys(v interface{}) (interface{}, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", v)
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	}
	return false
}

// Truthy reports whether v is set: not nil, false, zero, or empty
func Truthy(v interface{}) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}
