package composite

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidPlan marks structural problems in a plan
var ErrInvalidPlan = errors.New("invalid composite plan")

// Plan is an ordered list of steps run sequentially or in parallel
type Plan struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Parallel    bool   `json:"parallel,omitempty"`
	Steps       []Step `json:"steps"`
}

// Step is one node of a plan. Exactly one of Tool or Capability is set.
type Step struct {
	Name       string                  `json:"name,omitempty"`
	Tool       string                  `json:"tool,omitempty"`
	Capability string                  `json:"capability,omitempty"`
	Params     map[string]ParamMapping `json:"params,omitempty"`
	Result     *ResultMapping          `json:"result,omitempty"`
	Condition  *Condition              `json:"condition,omitempty"`
}

// Target returns the tool or capability id the step invokes
func (s Step) Target() string {
	if s.Tool != "" {
		return s.Tool
	}
	return s.Capability
}

// StepKey is the results-map key a step's output is stored under
func StepKey(index int) string {
	return "step" + strconv.Itoa(index)
}

// MappingKind selects how a parameter value is computed from the results map
type MappingKind string

const (
	MappingKey       MappingKind = "key"
	MappingPath      MappingKind = "path"
	MappingValue     MappingKind = "value"
	MappingTransform MappingKind = "transform"
)

// ParamMapping computes one step parameter. When Kind is empty it is inferred
// from the populated field. A bare JSON string decodes as a key mapping.
type ParamMapping struct {
	Kind      MappingKind `json:"kind,omitempty"`
	Key       string      `json:"key,omitempty"`
	Path      string      `json:"path,omitempty"`
	Value     interface{} `json:"value,omitempty"`
	Transform string      `json:"transform,omitempty"`
}

// FromKey copies a value from the results map
func FromKey(key string) ParamMapping {
	return ParamMapping{Kind: MappingKey, Key: key}
}

// FromPath extracts a value with a gjson path over the results map
func FromPath(path string) ParamMapping {
	return ParamMapping{Kind: MappingPath, Path: path}
}

// Literal supplies a constant
func Literal(value interface{}) ParamMapping {
	return ParamMapping{Kind: MappingValue, Value: value}
}

// Transformed applies a named transform to a key in the results map
func Transformed(transform, key string) ParamMapping {
	return ParamMapping{Kind: MappingTransform, Transform: transform, Key: key}
}

func (m *ParamMapping) UnmarshalJSON(data []byte) error {
	var key string
	if err := json.Unmarshal(data, &key); err == nil {
		*m = FromKey(key)
		return nil
	}

	type plain ParamMapping
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = ParamMapping(p)
	return nil
}

// kind resolves an unset Kind from the populated fields
func (m ParamMapping) kind() MappingKind {
	if m.Kind != "" {
		return m.Kind
	}
	switch {
	case m.Transform != "":
		return MappingTransform
	case m.Key != "":
		return MappingKey
	case m.Path != "":
		return MappingPath
	default:
		return MappingValue
	}
}

func (m ParamMapping) validate() error {
	switch m.kind() {
	case MappingKey:
		if m.Key == "" {
			return fmt.Errorf("key mapping requires a key")
		}
	case MappingPath:
		if m.Path == "" {
			return fmt.Errorf("path mapping requires a path")
		}
	case MappingValue:
	case MappingTransform:
		if m.Transform == "" {
			return fmt.Errorf("transform mapping requires a transform name")
		}
		if m.Key != "" && m.Path != "" {
			return fmt.Errorf("transform mapping takes a key or a path, not both")
		}
	default:
		return fmt.Errorf("unknown mapping kind %q", m.Kind)
	}
	return nil
}

// ResultMapping reshapes a step's output before it is stored.
// Path runs first, then Transform.
type ResultMapping struct {
	Path      string `json:"path,omitempty"`
	Transform string `json:"transform,omitempty"`
}

// ConditionKind selects how a step condition is evaluated
type ConditionKind string

const (
	ConditionExists    ConditionKind = "exists"
	ConditionEquals    ConditionKind = "equals"
	ConditionNotEquals ConditionKind = "not_equals"
	ConditionTruthy    ConditionKind = "truthy"
	ConditionTransform ConditionKind = "transform"
)

// Condition gates a step on the results map. The subject is Key, Path, or the
// whole map when neither is set.
type Condition struct {
	Kind      ConditionKind `json:"kind"`
	Key       string        `json:"key,omitempty"`
	Path      string        `json:"path,omitempty"`
	Value     interface{}   `json:"value,omitempty"`
	Transform string        `json:"transform,omitempty"`
}

func (c Condition) validate() error {
	if c.Key != "" && c.Path != "" {
		return fmt.Errorf("condition takes a key or a path, not both")
	}
	switch c.Kind {
	case ConditionExists:
		if c.Key == "" && c.Path == "" {
			return fmt.Errorf("exists condition requires a key or path")
		}
	case ConditionEquals, ConditionNotEquals, ConditionTruthy:
	case ConditionTransform:
		if c.Transform == "" {
			return fmt.Errorf("transform condition requires a transform name")
		}
	default:
		return fmt.Errorf("unknown condition kind %q", c.Kind)
	}
	return nil
}

// Validate checks the plan's structure. Transform names are checked at run time
// against the interpreter's registry.
func (p *Plan) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: plan is nil", ErrInvalidPlan)
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: plan has no steps", ErrInvalidPlan)
	}

	for i, step := range p.Steps {
		if (step.Tool == "") == (step.Capability == "") {
			return fmt.Errorf("%w: step %d must name exactly one of tool or capability", ErrInvalidPlan, i)
		}
		for name, mapping := range step.Params {
			if err := mapping.validate(); err != nil {
				return fmt.Errorf("%w: step %d param %s: %v", ErrInvalidPlan, i, name, err)
			}
		}
		if step.Condition != nil {
			if err := step.Condition.validate(); err != nil {
				return fmt.Errorf("%w: step %d: %v", ErrInvalidPlan, i, err)
			}
		}
	}
	return nil
}
