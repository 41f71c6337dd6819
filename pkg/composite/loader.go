package composite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"sigs.k8s.io/yaml"
)

const planIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// ParsePlan decodes a YAML or JSON plan and validates it. A plan without an
// id gets a generated one.
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}

	if plan.ID == "" {
		id, err := gonanoid.Generate(planIDAlphabet, 10)
		if err != nil {
			return nil, fmt.Errorf("failed to generate plan id: %w", err)
		}
		plan.ID = "plan-" + id
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// LoadPlan reads a plan file. Without an id in the file the base name is used.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan %s: %w", path, err)
	}

	plan, err := ParsePlan(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan %s: %w", path, err)
	}
	if !hasExplicitID(data) {
		plan.ID = planNameFromPath(path)
	}
	return plan, nil
}

// MarshalPlan encodes a plan as YAML
func MarshalPlan(plan *Plan) ([]byte, error) {
	return yaml.Marshal(plan)
}

func hasExplicitID(data []byte) bool {
	var head struct {
		ID string `json:"id"`
	}
	return yaml.Unmarshal(data, &head) == nil && head.ID != ""
}

func planNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isPlanFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
