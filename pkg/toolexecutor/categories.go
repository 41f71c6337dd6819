package toolexecutor

import (
	"fmt"
	"strings"
)

// ToolCategory groups tools for discovery
type ToolCategory string

const (
	CategoryRead      ToolCategory = "read"
	CategoryWrite     ToolCategory = "write"
	CategoryShell     ToolCategory = "shell"
	CategoryWeb       ToolCategory = "web"
	CategoryText      ToolCategory = "text"
	CategoryComposite ToolCategory = "composite"
	CategoryGeneral   ToolCategory = "general"
)

// AllCategories returns all valid tool categories
func AllCategories() []ToolCategory {
	return []ToolCategory{
		CategoryRead,
		CategoryWrite,
		CategoryShell,
		CategoryWeb,
		CategoryText,
		CategoryComposite,
		CategoryGeneral,
	}
}

// IsValidCategory checks if a category is valid
func IsValidCategory(category string) bool {
	_, err := ParseCategory(category)
	return err == nil
}

// ParseCategory normalizes a category name
func ParseCategory(category string) (ToolCategory, error) {
	cat := ToolCategory(strings.ToLower(strings.TrimSpace(category)))
	for _, valid := range AllCategories() {
		if cat == valid {
			return cat, nil
		}
	}
	return "", fmt.Errorf("invalid category: %s", category)
}

// CategoryPolicy admits tools by category. Deny overrides allow; an empty
// allow list admits every category not denied.
type CategoryPolicy struct {
	Allow []ToolCategory
	Deny  []ToolCategory
}

// Admits reports whether the policy lets a tool of the given category through
func (p CategoryPolicy) Admits(category ToolCategory) bool {
	for _, denied := range p.Deny {
		if category == denied {
			return false
		}
	}
	if len(p.Allow) == 0 {
		return true
	}
	for _, allowed := range p.Allow {
		if category == allowed {
			return true
		}
	}
	return false
}

// FilterByPolicy keeps the tools whose category the policy admits
func FilterByPolicy(tools []ToolMetadata, policy CategoryPolicy) []ToolMetadata {
	filtered := []ToolMetadata{}
	for _, meta := range tools {
		if policy.Admits(meta.Category) {
			filtered = append(filtered, meta)
		}
	}
	return filtered
}
