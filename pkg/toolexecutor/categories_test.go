package toolexecutor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidCategory(t *testing.T) {
	tests := []struct {
		name     string
		category string
		want     bool
	}{
		{"valid read", "read", true},
		{"valid write", "write", true},
		{"valid text", "text", true},
		{"valid composite", "composite", true},
		{"valid general", "general", true},
		{"invalid category", "invalid", false},
		{"empty category", "", false},
		{"case insensitive", "READ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidCategory(tt.category)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCategory(t *testing.T) {
	cat, err := ParseCategory("  Web ")
	require.NoError(t, err)
	assert.Equal(t, CategoryWeb, cat)

	_, err = ParseCategory("spec")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid category")
}

func TestCategoryPolicy_Admits(t *testing.T) {
	tests := []struct {
		name     string
		policy   CategoryPolicy
		category ToolCategory
		want     bool
	}{
		{"empty policy admits all", CategoryPolicy{}, CategoryShell, true},
		{"allowed category", CategoryPolicy{Allow: []ToolCategory{CategoryRead}}, CategoryRead, true},
		{"not in allow list", CategoryPolicy{Allow: []ToolCategory{CategoryRead}}, CategoryWrite, false},
		{"deny overrides allow", CategoryPolicy{Allow: []ToolCategory{CategoryShell}, Deny: []ToolCategory{CategoryShell}}, CategoryShell, false},
		{"deny only", CategoryPolicy{Deny: []ToolCategory{CategoryWeb}}, CategoryText, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Admits(tt.category))
		})
	}
}

func TestFilterByPolicy(t *testing.T) {
	tools := []ToolMetadata{
		{ID: "fs.read_file", Category: CategoryRead},
		{ID: "fs.write_file", Category: CategoryWrite},
		{ID: "text.uppercase", Category: CategoryText},
	}

	filtered := FilterByPolicy(tools, CategoryPolicy{Deny: []ToolCategory{CategoryWrite}})
	require.Len(t, filtered, 2)
	assert.Equal(t, "fs.read_file", filtered[0].ID)
	assert.Equal(t, "text.uppercase", filtered[1].ID)
}
