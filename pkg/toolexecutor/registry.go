package toolexecutor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// ErrDuplicateTool is returned when a tool id is registered twice
var ErrDuplicateTool = errors.New("duplicate tool")

// DuplicateToolError names the conflicting tool id
type DuplicateToolError struct {
	ID string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool already registered: %s", e.ID)
}

// Is makes DuplicateToolError match ErrDuplicateTool
func (e *DuplicateToolError) Is(target error) bool {
	return target == ErrDuplicateTool
}

// DiscoveryFilter narrows DiscoverTools. Empty fields are unconstrained.
type DiscoveryFilter struct {
	Category         ToolCategory
	Tags             []string
	Capabilities     []string
	Protocol         Protocol
	RequiresAuth     *bool
	MaxSecurityLevel *SecurityLevel
}

// matches reports whether every supplied field holds for meta
func (f *DiscoveryFilter) matches(meta ToolMetadata) bool {
	if f == nil {
		return true
	}
	if f.Category != "" && meta.Category != f.Category {
		return false
	}
	if len(f.Tags) > 0 && !intersects(meta.Tags, f.Tags) {
		return false
	}
	if len(f.Capabilities) > 0 && !intersects(meta.Capabilities, f.Capabilities) {
		return false
	}
	if f.Protocol != "" && meta.Protocol != f.Protocol {
		return false
	}
	if f.RequiresAuth != nil && meta.RequiresAuth != *f.RequiresAuth {
		return false
	}
	if f.MaxSecurityLevel != nil && meta.MinSecurityLevel > *f.MaxSecurityLevel {
		return false
	}
	return true
}

func intersects(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// registration is the registry's own view of a tool. meta is a normalized deep
// copy taken at Register time; the caller's Tool.Metadata is never read again.
type registration struct {
	meta   ToolMetadata
	tool   *Tool
	schema *gojsonschema.Schema
}

// newRegistration validates tool and snapshots its metadata
func newRegistration(tool *Tool) (*registration, error) {
	if err := validateToolDefinition(tool); err != nil {
		return nil, fmt.Errorf("invalid tool definition: %w", err)
	}

	meta := tool.Metadata.clone()
	if meta.Name == "" {
		meta.Name = meta.ID
	}
	if meta.Category == "" {
		meta.Category = CategoryGeneral
	}
	if meta.Protocol == "" {
		meta.Protocol = ProtocolInProcess
	}

	schema, err := generateJSONSchema(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema for %s: %w", meta.ID, err)
	}
	return &registration{meta: meta, tool: tool, schema: schema}, nil
}

// Registry holds tool definitions and the capability index derived from them
type Registry struct {
	mu sync.RWMutex

	tools map[string]*registration
	order []string

	capabilities    map[string]*ToolCapability
	capabilityOrder []string
	providers       map[string][]string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		tools:        make(map[string]*registration),
		capabilities: make(map[string]*ToolCapability),
		providers:    make(map[string][]string),
	}
}

// Register adds a tool. The registry keeps its own copy of the metadata, so
// later changes to tool.Metadata have no effect on discovery or execution.
func (r *Registry) Register(tool *Tool) error {
	reg, err := newRegistration(tool)
	if err != nil {
		return err
	}
	meta := reg.meta

	r.mu.Lock()
	defer r.mu.Unlock()

	id := meta.ID
	if _, exists := r.tools[id]; exists {
		return &DuplicateToolError{ID: id}
	}

	r.tools[id] = reg
	r.order = append(r.order, id)

	for _, capID := range uniqueStrings(meta.Capabilities) {
		if _, ok := r.capabilities[capID]; !ok {
			r.capabilities[capID] = &ToolCapability{
				ID:          capID,
				Name:        capID,
				Description: meta.Description,
				Parameters:  meta.clone().Parameters,
				Returns:     meta.Returns,
				Tags:        append([]string(nil), meta.Tags...),
			}
			r.capabilityOrder = append(r.capabilityOrder, capID)
		}
		r.providers[capID] = append(r.providers[capID], id)
	}

	log.Info().
		Str("tool", id).
		Strs("capabilities", meta.Capabilities).
		Msg("Tool registered")

	return nil
}

// Unregister removes a tool, returning false if it was unknown
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.tools[id]
	if !ok {
		return false
	}

	delete(r.tools, id)
	r.order = removeString(r.order, id)

	for _, capID := range uniqueStrings(reg.meta.Capabilities) {
		remaining := removeString(r.providers[capID], id)
		if len(remaining) == 0 {
			delete(r.providers, capID)
			delete(r.capabilities, capID)
			r.capabilityOrder = removeString(r.capabilityOrder, capID)
			continue
		}
		r.providers[capID] = remaining
	}

	log.Info().Str("tool", id).Msg("Tool unregistered")

	return true
}

// Get returns a copy of a registered tool's metadata
func (r *Registry) Get(id string) (ToolMetadata, bool) {
	reg, ok := r.lookup(id)
	if !ok {
		return ToolMetadata{}, false
	}
	return reg.meta.clone(), true
}

func (r *Registry) lookup(id string) (*registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.tools[id]
	return reg, ok
}

// Count returns the number of registered tools
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Discover returns metadata for tools matching every supplied filter field, in registration order
func (r *Registry) Discover(filter *DiscoveryFilter) []ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []ToolMetadata{}
	for _, id := range r.order {
		meta := r.tools[id].meta
		if filter.matches(meta) {
			out = append(out, meta.clone())
		}
	}
	return out
}

// DiscoverCapabilities returns capabilities whose tags intersect tags; all when tags is empty
func (r *Registry) DiscoverCapabilities(tags []string) []ToolCapability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []ToolCapability{}
	for _, capID := range r.capabilityOrder {
		c := r.capabilities[capID]
		if len(tags) > 0 && !intersects(c.Tags, tags) {
			continue
		}
		cp := *c
		cp.Tags = append([]string(nil), c.Tags...)
		cp.Parameters = append([]ToolParameter(nil), c.Parameters...)
		out = append(out, cp)
	}
	return out
}

// Providers returns metadata of the tools advertising a capability, in registration order
func (r *Registry) Providers(capabilityID string) []ToolMetadata {
	entries := r.providerEntries(capabilityID)
	out := make([]ToolMetadata, 0, len(entries))
	for _, reg := range entries {
		out = append(out, reg.meta.clone())
	}
	return out
}

func (r *Registry) providerEntries(capabilityID string) []*registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.providers[capabilityID]
	out := make([]*registration, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.tools[id])
	}
	return out
}

// Capability returns one capability entry
func (r *Registry) Capability(id string) (ToolCapability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.capabilities[id]
	if !ok {
		return ToolCapability{}, false
	}
	return *c, true
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func removeString(in []string, target string) []string {
	out := in[:0:0]
	for _, s := range in {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
