package toolexecutor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harun/toolengine/internal/observability"
	"github.com/harun/toolengine/internal/tracing"
)

// rankProviders orders candidate tools: least privilege first, in-process before
// remote protocols, then newest version. Full ties keep registration order.
func rankProviders(entries []*registration) []*registration {
	ranked := append([]*registration(nil), entries...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].meta, ranked[j].meta
		if a.MinSecurityLevel != b.MinSecurityLevel {
			return a.MinSecurityLevel < b.MinSecurityLevel
		}
		aLocal, bLocal := a.Protocol == ProtocolInProcess, b.Protocol == ProtocolInProcess
		if aLocal != bLocal {
			return aLocal
		}
		return a.Version > b.Version
	})
	return ranked
}

// ResolveCapability returns the metadata of the tool that would serve capabilityID
func (e *Engine) ResolveCapability(capabilityID string) (*ToolMetadata, bool) {
	providers := e.registry.providerEntries(capabilityID)
	if len(providers) == 0 {
		return nil, false
	}
	meta := rankProviders(providers)[0].meta.clone()
	return &meta, true
}

// ExecuteCapability runs the best provider of a capability through the pipeline
func (e *Engine) ExecuteCapability(ctx context.Context, capabilityID string, params map[string]interface{}, opts *ExecuteOptions) ToolResult {
	providers := e.registry.providerEntries(capabilityID)
	if len(providers) == 0 {
		start := time.Now()
		executionID := tracing.NewExecutionID()
		log.Error().Str("capability", capabilityID).Msg("No tool provides capability")
		observability.RecordToolExecution(capabilityID, time.Since(start), string(CodeCapabilityNotFound))
		return Failure(CodeCapabilityNotFound, fmt.Sprintf("no tool provides capability: %s", capabilityID),
			map[string]interface{}{"capability_id": capabilityID}, executionID, time.Since(start))
	}

	best := rankProviders(providers)[0]
	log.Debug().
		Str("capability", capabilityID).
		Str("tool", best.meta.ID).
		Int("candidates", len(providers)).
		Msg("Capability resolved")

	return e.execute(ctx, best, params, opts)
}
