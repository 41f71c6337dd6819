package composite

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/toolengine/internal/observability"
	"github.com/harun/toolengine/internal/tracing"
	"github.com/harun/toolengine/pkg/hooks"
	te "github.com/harun/toolengine/pkg/toolexecutor"
)

// Executor is the part of the engine a plan dispatches steps to
type Executor interface {
	Execute(ctx context.Context, toolID string, params map[string]interface{}, opts *te.ExecuteOptions) te.ToolResult
	ExecuteCapability(ctx context.Context, capabilityID string, params map[string]interface{}, opts *te.ExecuteOptions) te.ToolResult
}

// Interpreter runs composite plans against an Executor
type Interpreter struct {
	executor   Executor
	transforms *Transforms

	mu    sync.RWMutex
	hooks te.EventSink
}

// NewInterpreter creates an interpreter; nil transforms selects the built-ins
func NewInterpreter(executor Executor, transforms *Transforms) *Interpreter {
	if transforms == nil {
		transforms = DefaultTransforms()
	}
	return &Interpreter{
		executor:   executor,
		transforms: transforms,
	}
}

// Transforms returns the registry plans resolve transform names against
func (in *Interpreter) Transforms() *Transforms {
	return in.transforms
}

// SetHooks installs the sink notified when a plan finishes
func (in *Interpreter) SetHooks(sink te.EventSink) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.hooks = sink
}

// Execute runs plan with a results map seeded from initialParams. On success
// the result data is the full results map: the initial params plus one
// step<N> entry per step that ran.
func (in *Interpreter) Execute(ctx context.Context, plan *Plan, initialParams map[string]interface{}, opts *te.ExecuteOptions) te.ToolResult {
	return in.run(ctx, plan, initialParams, opts, tracing.NewExecutionID())
}

func (in *Interpreter) run(ctx context.Context, plan *Plan, initialParams map[string]interface{}, opts *te.ExecuteOptions, executionID string) (result te.ToolResult) {
	start := time.Now()
	if ctx == nil {
		ctx = context.Background()
	}

	parallel := plan != nil && plan.Parallel
	planID := ""
	if plan != nil {
		planID = plan.ID
	}

	ctx, span := tracing.StartSpan(tracing.WithExecutionID(ctx, executionID), "composite.execute",
		attribute.String("composite.plan", planID),
		attribute.Bool("composite.parallel", parallel),
		attribute.String("execution.id", executionID),
	)

	defer func() {
		if r := recover(); r != nil {
			result = te.Failure(te.CodeCompositeExecutionError, fmt.Sprintf("unexpected error: %v", r), nil,
				executionID, time.Since(start))
		}
		result.ExecutionTime = time.Since(start)
		result.ExecutionID = executionID

		observability.RecordCompositeExecution(parallel, result.ExecutionTime, result.Success)
		if result.Success {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, result.Error.Message)
			log.Warn().
				Str("plan", planID).
				Str("execution_id", executionID).
				Str("code", string(result.Error.Code)).
				Msg(result.Error.Message)
		}
		span.End()
		in.emit(ctx, planID, executionID, result)
	}()

	if err := plan.Validate(); err != nil {
		return in.fault(executionID, start, err.Error(), nil)
	}

	log.Debug().
		Str("plan", planID).
		Bool("parallel", parallel).
		Int("steps", len(plan.Steps)).
		Msg("Executing composite plan")

	results := copyMap(initialParams)
	if parallel {
		return in.runParallel(ctx, plan, results, opts, executionID, start)
	}
	return in.runSequential(ctx, plan, results, opts, executionID, start)
}

func (in *Interpreter) runSequential(ctx context.Context, plan *Plan, results map[string]interface{}, opts *te.ExecuteOptions, executionID string, start time.Time) te.ToolResult {
	for i, step := range plan.Steps {
		r := newResolver(results, in.transforms)

		run, err := r.condition(step.Condition)
		if err != nil {
			return in.fault(executionID, start, fmt.Sprintf("step %d condition: %v", i, err), stepDetails(i, step, nil))
		}
		if !run {
			observability.RecordCompositeStepSkipped(step.Target())
			log.Debug().Int("step", i).Str("target", step.Target()).Msg("Composite step skipped")
			continue
		}

		params, err := r.params(step.Params)
		if err != nil {
			return in.fault(executionID, start, fmt.Sprintf("step %d: %v", i, err), stepDetails(i, step, nil))
		}

		res := in.dispatch(ctx, step, params, subOptions(opts, executionID, plan.ID, i))
		if !res.Success {
			return te.Failure(te.CodeCompositeStepFailed,
				fmt.Sprintf("step %d (%s) failed: %s", i, step.Target(), res.Error.Message),
				stepDetails(i, step, res.Error), executionID, time.Since(start))
		}

		value, err := mapResult(step.Result, res.Data, in.transforms)
		if err != nil {
			return in.fault(executionID, start, fmt.Sprintf("step %d result: %v", i, err), stepDetails(i, step, nil))
		}
		results[StepKey(i)] = value
	}

	return te.ToolResult{Success: true, Data: results}
}

type launch struct {
	index  int
	step   Step
	params map[string]interface{}
}

// runParallel starts every non-skipped step at once. Conditions and parameter
// mappings see only the initial params; no step observes another's output.
func (in *Interpreter) runParallel(ctx context.Context, plan *Plan, results map[string]interface{}, opts *te.ExecuteOptions, executionID string, start time.Time) te.ToolResult {
	r := newResolver(copyMap(results), in.transforms)

	launches := make([]launch, 0, len(plan.Steps))
	for i, step := range plan.Steps {
		run, err := r.condition(step.Condition)
		if err != nil {
			return in.fault(executionID, start, fmt.Sprintf("step %d condition: %v", i, err), stepDetails(i, step, nil))
		}
		if !run {
			observability.RecordCompositeStepSkipped(step.Target())
			continue
		}
		params, err := r.params(step.Params)
		if err != nil {
			return in.fault(executionID, start, fmt.Sprintf("step %d: %v", i, err), stepDetails(i, step, nil))
		}
		launches = append(launches, launch{index: i, step: step, params: params})
	}

	outcomes := make([]te.ToolResult, len(plan.Steps))
	var wg conc.WaitGroup
	for _, l := range launches {
		wg.Go(func() {
			outcomes[l.index] = in.dispatch(ctx, l.step, l.params, subOptions(opts, executionID, plan.ID, l.index))
		})
	}
	if recovered := wg.WaitAndRecover(); recovered != nil {
		return in.fault(executionID, start, fmt.Sprintf("parallel step panicked: %v", recovered.Value), nil)
	}

	for _, l := range launches {
		if res := outcomes[l.index]; !res.Success {
			return te.Failure(te.CodeCompositeExecutionError,
				fmt.Sprintf("parallel step %d (%s) failed: %s", l.index, l.step.Target(), res.Error.Message),
				stepDetails(l.index, l.step, res.Error), executionID, time.Since(start))
		}
	}

	for _, l := range launches {
		value, err := mapResult(l.step.Result, outcomes[l.index].Data, in.transforms)
		if err != nil {
			return in.fault(executionID, start, fmt.Sprintf("step %d result: %v", l.index, err), stepDetails(l.index, l.step, nil))
		}
		results[StepKey(l.index)] = value
	}

	return te.ToolResult{Success: true, Data: results}
}

func (in *Interpreter) dispatch(ctx context.Context, step Step, params map[string]interface{}, opts *te.ExecuteOptions) te.ToolResult {
	if step.Tool != "" {
		return in.executor.Execute(ctx, step.Tool, params, opts)
	}
	return in.executor.ExecuteCapability(ctx, step.Capability, params, opts)
}

func (in *Interpreter) fault(executionID string, start time.Time, message string, details map[string]interface{}) te.ToolResult {
	return te.Failure(te.CodeCompositeExecutionError, message, details, executionID, time.Since(start))
}

func (in *Interpreter) emit(ctx context.Context, planID, executionID string, result te.ToolResult) {
	in.mu.RLock()
	sink := in.hooks
	in.mu.RUnlock()
	if sink == nil {
		return
	}
	data := map[string]interface{}{
		"plan_id":      planID,
		"execution_id": executionID,
		"success":      result.Success,
		"duration_ms":  result.ExecutionTime.Milliseconds(),
	}
	if result.Error != nil {
		data["error_code"] = string(result.Error.Code)
	}

	go func() {
		if err := sink.Trigger(context.WithoutCancel(ctx), hooks.EventCompositeFinished, data); err != nil {
			log.Warn().Err(err).Str("plan", planID).Msg("Lifecycle hook failed")
		}
	}()
}

// subOptions derives a step's options: same requester, timeout and retries,
// parented to the composite execution.
func subOptions(opts *te.ExecuteOptions, executionID, planID string, index int) *te.ExecuteOptions {
	out := te.ExecuteOptions{}
	if opts != nil {
		out = *opts
	}
	out.ParentExecutionID = executionID

	metadata := make(map[string]interface{}, len(out.Metadata)+2)
	for k, v := range out.Metadata {
		metadata[k] = v
	}
	metadata["composite_plan"] = planID
	metadata["composite_step"] = index
	out.Metadata = metadata

	return &out
}

func stepDetails(index int, step Step, cause *te.ToolError) map[string]interface{} {
	details := map[string]interface{}{
		"stepIndex": index,
	}
	if step.Tool != "" {
		details["toolId"] = step.Tool
	} else {
		details["capabilityId"] = step.Capability
	}
	if cause != nil {
		details["error"] = cause
	}
	return details
}
