package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harun/toolengine/pkg/composite"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run and inspect composite plans",
}

var planRunCmd = &cobra.Command{
	Use:   "run <file|plan-id>",
	Short: "Execute a composite plan from a file or the plans directory",
	Long: `Execute a composite plan. The argument is read as a YAML or JSON plan
file when such a file exists, otherwise it names a plan in plans_dir.
--params supplies the plan's initial params.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlanRun,
}

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "List plans in the plans directory",
	Args:  cobra.NoArgs,
	RunE:  runPlanList,
}

var planValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a plan file without running it",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanValidate,
}

func init() {
	planCmd.AddCommand(planRunCmd)
	planCmd.AddCommand(planListCmd)
	planCmd.AddCommand(planValidateCmd)
	rootCmd.AddCommand(planCmd)
}

func resolvePlan(rt *Runtime, ref string) (*composite.Plan, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return composite.LoadPlan(ref)
	}
	if rt.Plans == nil {
		return nil, fmt.Errorf("plan file %s not found and no plans_dir is configured", ref)
	}
	plan, ok := rt.Plans.Get(ref)
	if !ok {
		return nil, fmt.Errorf("plan not found: %s", ref)
	}
	return plan, nil
}

func runPlanRun(cmd *cobra.Command, args []string) error {
	params, err := parseParams(runParams)
	if err != nil {
		return err
	}

	return withRuntime(func(rt *Runtime) error {
		plan, err := resolvePlan(rt, args[0])
		if err != nil {
			return err
		}
		opts, err := executeOptions(rt)
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()
		return reportResult(cmd, rt.Interpreter.Execute(ctx, plan, params, opts))
	})
}

func runPlanList(cmd *cobra.Command, args []string) error {
	return withRuntime(func(rt *Runtime) error {
		if rt.Plans == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No plans_dir configured.")
			return nil
		}
		ids := rt.Plans.IDs()
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No plans found.")
			return nil
		}
		for _, id := range ids {
			plan, _ := rt.Plans.Get(id)
			fmt.Fprintf(cmd.OutOrStdout(), "- %s (%d steps, %s): %s\n", id, len(plan.Steps), planMode(plan), plan.Description)
		}
		return nil
	})
}

func runPlanValidate(cmd *cobra.Command, args []string) error {
	plan, err := composite.LoadPlan(args[0])
	if err != nil {
		return err
	}

	return withRuntime(func(rt *Runtime) error {
		transforms := rt.Interpreter.Transforms()
		for i, step := range plan.Steps {
			for _, name := range stepTransforms(step) {
				if _, ok := transforms.Get(name); !ok {
					return fmt.Errorf("step %d: unknown transform %q", i, name)
				}
			}
		}

		// targets may be registered later, so a missing one only warns
		for i, step := range plan.Steps {
			if step.Tool != "" {
				if _, ok := rt.Engine.GetTool(step.Tool); !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "Warning: step %d: tool %s is not registered.\n", i, step.Tool)
				}
			} else if _, ok := rt.Engine.ResolveCapability(step.Capability); !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Warning: step %d: no tool provides capability %s.\n", i, step.Capability)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Plan %s is valid (%d steps, %s).\n", plan.ID, len(plan.Steps), planMode(plan))
		return nil
	})
}

func planMode(plan *composite.Plan) string {
	if plan.Parallel {
		return "parallel"
	}
	return "sequential"
}

func stepTransforms(step composite.Step) []string {
	var names []string
	for _, m := range step.Params {
		if m.Transform != "" {
			names = append(names, m.Transform)
		}
	}
	if step.Result != nil && step.Result.Transform != "" {
		names = append(names, step.Result.Transform)
	}
	if step.Condition != nil && step.Condition.Transform != "" {
		names = append(names, step.Condition.Transform)
	}
	return names
}
