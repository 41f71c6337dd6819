package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	te "github.com/harun/toolengine/pkg/toolexecutor"
)

var (
	runParams    string
	runTimeout   time.Duration
	runRetries   int
	runRequester string
	runLevel     string
	runToken     string
)

var runCmd = &cobra.Command{
	Use:   "run <tool-id>",
	Short: "Execute a tool",
	Example: `  toolengine run text.uppercase --params '{"text":"hello"}'
  toolengine run fs.write_file --level MEDIUM --params '{"path":"a.txt","content":"x"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var capabilityCmd = &cobra.Command{
	Use:   "capability <capability-id>",
	Short: "Execute the best tool providing a capability",
	Args:  cobra.ExactArgs(1),
	RunE:  runCapability,
}

func init() {
	for _, cmd := range []*cobra.Command{runCmd, capabilityCmd, planRunCmd} {
		addExecutionFlags(cmd)
	}
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(capabilityCmd)
}

func addExecutionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&runParams, "params", "", "parameters as a JSON object")
	cmd.Flags().DurationVar(&runTimeout, "timeout", 0, "per-attempt timeout (default from tool or config)")
	cmd.Flags().IntVar(&runRetries, "retries", -1, "retry count (default from config)")
	cmd.Flags().StringVar(&runRequester, "requester", "cli", "requester id")
	cmd.Flags().StringVar(&runLevel, "level", "", "requester security level (default security.cli_level)")
	cmd.Flags().StringVar(&runToken, "token", "", "token from 'security issue'; overrides --requester and --level")
}

func executeOptions(rt *Runtime) (*te.ExecuteOptions, error) {
	var (
		requester *te.RequesterInfo
		err       error
	)
	if runToken != "" {
		requester, err = rt.RequesterForToken(runToken)
	} else {
		requester, err = rt.Requester(runRequester, runLevel)
	}
	if err != nil {
		return nil, err
	}
	opts := &te.ExecuteOptions{
		Timeout:   runTimeout,
		Requester: requester,
		Metadata:  map[string]interface{}{"source": "cli"},
	}
	if runRetries >= 0 {
		opts = opts.WithRetries(runRetries)
	}
	return opts, nil
}

// signalContext is cancelled on SIGINT/SIGTERM so a running tool sees cancellation
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// reportResult prints the result and converts a failure into a command error
func reportResult(cmd *cobra.Command, result te.ToolResult) error {
	if err := printJSON(cmd, result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("execution failed: %w", result.Err())
	}
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	params, err := parseParams(runParams)
	if err != nil {
		return err
	}

	return withRuntime(func(rt *Runtime) error {
		opts, err := executeOptions(rt)
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()
		return reportResult(cmd, rt.Engine.Execute(ctx, args[0], params, opts))
	})
}

func runCapability(cmd *cobra.Command, args []string) error {
	params, err := parseParams(runParams)
	if err != nil {
		return err
	}

	return withRuntime(func(rt *Runtime) error {
		opts, err := executeOptions(rt)
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()
		return reportResult(cmd, rt.Engine.ExecuteCapability(ctx, args[0], params, opts))
	})
}
