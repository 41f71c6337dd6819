package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	te "github.com/harun/toolengine/pkg/toolexecutor"
)

var (
	toolsCategory   string
	toolsTags       []string
	toolsProtocol   string
	toolsCapability string
	toolsMaxLevel   string
	toolsJSON       bool
	capsTags        []string
	capsJSON        bool
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List registered tools",
	Long: `List the tools registered at startup: the core tools plus one
"plan.<id>" tool per plan in the configured plans directory.`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "List capabilities and the tools providing them",
	Args:  cobra.NoArgs,
	RunE:  runCapabilities,
}

func init() {
	toolsCmd.Flags().StringVar(&toolsCategory, "category", "", "only tools in this category")
	toolsCmd.Flags().StringSliceVar(&toolsTags, "tag", nil, "only tools carrying every tag")
	toolsCmd.Flags().StringVar(&toolsProtocol, "protocol", "", "only tools using this protocol")
	toolsCmd.Flags().StringVar(&toolsCapability, "capability", "", "only tools providing this capability")
	toolsCmd.Flags().StringVar(&toolsMaxLevel, "max-level", "", "only tools at or below this security level")
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "print JSON")

	capabilitiesCmd.Flags().StringSliceVar(&capsTags, "tag", nil, "filter capabilities by tag")
	capabilitiesCmd.Flags().BoolVar(&capsJSON, "json", false, "print JSON")

	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(capabilitiesCmd)
}

func buildDiscoveryFilter() (*te.DiscoveryFilter, error) {
	filter := &te.DiscoveryFilter{
		Tags:     toolsTags,
		Protocol: te.Protocol(toolsProtocol),
	}
	if toolsCapability != "" {
		filter.Capabilities = []string{toolsCapability}
	}
	if toolsCategory != "" {
		category, err := te.ParseCategory(toolsCategory)
		if err != nil {
			return nil, err
		}
		filter.Category = category
	}
	if toolsMaxLevel != "" {
		level, err := te.ParseSecurityLevel(toolsMaxLevel)
		if err != nil {
			return nil, err
		}
		filter.MaxSecurityLevel = &level
	}
	return filter, nil
}

func runTools(cmd *cobra.Command, args []string) error {
	filter, err := buildDiscoveryFilter()
	if err != nil {
		return err
	}

	return withRuntime(func(rt *Runtime) error {
		tools := rt.Engine.DiscoverTools(filter)
		if toolsJSON {
			return printJSON(cmd, tools)
		}
		if len(tools) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tools found.")
			return nil
		}
		for _, meta := range tools {
			auth := ""
			if meta.RequiresAuth {
				auth = fmt.Sprintf(" [auth>=%s]", meta.MinSecurityLevel)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "- %s (%s, %s, v%s)%s: %s\n", meta.ID, meta.Category, meta.Protocol, meta.Version, auth, meta.Description)
		}
		return nil
	})
}

func runCapabilities(cmd *cobra.Command, args []string) error {
	return withRuntime(func(rt *Runtime) error {
		caps := rt.Engine.DiscoverCapabilities(capsTags)
		if capsJSON {
			return printJSON(cmd, caps)
		}
		if len(caps) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No capabilities found.")
			return nil
		}
		for _, c := range caps {
			provider := "-"
			if meta, ok := rt.Engine.ResolveCapability(c.ID); ok {
				provider = meta.ID
			}
			fmt.Fprintf(cmd.OutOrStdout(), "- %s -> %s: %s\n", c.ID, provider, c.Description)
		}
		return nil
	})
}
