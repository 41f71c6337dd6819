package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/toolengine/pkg/security"
	te "github.com/harun/toolengine/pkg/toolexecutor"
)

var (
	revokeReason string
	issueLevel   string
	issueTTL     time.Duration
)

var securityCmd = &cobra.Command{
	Use:   "security",
	Short: "Manage requester revocations and tokens",
}

var securityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List revoked requesters",
	Args:  cobra.NoArgs,
	RunE:  runSecurityList,
}

var securityRevokeCmd = &cobra.Command{
	Use:   "revoke <requester-id>",
	Short: "Deny every future call from a requester",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecurityRevoke,
}

var securityRestoreCmd = &cobra.Command{
	Use:   "restore <requester-id>",
	Short: "Lift a revocation",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecurityRestore,
}

var securityIssueCmd = &cobra.Command{
	Use:     "issue <subject>",
	Short:   "Mint a bearer token for use with --token",
	Example: `  toolengine security issue ci-bot --level HIGH --ttl 24h`,
	Args:    cobra.ExactArgs(1),
	RunE:    runSecurityIssue,
}

var securityTokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "List issued tokens that have not expired",
	Args:  cobra.NoArgs,
	RunE:  runSecurityTokens,
}

var securityInvalidateCmd = &cobra.Command{
	Use:   "invalidate <token>",
	Short: "Invalidate an issued token",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecurityInvalidate,
}

func init() {
	securityRevokeCmd.Flags().StringVar(&revokeReason, "reason", "", "reason recorded with the revocation")
	securityIssueCmd.Flags().StringVar(&issueLevel, "level", "", "token security level (default security.cli_level)")
	securityIssueCmd.Flags().DurationVar(&issueTTL, "ttl", 0, "token lifetime, 0 never expires")
	securityCmd.AddCommand(securityListCmd)
	securityCmd.AddCommand(securityRevokeCmd)
	securityCmd.AddCommand(securityRestoreCmd)
	securityCmd.AddCommand(securityIssueCmd)
	securityCmd.AddCommand(securityTokensCmd)
	securityCmd.AddCommand(securityInvalidateCmd)
	rootCmd.AddCommand(securityCmd)
}

func runSecurityList(cmd *cobra.Command, args []string) error {
	authorizer, err := loadAuthorizer()
	if err != nil {
		return err
	}

	revocations := authorizer.Revocations()
	if len(revocations) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No revoked requesters.")
		return nil
	}
	for _, r := range revocations {
		line := fmt.Sprintf("- %s (since %s)", r.RequesterID, r.RevokedAt.Format("2006-01-02 15:04:05"))
		if r.Reason != "" {
			line += ": " + r.Reason
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

func runSecurityRevoke(cmd *cobra.Command, args []string) error {
	authorizer, err := loadAuthorizer()
	if err != nil {
		return err
	}
	id := strings.TrimSpace(args[0])
	if err := authorizer.Revoke(id, revokeReason); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Revoked %s.\n", id)
	return nil
}

func runSecurityRestore(cmd *cobra.Command, args []string) error {
	authorizer, err := loadAuthorizer()
	if err != nil {
		return err
	}
	id := strings.TrimSpace(args[0])
	restored, err := authorizer.Restore(id)
	if err != nil {
		return err
	}
	if !restored {
		return fmt.Errorf("requester %s is not revoked", id)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Restored %s.\n", id)
	return nil
}

func runSecurityIssue(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	level := issueLevel
	if level == "" {
		level = cfg.Security.CLILevel
	}
	parsed, err := te.ParseSecurityLevel(level)
	if err != nil {
		return err
	}

	authorizer, err := openAuthorizer(cfg.DataDir)
	if err != nil {
		return err
	}
	creds, err := authorizer.Issue(args[0], parsed, issueTTL)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), creds.Token)
	if !creds.ExpiresAt.IsZero() {
		fmt.Fprintf(cmd.OutOrStdout(), "Expires %s.\n", creds.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

func runSecurityTokens(cmd *cobra.Command, args []string) error {
	authorizer, err := loadAuthorizer()
	if err != nil {
		return err
	}
	tokens, err := authorizer.Tokens()
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No issued tokens.")
		return nil
	}
	for _, tok := range tokens {
		expires := "never"
		if !tok.ExpiresAt.IsZero() {
			expires = tok.ExpiresAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "- %s %s (expires %s) %s\n", tok.Subject, tok.SecurityLevel, expires, tok.Hash[:12])
	}
	return nil
}

func runSecurityInvalidate(cmd *cobra.Command, args []string) error {
	authorizer, err := loadAuthorizer()
	if err != nil {
		return err
	}
	known, err := authorizer.Invalidate(args[0])
	if err != nil {
		return err
	}
	if !known {
		return fmt.Errorf("unknown token")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Token invalidated.")
	return nil
}

// loadAuthorizer opens the security files without building a full runtime
func loadAuthorizer() (*security.ClearanceAuthorizer, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openAuthorizer(cfg.DataDir)
}

func openAuthorizer(dataDir string) (*security.ClearanceAuthorizer, error) {
	return security.NewClearanceAuthorizer(security.Options{
		RevocationPath: security.DefaultRevocationPath(dataDir),
		TokenPath:      security.DefaultTokenPath(dataDir),
	})
}
