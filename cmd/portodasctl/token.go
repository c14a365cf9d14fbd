package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"portodas-api/internal/identity"
)

func newIssueTokenCmd(app *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "issue-token <uid|email>",
		Short: "Issue an ID token for an account",
		Long: `issue-token signs an ID token with the configured identity secret. The
server must run with the same secret for the token to verify.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withIdentity(cmd.Context(), true, func(provider *identity.Local) error {
				record, err := lookupUser(cmd, provider, args[0])
				if err != nil {
					return err
				}
				token, err := provider.IssueToken(cmd.Context(), record.UID)
				if err != nil {
					return fmt.Errorf("issue token: %w", err)
				}
				if asJSON {
					encoder := json.NewEncoder(cmd.OutOrStdout())
					encoder.SetIndent("", "  ")
					return encoder.Encode(token)
				}
				fmt.Fprintln(cmd.OutOrStdout(), token.IDToken)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the token with its expiry as JSON")
	return cmd
}
