package main

import (
	"fmt"
	"maps"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"portodas-api/internal/identity"
)

func newCreateUserCmd(app *cli) *cobra.Command {
	var (
		email       string
		password    string
		displayName string
		admin       bool
	)
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an account in the identity store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(email) == "" {
				return fmt.Errorf("--email is required")
			}
			if len(password) < 6 {
				return fmt.Errorf("--password must be at least 6 characters")
			}
			return app.withIdentity(cmd.Context(), false, func(provider *identity.Local) error {
				record, err := provider.CreateUser(cmd.Context(), identity.UserToCreate{
					Email:       strings.TrimSpace(email),
					Password:    password,
					DisplayName: strings.TrimSpace(displayName),
				})
				if err != nil {
					return fmt.Errorf("create user: %w", err)
				}
				if admin {
					if err := provider.SetCustomUserClaims(cmd.Context(), record.UID, map[string]any{identity.AdminClaim: true}); err != nil {
						return fmt.Errorf("grant admin claim: %w", err)
					}
				}
				app.logger.Info("user created", "uid", record.UID, "admin", admin)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", record.UID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password (at least 6 characters)")
	cmd.Flags().StringVar(&displayName, "name", "", "display name")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin claim")
	return cmd
}

func newSetAdminCmd(app *cli) *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "set-admin <uid|email>",
		Short: "Grant or revoke the admin claim on an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withIdentity(cmd.Context(), false, func(provider *identity.Local) error {
				record, err := lookupUser(cmd, provider, args[0])
				if err != nil {
					return err
				}
				claims := maps.Clone(record.CustomClaims)
				if claims == nil {
					claims = map[string]any{}
				}
				if revoke {
					delete(claims, identity.AdminClaim)
				} else {
					claims[identity.AdminClaim] = true
				}
				if err := provider.SetCustomUserClaims(cmd.Context(), record.UID, claims); err != nil {
					return fmt.Errorf("set claims: %w", err)
				}
				if !revoke {
					fmt.Fprintf(cmd.OutOrStdout(), "admin claim granted for %s\n", record.UID)
					return nil
				}
				if err := provider.RevokeRefreshTokens(cmd.Context(), record.UID); err != nil {
					return fmt.Errorf("revoke tokens: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "admin claim revoked for %s; existing tokens revoked\n", record.UID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "remove the admin claim instead of granting it")
	return cmd
}

func newListUsersCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list-users",
		Short: "List accounts in the identity store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withIdentity(cmd.Context(), false, func(provider *identity.Local) error {
				users, err := provider.ListUsers(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "UID\tEMAIL\tADMIN\tDISABLED")
				for _, user := range users {
					isAdmin, _ := user.CustomClaims[identity.AdminClaim].(bool)
					fmt.Fprintf(w, "%s\t%s\t%t\t%t\n", user.UID, user.Email, isAdmin, user.Disabled)
				}
				return w.Flush()
			})
		},
	}
}

func lookupUser(cmd *cobra.Command, provider *identity.Local, ref string) (identity.UserRecord, error) {
	ref = strings.TrimSpace(ref)
	if strings.Contains(ref, "@") {
		record, err := provider.GetUserByEmail(cmd.Context(), ref)
		if err != nil {
			return identity.UserRecord{}, fmt.Errorf("find user %s: %w", ref, err)
		}
		return record, nil
	}
	record, err := provider.GetUser(cmd.Context(), ref)
	if err != nil {
		return identity.UserRecord{}, fmt.Errorf("find user %s: %w", ref, err)
	}
	return record, nil
}
