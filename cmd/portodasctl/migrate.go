package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"portodas-api/internal/docstore"
	"portodas-api/internal/observability/logging"
)

func newMigrateCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply the embedded Postgres migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(docstore.MigrateUp), string(docstore.MigrateDown), string(docstore.MigrateStatus)},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := docstore.MigrateUp
			if len(args) == 1 {
				direction = docstore.MigrationDirection(args[0])
			}
			cfg, err := app.config()
			if err != nil {
				return err
			}
			if cfg.Datastore.PostgresDSN == "" {
				return fmt.Errorf("a Postgres DSN is required; pass --postgres-dsn or set PORTODAS_POSTGRES_DSN")
			}
			return docstore.Migrate(cmd.Context(), cfg.Datastore.PostgresDSN, direction, logging.WithComponent(app.logger, "migrate"))
		},
	}
}
