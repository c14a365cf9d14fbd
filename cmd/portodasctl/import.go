package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"portodas-api/internal/docstore"
)

func newImportJSONCmd(app *cli) *cobra.Command {
	var (
		source string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "import-json",
		Short: "Copy a JSON datastore file into Postgres",
		Long: `import-json loads the file written by the memory datastore and upserts
every document into the Postgres documents table, keeping identifiers and
timestamps. Counts are verified after the import.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(source) == "" {
				return fmt.Errorf("--from is required")
			}
			memory, err := docstore.NewMemory(source)
			if err != nil {
				return fmt.Errorf("load JSON datastore: %w", err)
			}
			snap := memory.Snapshot()
			counts := snap.Counts()
			app.logger.Info("loaded JSON datastore", "path", source, "collections", len(counts))
			printCounts(cmd, counts)
			if dryRun {
				return nil
			}

			cfg, err := app.config()
			if err != nil {
				return err
			}
			if cfg.Datastore.PostgresDSN == "" {
				return fmt.Errorf("a Postgres DSN is required; pass --postgres-dsn or set PORTODAS_POSTGRES_DSN")
			}
			pg, err := docstore.OpenPostgres(cmd.Context(), docstore.PostgresConfig{
				DSN:             cfg.Datastore.PostgresDSN,
				ApplicationName: "portodasctl",
			})
			if err != nil {
				return err
			}
			defer pg.Close()

			if err := pg.Import(cmd.Context(), snap); err != nil {
				return err
			}
			if err := pg.VerifyCounts(cmd.Context(), snap); err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}
			app.logger.Info("import completed", "collections", len(counts))
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "from", "data/store.json", "JSON datastore file to import")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only report what would be imported")
	return cmd
}

func printCounts(cmd *cobra.Command, counts map[string]int) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", name, counts[name])
	}
}
