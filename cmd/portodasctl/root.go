package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"portodas-api/internal/config"
	"portodas-api/internal/docstore"
	"portodas-api/internal/identity"
	"portodas-api/internal/observability/logging"
)

// cli carries the persistent flags shared by every subcommand.
type cli struct {
	out    io.Writer
	errOut io.Writer
	lookup func(string) (string, bool)
	logger *slog.Logger

	configPath    string
	envFile       string
	storageDriver string
	dataPath      string
	postgresDSN   string
	verbose       bool
}

func newRootCmd(out, errOut io.Writer, lookup func(string) (string, bool)) *cobra.Command {
	app := &cli{out: out, errOut: errOut, lookup: lookup}

	root := &cobra.Command{
		Use:   "portodasctl",
		Short: "Administer the portodas API datastore and accounts",
		Long: `portodasctl manages accounts in the identity store, grants the admin
claim, issues ID tokens for testing and runs database migrations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "info"
			if app.verbose {
				level = "debug"
			}
			app.logger = logging.New(logging.Config{Level: level, Format: "text", Writer: app.errOut})
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&app.configPath, "config", "", "path to a YAML configuration file")
	flags.StringVar(&app.envFile, "env-file", ".env", "path to a dotenv file")
	flags.StringVar(&app.storageDriver, "storage-driver", "", "datastore driver (memory or postgres)")
	flags.StringVar(&app.dataPath, "data", "", "path to the JSON datastore file")
	flags.StringVar(&app.postgresDSN, "postgres-dsn", "", "Postgres connection string")
	flags.BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(
		newCreateUserCmd(app),
		newSetAdminCmd(app),
		newListUsersCmd(app),
		newIssueTokenCmd(app),
		newMigrateCmd(app),
		newImportJSONCmd(app),
	)
	return root
}

func (c *cli) config() (config.Config, error) {
	cfg, err := config.Load(config.Options{File: c.configPath, EnvFile: c.envFile, Lookup: c.lookup})
	if err != nil {
		return config.Config{}, err
	}
	if c.storageDriver != "" {
		cfg.Datastore.Driver = c.storageDriver
	}
	if c.dataPath != "" {
		cfg.Datastore.DataPath = c.dataPath
	}
	if c.postgresDSN != "" {
		cfg.Datastore.PostgresDSN = c.postgresDSN
	}
	return cfg, nil
}

func (c *cli) openStore(ctx context.Context, cfg config.Config) (docstore.Store, error) {
	switch cfg.Datastore.Driver {
	case "postgres":
		store, err := docstore.OpenPostgres(ctx, docstore.PostgresConfig{
			DSN:             cfg.Datastore.PostgresDSN,
			ApplicationName: "portodasctl",
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory", "":
		store, err := docstore.NewMemory(cfg.Datastore.DataPath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported datastore driver %q", cfg.Datastore.Driver)
	}
}

// withIdentity opens the configured datastore and hands fn an identity
// provider over it. requireSecret rejects an unconfigured signing secret.
func (c *cli) withIdentity(ctx context.Context, requireSecret bool, fn func(*identity.Local) error) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	secret := cfg.Identity.Secret
	if secret == "" {
		if requireSecret {
			return errors.New("identity secret is required; set PORTODAS_IDENTITY_SECRET")
		}
		secret = ephemeralSecret()
	}

	store, err := c.openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open datastore: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			c.logger.Error("failed to close datastore", "error", err)
		}
	}()

	provider, err := identity.NewLocal(store, []byte(secret),
		identity.WithIssuer(cfg.Identity.Issuer),
		identity.WithTokenTTL(cfg.Identity.TokenTTL),
	)
	if err != nil {
		return err
	}
	return fn(provider)
}

func ephemeralSecret() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
