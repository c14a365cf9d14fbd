// Command server starts the portodas API HTTP service.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"portodas-api/internal/api"
	"portodas-api/internal/blob"
	"portodas-api/internal/config"
	"portodas-api/internal/docstore"
	"portodas-api/internal/identity"
	"portodas-api/internal/observability/logging"
	"portodas-api/internal/observability/metrics"
	"portodas-api/internal/server"
	"portodas-api/internal/storage"
	"portodas-api/internal/upload"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.LookupEnv, os.Stdout, nil); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

// run wires the service from args and the environment and blocks until ctx
// is cancelled.
func run(ctx context.Context, args []string, lookup func(string) (string, bool), stdout io.Writer, ready chan<- net.Addr) error {
	cfg, err := loadConfig(args, lookup)
	if err != nil {
		return err
	}

	logger := logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: stdout})

	if cfg.Identity.Secret == "" && cfg.Mode != "production" {
		cfg.Identity.Secret = randomSecret()
		logger.Warn("identity secret not configured; generated an ephemeral one, issued tokens will not survive a restart")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := openDatastore(ctx, cfg.Datastore, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close datastore", "error", err)
		}
	}()

	blobs, err := openBlobStore(cfg.Blob)
	if err != nil {
		return err
	}

	policy, err := storage.ParseOrderPolicy(cfg.Datastore.OrderPolicy)
	if err != nil {
		return err
	}
	repos := storage.New(store, storage.WithOrderPolicy(policy), storage.WithBlobStore(blobs))

	provider, err := identity.NewLocal(store, []byte(cfg.Identity.Secret),
		identity.WithIssuer(cfg.Identity.Issuer),
		identity.WithTokenTTL(cfg.Identity.TokenTTL),
	)
	if err != nil {
		return fmt.Errorf("configure identity provider: %w", err)
	}

	uploads := upload.NewService(blobs,
		upload.WithMaxBytes(cfg.Upload.MaxBytes),
		upload.WithLogger(logging.WithComponent(logger, "upload")),
	)

	recorder := metrics.New()
	metrics.SetDefault(recorder)

	handler := api.NewHandler(repos, provider, uploads)
	handler.Logger = logging.WithComponent(logger, "api")
	handler.Metrics = recorder
	handler.BodyLimit = cfg.BodyLimit

	srv, err := server.New(handler, server.Config{
		Addr: cfg.Addr,
		TLS:  server.TLSConfig{CertFile: cfg.TLS.CertFile, KeyFile: cfg.TLS.KeyFile},
		RateLimit: server.RateLimitConfig{
			GlobalLimit:   cfg.RateLimit.GlobalLimit,
			GlobalWindow:  cfg.RateLimit.GlobalWindow,
			LoginLimit:    cfg.RateLimit.LoginLimit,
			LoginWindow:   cfg.RateLimit.LoginWindow,
			TrustProxy:    cfg.RateLimit.TrustProxy,
			RedisAddr:     cfg.RateLimit.RedisAddr,
			RedisPassword: cfg.RateLimit.RedisPassword,
			RedisTimeout:  cfg.RateLimit.RedisTimeout,
		},
		CORS:                   server.CORSConfig{Origins: cfg.CORSOrigins},
		Logger:                 logger,
		Metrics:                recorder,
		ShutdownTimeout:        cfg.ShutdownTimeout,
		DisableMetricsEndpoint: cfg.Metrics.Disabled,
	})
	if err != nil {
		return fmt.Errorf("configure server: %w", err)
	}

	logger.Info("starting portodas api",
		"mode", cfg.Mode,
		"datastore", cfg.Datastore.Driver,
		"blob", cfg.Blob.Driver,
		"bucket", cfg.Blob.Bucket,
		"order_policy", string(policy),
	)
	if err := srv.Run(ctx, ready); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func openDatastore(ctx context.Context, cfg config.DatastoreConfig, logger *slog.Logger) (docstore.Store, error) {
	switch cfg.Driver {
	case "postgres":
		if cfg.AutoMigrate {
			if err := docstore.Migrate(ctx, cfg.PostgresDSN, docstore.MigrateUp, logging.WithComponent(logger, "migrate")); err != nil {
				return nil, err
			}
		}
		store, err := docstore.OpenPostgres(ctx, docstore.PostgresConfig{
			DSN:             cfg.PostgresDSN,
			MaxConnections:  cfg.MaxConns,
			MinConnections:  cfg.MinConns,
			AcquireTimeout:  cfg.AcquireTimeout,
			ApplicationName: firstNonEmpty(cfg.ApplicationName, "portodas-api"),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		store, err := docstore.NewMemory(cfg.DataPath)
		if err != nil {
			return nil, fmt.Errorf("open datastore: %w", err)
		}
		return store, nil
	}
}

func openBlobStore(cfg config.BlobConfig) (blob.Store, error) {
	if cfg.Driver != "s3" {
		return blob.NewMemory(cfg.Bucket, cfg.PublicBaseURL), nil
	}
	store, err := blob.NewS3(blob.S3Config{
		Endpoint:      cfg.Endpoint,
		Region:        cfg.Region,
		AccessKey:     cfg.AccessKey,
		SecretKey:     cfg.SecretKey,
		Bucket:        cfg.Bucket,
		UseSSL:        cfg.UseSSL,
		PublicBaseURL: cfg.PublicBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("configure blob store: %w", err)
	}
	return store, nil
}

// loadConfig layers explicitly set flags over config.Load.
func loadConfig(args []string, lookup func(string) (string, bool)) (config.Config, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML configuration file")
	envFile := fs.String("env-file", ".env", "path to a dotenv file")
	addr := fs.String("addr", "", "HTTP listen address")
	mode := fs.String("mode", "", "runtime mode (development or production)")
	corsOrigins := fs.String("cors-origins", "", "comma separated list of allowed CORS origins")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "log format (json or text)")
	storageDriver := fs.String("storage-driver", "", "datastore driver (memory or postgres)")
	dataPath := fs.String("data", "", "path to the JSON datastore file")
	postgresDSN := fs.String("postgres-dsn", "", "Postgres connection string")
	orderPolicy := fs.String("order-policy", "", "order assignment policy (scan or atomic)")
	bucket := fs.String("bucket", "", "object storage bucket")
	blobDriver := fs.String("blob-driver", "", "object storage driver (memory or s3)")
	blobEndpoint := fs.String("blob-endpoint", "", "S3 compatible endpoint")
	uploadMax := fs.Int64("upload-max-bytes", 0, "maximum accepted upload size")
	globalLimit := fs.Int("rate-global-limit", 0, "requests allowed per client per window")
	loginLimit := fs.Int("rate-login-limit", 0, "token requests allowed per client per window")
	trustProxy := fs.Bool("rate-trust-forwarded-headers", false, "trust proxy-provided client IP headers")
	redisAddr := fs.String("rate-redis-addr", "", "Redis address for shared rate limit counters")
	tlsCert := fs.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := fs.String("tls-key", "", "path to TLS private key file")
	shutdownTimeout := fs.Duration("shutdown-timeout", 0, "graceful shutdown timeout")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(config.Options{File: *configPath, EnvFile: *envFile, Lookup: lookup})
	if err != nil {
		return config.Config{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "mode":
			cfg.Mode = *mode
		case "cors-origins":
			cfg.CORSOrigins = config.SplitList(*corsOrigins)
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		case "storage-driver":
			cfg.Datastore.Driver = *storageDriver
		case "data":
			cfg.Datastore.DataPath = *dataPath
		case "postgres-dsn":
			cfg.Datastore.PostgresDSN = *postgresDSN
		case "order-policy":
			cfg.Datastore.OrderPolicy = *orderPolicy
		case "bucket":
			cfg.Blob.Bucket = *bucket
		case "blob-driver":
			cfg.Blob.Driver = *blobDriver
		case "blob-endpoint":
			cfg.Blob.Endpoint = *blobEndpoint
		case "upload-max-bytes":
			cfg.Upload.MaxBytes = *uploadMax
		case "rate-global-limit":
			cfg.RateLimit.GlobalLimit = *globalLimit
		case "rate-login-limit":
			cfg.RateLimit.LoginLimit = *loginLimit
		case "rate-trust-forwarded-headers":
			cfg.RateLimit.TrustProxy = *trustProxy
		case "rate-redis-addr":
			cfg.RateLimit.RedisAddr = *redisAddr
		case "tls-cert":
			cfg.TLS.CertFile = *tlsCert
		case "tls-key":
			cfg.TLS.KeyFile = *tlsKey
		case "shutdown-timeout":
			cfg.ShutdownTimeout = *shutdownTimeout
		}
	})
	return cfg, nil
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("portodas-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
