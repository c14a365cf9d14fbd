// Package config resolves the runtime settings of the portodas API.
//
// Values are layered, later sources winning: built-in defaults, an optional
// YAML file, a .env file, the process environment and finally command-line
// flags that were set explicitly.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "PORTODAS_"

// Config is the resolved configuration.
type Config struct {
	Mode            string          `yaml:"mode"`
	Addr            string          `yaml:"addr"`
	CORSOrigins     []string        `yaml:"corsOrigins"`
	BodyLimit       int64           `yaml:"bodyLimit"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout"`
	Log             LogConfig       `yaml:"log"`
	TLS             TLSConfig       `yaml:"tls"`
	Datastore       DatastoreConfig `yaml:"datastore"`
	Identity        IdentityConfig  `yaml:"identity"`
	Blob            BlobConfig      `yaml:"blob"`
	Upload          UploadConfig    `yaml:"upload"`
	RateLimit       RateLimitConfig `yaml:"rateLimit"`
	Metrics         MetricsConfig   `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TLSConfig struct {
	CertFile string `yaml:"certFile"`
	KeyFile  string `yaml:"keyFile"`
}

// DatastoreConfig selects the document store. Driver is "memory" or
// "postgres".
type DatastoreConfig struct {
	Driver          string        `yaml:"driver"`
	DataPath        string        `yaml:"dataPath"`
	PostgresDSN     string        `yaml:"postgresDSN"`
	MaxConns        int32         `yaml:"maxConns"`
	MinConns        int32         `yaml:"minConns"`
	AcquireTimeout  time.Duration `yaml:"acquireTimeout"`
	ApplicationName string        `yaml:"applicationName"`
	AutoMigrate     bool          `yaml:"autoMigrate"`
	OrderPolicy     string        `yaml:"orderPolicy"`
}

type IdentityConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	TokenTTL time.Duration `yaml:"tokenTTL"`
}

// BlobConfig selects the object store. Driver is "memory" or "s3".
type BlobConfig struct {
	Driver        string `yaml:"driver"`
	Bucket        string `yaml:"bucket"`
	Endpoint      string `yaml:"endpoint"`
	Region        string `yaml:"region"`
	AccessKey     string `yaml:"accessKey"`
	SecretKey     string `yaml:"secretKey"`
	UseSSL        bool   `yaml:"useSSL"`
	PublicBaseURL string `yaml:"publicBaseURL"`
}

type UploadConfig struct {
	MaxBytes int64 `yaml:"maxBytes"`
}

type RateLimitConfig struct {
	GlobalLimit   int           `yaml:"globalLimit"`
	GlobalWindow  time.Duration `yaml:"globalWindow"`
	LoginLimit    int           `yaml:"loginLimit"`
	LoginWindow   time.Duration `yaml:"loginWindow"`
	TrustProxy    bool          `yaml:"trustProxy"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisTimeout  time.Duration `yaml:"redisTimeout"`
}

type MetricsConfig struct {
	Disabled bool `yaml:"disabled"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		Mode:            "development",
		Addr:            ":8080",
		BodyLimit:       5 << 20,
		ShutdownTimeout: 10 * time.Second,
		Log:             LogConfig{Level: "info", Format: "json"},
		Datastore: DatastoreConfig{
			Driver:      "memory",
			DataPath:    "data/store.json",
			AutoMigrate: true,
			OrderPolicy: "scan",
		},
		Identity: IdentityConfig{Issuer: "portodas-api", TokenTTL: time.Hour},
		Blob:     BlobConfig{Driver: "memory", Bucket: "portodas-local", Region: "us-east-1"},
		Upload:   UploadConfig{MaxBytes: 10 << 20},
		RateLimit: RateLimitConfig{
			GlobalLimit:  120,
			GlobalWindow: time.Minute,
			LoginLimit:   10,
			LoginWindow:  time.Minute,
			RedisTimeout: 2 * time.Second,
		},
	}
}

// Options point Load at its sources. Lookup defaults to os.LookupEnv.
type Options struct {
	File    string
	EnvFile string
	Lookup  func(string) (string, bool)
}

// Load resolves defaults, the YAML file, the .env file and the environment,
// in that order. A missing .env file is not an error; a missing YAML file
// that was asked for is.
func Load(opts Options) (Config, error) {
	cfg := Default()
	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	dotenv := map[string]string{}
	if path := strings.TrimSpace(opts.EnvFile); path != "" {
		values, err := godotenv.Read(path)
		switch {
		case err == nil:
			dotenv = values
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read env file %s: %w", path, err)
		}
	}
	env := func(key string) (string, bool) {
		if value, ok := lookup(key); ok {
			return value, true
		}
		value, ok := dotenv[key]
		return value, ok
	}

	file := strings.TrimSpace(opts.File)
	if file == "" {
		file, _ = env(envPrefix + "CONFIG")
		file = strings.TrimSpace(file)
	}
	if file != "" {
		if err := cfg.loadFile(file); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(env); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *envReader) value(keys ...string) (string, bool) {
	for _, key := range keys {
		if raw, ok := r.lookup(key); ok {
			if trimmed := strings.TrimSpace(raw); trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}

func (r *envReader) str(dst *string, keys ...string) {
	if v, ok := r.value(keys...); ok {
		*dst = v
	}
}

func (r *envReader) list(dst *[]string, keys ...string) {
	if v, ok := r.value(keys...); ok {
		*dst = SplitList(v)
	}
}

func (r *envReader) boolean(dst *bool, keys ...string) {
	v, ok := r.value(keys...)
	if !ok {
		return
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", keys[0], err))
		return
	}
	*dst = parsed
}

func (r *envReader) integer(dst *int, keys ...string) {
	v, ok := r.value(keys...)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", keys[0], err))
		return
	}
	*dst = parsed
}

func (r *envReader) int32(dst *int32, keys ...string) {
	n := int(*dst)
	r.integer(&n, keys...)
	*dst = int32(n)
}

func (r *envReader) int64(dst *int64, keys ...string) {
	v, ok := r.value(keys...)
	if !ok {
		return
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", keys[0], err))
		return
	}
	*dst = parsed
}

func (r *envReader) duration(dst *time.Duration, keys ...string) {
	v, ok := r.value(keys...)
	if !ok {
		return
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", keys[0], err))
		return
	}
	*dst = parsed
}

// applyEnv reads PORTODAS_* variables. PORT, CORS_ORIGIN, STORAGE_BUCKET and
// DATABASE_URL are honoured as fallbacks for existing deployments.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	r := &envReader{lookup: lookup}
	p := func(name string) string { return envPrefix + name }

	r.str(&c.Mode, p("MODE"))
	r.str(&c.Addr, p("ADDR"))
	if port, ok := r.value("PORT"); ok {
		if _, set := r.value(p("ADDR")); !set {
			c.Addr = ":" + strings.TrimPrefix(port, ":")
		}
	}
	r.list(&c.CORSOrigins, p("CORS_ORIGINS"), "CORS_ORIGIN")
	r.int64(&c.BodyLimit, p("BODY_LIMIT"))
	r.duration(&c.ShutdownTimeout, p("SHUTDOWN_TIMEOUT"))

	r.str(&c.Log.Level, p("LOG_LEVEL"))
	r.str(&c.Log.Format, p("LOG_FORMAT"))
	r.str(&c.TLS.CertFile, p("TLS_CERT"))
	r.str(&c.TLS.KeyFile, p("TLS_KEY"))

	r.str(&c.Datastore.Driver, p("DATASTORE_DRIVER"))
	r.str(&c.Datastore.DataPath, p("DATA_PATH"))
	r.str(&c.Datastore.PostgresDSN, p("POSTGRES_DSN"), "DATABASE_URL")
	r.int32(&c.Datastore.MaxConns, p("POSTGRES_MAX_CONNS"))
	r.int32(&c.Datastore.MinConns, p("POSTGRES_MIN_CONNS"))
	r.duration(&c.Datastore.AcquireTimeout, p("POSTGRES_ACQUIRE_TIMEOUT"))
	r.str(&c.Datastore.ApplicationName, p("POSTGRES_APP_NAME"))
	r.boolean(&c.Datastore.AutoMigrate, p("AUTO_MIGRATE"))
	r.str(&c.Datastore.OrderPolicy, p("ORDER_POLICY"))

	r.str(&c.Identity.Secret, p("IDENTITY_SECRET"))
	r.str(&c.Identity.Issuer, p("IDENTITY_ISSUER"))
	r.duration(&c.Identity.TokenTTL, p("TOKEN_TTL"))

	r.str(&c.Blob.Driver, p("BLOB_DRIVER"))
	r.str(&c.Blob.Bucket, p("BLOB_BUCKET"), "STORAGE_BUCKET")
	r.str(&c.Blob.Endpoint, p("BLOB_ENDPOINT"))
	r.str(&c.Blob.Region, p("BLOB_REGION"))
	r.str(&c.Blob.AccessKey, p("BLOB_ACCESS_KEY"))
	r.str(&c.Blob.SecretKey, p("BLOB_SECRET_KEY"))
	r.boolean(&c.Blob.UseSSL, p("BLOB_USE_SSL"))
	r.str(&c.Blob.PublicBaseURL, p("BLOB_PUBLIC_BASE_URL"))

	r.int64(&c.Upload.MaxBytes, p("UPLOAD_MAX_BYTES"))

	r.integer(&c.RateLimit.GlobalLimit, p("RATE_GLOBAL_LIMIT"))
	r.duration(&c.RateLimit.GlobalWindow, p("RATE_GLOBAL_WINDOW"))
	r.integer(&c.RateLimit.LoginLimit, p("RATE_LOGIN_LIMIT"))
	r.duration(&c.RateLimit.LoginWindow, p("RATE_LOGIN_WINDOW"))
	r.boolean(&c.RateLimit.TrustProxy, p("RATE_TRUST_PROXY"))
	r.str(&c.RateLimit.RedisAddr, p("RATE_REDIS_ADDR"))
	r.str(&c.RateLimit.RedisPassword, p("RATE_REDIS_PASSWORD"))
	r.duration(&c.RateLimit.RedisTimeout, p("RATE_REDIS_TIMEOUT"))

	r.boolean(&c.Metrics.Disabled, p("METRICS_DISABLED"))

	return errors.Join(r.errs...)
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	var errs []error
	switch c.Datastore.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Datastore.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres datastore selected without DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported datastore driver %q", c.Datastore.Driver))
	}
	switch c.Blob.Driver {
	case "memory":
	case "s3":
		if strings.TrimSpace(c.Blob.Endpoint) == "" {
			errs = append(errs, errors.New("s3 blob store selected without endpoint"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported blob driver %q", c.Blob.Driver))
	}
	if strings.TrimSpace(c.Blob.Bucket) == "" {
		errs = append(errs, errors.New("blob bucket is required"))
	}
	if len(c.Identity.Secret) < 16 {
		errs = append(errs, errors.New("identity secret must be at least 16 bytes"))
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("both TLS cert file and key file must be provided"))
	}
	if c.Mode == "production" && c.Datastore.Driver != "postgres" {
		errs = append(errs, fmt.Errorf("production mode requires the postgres datastore driver, got %q", c.Datastore.Driver))
	}
	if c.BodyLimit <= 0 {
		errs = append(errs, errors.New("body limit must be positive"))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("upload ceiling must be positive"))
	}
	return errors.Join(errs...)
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
