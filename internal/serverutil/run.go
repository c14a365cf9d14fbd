// Package serverutil runs an http.Server until its context ends.
package serverutil

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// TLSConfig holds certificate and key paths. Both or neither must be set.
type TLSConfig struct {
	CertFile string
	KeyFile  string
}

func (c TLSConfig) enabled() bool { return c.CertFile != "" }

type Config struct {
	Server          *http.Server
	TLS             TLSConfig
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
	// Ready receives the bound address once the listener accepts
	// connections, then is closed.
	Ready chan<- net.Addr
}

const DefaultShutdownTimeout = 10 * time.Second

// Run serves cfg.Server until ctx is cancelled or serving fails. On
// cancellation in-flight requests get ShutdownTimeout to finish.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Server == nil {
		return errors.New("server is required")
	}
	if (cfg.TLS.CertFile == "") != (cfg.TLS.KeyFile == "") {
		return errors.New("both TLS cert file and key file must be provided")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := listen(cfg.Server, cfg.TLS)
	if err != nil {
		return err
	}
	scheme := "http"
	if cfg.TLS.enabled() {
		scheme = "https"
	}
	logger.Info("listening", "addr", ln.Addr().String(), "scheme", scheme)
	if cfg.Ready != nil {
		cfg.Ready <- ln.Addr()
		close(cfg.Ready)
	}

	served := make(chan error, 1)
	go func() { served <- cfg.Server.Serve(ln) }()

	select {
	case err := <-served:
		return ignoreClosed(err)
	case <-ctx.Done():
	}
	return shutdown(cfg, logger, served)
}

// listen binds srv.Addr and wraps the listener in TLS when tlsCfg is set.
// The server's own TLSConfig, if any, is cloned and extended.
func listen(srv *http.Server, tlsCfg TLSConfig) (net.Listener, error) {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	if !tlsCfg.enabled() {
		return ln, nil
	}

	cert, err := tls.LoadX509KeyPair(tlsCfg.CertFile, tlsCfg.KeyFile)
	if err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("load tls key pair: %w", err)
	}
	conf := &tls.Config{MinVersion: tls.VersionTLS12}
	if srv.TLSConfig != nil {
		conf = srv.TLSConfig.Clone()
	}
	conf.Certificates = append([]tls.Certificate{cert}, conf.Certificates...)
	srv.TLSConfig = conf
	return tls.NewListener(ln, conf), nil
}

func shutdown(cfg Config, logger *slog.Logger, served <-chan error) error {
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	logger.Info("shutting down", "timeout", timeout.String())

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := cfg.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := ignoreClosed(<-served); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
