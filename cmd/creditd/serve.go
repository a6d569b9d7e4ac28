package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"creditguild/config"
	"creditguild/core"
	"creditguild/gateway/middleware"
	"creditguild/gateway/routes"
	"creditguild/observability/logging"
	telemetry "creditguild/observability/otel"
	daemonconfig "creditguild/services/creditd/config"
	"creditguild/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open the state store and serve the HTTP API",
	Long: `Open the configured state store, apply the genesis file when the store is
empty, then serve the protocol over HTTP until SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func openStore(cfg daemonconfig.StorageConfig) (storage.Database, error) {
	if cfg.Backend == daemonconfig.BackendMemory {
		return storage.NewMemDB(), nil
	}
	return storage.NewLevelDB(cfg.DataDir)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := daemonconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.SetupWithOptions(logging.Options{
		Service:    "creditd",
		Env:        cfg.Logging.Env,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "creditd",
		Environment: cfg.Logging.Env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     cfg.Telemetry.Headers,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	db, err := openStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	protocol := core.NewProtocol(db, logger)
	if !protocol.IsInitialised() {
		genesis, err := config.Load(cfg.GenesisPath)
		if err != nil {
			return fmt.Errorf("load genesis: %w", err)
		}
		resolved, err := genesis.Resolve()
		if err != nil {
			return fmt.Errorf("resolve genesis: %w", err)
		}
		if err := protocol.InitGenesis(resolved); err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
	}

	auth, err := middleware.NewAuthenticator(middleware.AuthConfig{
		HMACSecret: cfg.Auth.Secret(),
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		ClockSkew:  cfg.Auth.ClockSkew,
	}, logger)
	if err != nil {
		return err
	}
	var limiter *middleware.RateLimiter
	if cfg.RateLimit.RequestsPerMinute > 0 {
		limiter, err = middleware.NewRateLimiter(middleware.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
			TrustedProxies:    cfg.RateLimit.TrustedProxies,
		})
		if err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}
	api, err := routes.New(routes.Config{
		Protocol:      protocol,
		Authenticator: auth,
		RateLimiter:   limiter,
		CORS:          middleware.CORSConfig{AllowedOrigins: cfg.CORS.AllowedOrigins},
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", telemetry.WrapHandler(api, "creditd"))

	server := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      mux,
		ReadTimeout:  cfg.Timeouts.Read,
		WriteTimeout: cfg.Timeouts.Write,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("creditd listening",
			slog.String("listen", cfg.ListenAddress),
			slog.Bool("tls", cfg.TLS.Enabled()))
		if cfg.TLS.Enabled() {
			serverErr <- server.ListenAndServeTLS(cfg.TLS.CertPath, cfg.TLS.KeyPath)
			return
		}
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}
}
