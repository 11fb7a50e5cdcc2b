package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"nftfi/config"
	"nftfi/core/events"
	"nftfi/crypto"
	"nftfi/gateway"
	"nftfi/gateway/middleware"
	"nftfi/gateway/routes"
	"nftfi/integrations/audit"
	"nftfi/integrations/webhooks"
	"nftfi/native/financing"
	"nftfi/native/token"
	"nftfi/observability"
	"nftfi/observability/logging"
	telemetry "nftfi/observability/otel"
	"nftfi/storage"
)

const serviceName = "nftfid"

// devnetAdmin administers the engine when no Admin is configured.
var devnetAdmin = crypto.DeriveAddress([]byte("nftfi/devnet/admin"))

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./nftfid.toml", "path to daemon configuration (toml or yaml)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, logCloser := logging.Setup(serviceName, cfg.Logging.Env, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("nftfid stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Logging.Env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Enabled && cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Enabled && cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	if cfg.StorageBackend != "" && cfg.StorageBackend != "memory" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := storage.Open(cfg.StorageBackend, cfg.StoragePath())
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	admin := devnetAdmin
	if cfg.Admin != "" {
		if admin, err = crypto.DecodeAddress(cfg.Admin); err != nil {
			return fmt.Errorf("decode admin: %w", err)
		}
	}

	funds := token.NewLedger(cfg.Devnet.Symbol)
	if err := seedGenesis(funds, cfg.Devnet); err != nil {
		return err
	}
	nfts := token.NewCollection()

	dep, err := financing.Deploy(db, admin, funds, nfts, cfg.Lending)
	if err != nil {
		return fmt.Errorf("deploy financing: %w", err)
	}
	engine := dep.Engine
	engine.SetLogger(logger.With("component", "financing"))

	metrics := observability.FinancingMetrics()
	emitters := events.Fanout{metrics}
	if dsn := strings.TrimSpace(cfg.Audit.DSN); dsn != "" {
		auditDB, err := audit.Open(dsn)
		if err != nil {
			return fmt.Errorf("open audit database: %w", err)
		}
		sink, err := audit.NewSink(auditDB, logger.With("component", "audit"))
		if err != nil {
			return err
		}
		emitters = append(emitters, sink)
		logger.Info("audit sink attached", logging.MaskField("dsn", logging.MaskDSN(dsn)))
	}
	if endpoint := strings.TrimSpace(cfg.Webhook.Endpoint); endpoint != "" {
		notifier, err := webhooks.NewNotifier(endpoint, []byte(cfg.Webhook.Secret),
			webhooks.WithLogger(logger.With("component", "webhooks")),
			webhooks.WithRetryPolicy(cfg.Webhook.MaxAttempts, 0, 0),
		)
		if err != nil {
			return fmt.Errorf("start webhook notifier: %w", err)
		}
		defer notifier.Close()
		emitters = append(emitters, notifier)
		logger.Info("webhook notifier attached", "endpoint", endpoint)
	}
	engine.SetEmitter(emitters)

	var devnet *routes.Devnet
	if cfg.Devnet.Enabled {
		devnet = &routes.Devnet{Funds: funds, NFTs: nfts}
	}
	router, err := routes.New(routes.Config{
		Dispatcher: gateway.NewDispatcher(engine, metrics),
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:    cfg.Auth.Enabled,
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  cfg.Auth.ClockSkew,
		}, logger.With("component", "auth")),
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		}),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName: serviceName,
			LogRequests: true,
		}, prometheus.DefaultRegisterer, prometheus.DefaultGatherer, logger.With("component", "gateway")),
		CORS:   middleware.CORSConfig{AllowedOrigins: []string{"*"}},
		Devnet: devnet,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("configure routes: %w", err)
	}
	handler := http.Handler(router)
	if cfg.Telemetry.Enabled && cfg.Telemetry.Traces {
		handler = otelhttp.NewHandler(router, serviceName)
	}

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	logger.Info("nftfid listening",
		"listen", listener.Addr().String(),
		"backend", cfg.StorageBackend,
		"admin", admin.String(),
		logging.MaskField("hmac_secret", cfg.Auth.HMACSecret),
	)

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	return nil
}

// seedGenesis mints the configured devnet balances in address order.
func seedGenesis(funds *token.Ledger, devnet config.DevnetConfig) error {
	addrs := make([]string, 0, len(devnet.Balances))
	for addr := range devnet.Balances {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	for _, raw := range addrs {
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			return fmt.Errorf("devnet balance %s: %w", raw, err)
		}
		value, err := devnet.Amount(raw)
		if err != nil {
			return fmt.Errorf("devnet balance %s: %w", raw, err)
		}
		if err := funds.Mint(addr, value); err != nil {
			return fmt.Errorf("mint devnet balance %s: %w", raw, err)
		}
	}
	return nil
}
