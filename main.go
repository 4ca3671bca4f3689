package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Amund211/paydesk/internal/app"
	"github.com/Amund211/paydesk/internal/config"
	"github.com/Amund211/paydesk/internal/logging"
	"github.com/Amund211/paydesk/internal/payroll"
	"github.com/Amund211/paydesk/internal/ports"
	"github.com/Amund211/paydesk/internal/ratelimiting"
	"github.com/Amund211/paydesk/internal/reporting"
	"github.com/Amund211/paydesk/internal/requestcoord"
	"github.com/Amund211/paydesk/internal/sessions"
	"github.com/Amund211/paydesk/internal/telemetry"
	"github.com/Amund211/paydesk/internal/transport"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "golang.org/x/crypto/x509roots/fallback"
)

const ristrettoMaxEntries = 10_000

func buildStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (requestcoord.Store, func(), error) {
	switch cfg.CacheStore() {
	case config.RistrettoCacheStore:
		store, err := requestcoord.NewRistrettoStore(ristrettoMaxEntries)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create ristretto store: %w", err)
		}
		return store, store.Close, nil
	case config.RedisCacheStore:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword(),
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			// The store fails soft, so keep going without the shared cache
			logger.Warn("Failed to reach redis", "error", err.Error())
		}
		return requestcoord.NewRedisStore(rdb), func() { rdb.Close() }, nil
	default:
		return requestcoord.NewMemoryStore(), func() {}, nil
	}
}

func main() {
	instanceID := uuid.New().String()
	logger := slog.New(
		logging.NewTracingLogHandler(slog.NewJSONHandler(os.Stdout, nil)),
	).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", cfg.NonSensitiveString())

	shutdownTelemetry, err := telemetry.SetupOTelSDK(ctx, telemetry.Options{
		ServiceName:   "paydesk",
		ExportMetrics: !cfg.IsDevelopment(),
		TraceWriter:   devTraceWriter(cfg),
	})
	if err != nil {
		fail("Failed to set up OpenTelemetry", "error", err.Error())
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
		}
	}()

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(cfg)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	rules := payroll.DefaultRules()
	if path := cfg.StatutoryRulesPath(); path != "" {
		rules, err = payroll.LoadRules(path)
		if err != nil {
			fail("Failed to load statutory rules", "error", err.Error(), "path", path)
		}
		logger.Info("Loaded statutory rules", "path", path)
	}
	calculator := payroll.NewCalculator(rules)

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	backendLimiter := ratelimiting.NewWindowLimiter(cfg.BackendRequestLimit(), time.Minute, time.Now, time.After)
	backend, err := transport.NewHTTPTransport(httpClient, backendLimiter, cfg.BackendURL(), cfg.BackendAPIKey(), time.Now)
	if err != nil {
		fail("Failed to initialize backend transport", "error", err.Error())
	}

	store, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		fail("Failed to initialize cache store", "error", err.Error())
	}
	defer closeStore()
	logger.Info("Initialized cache store", "store", string(cfg.CacheStore()))

	coordinator, err := requestcoord.NewCoordinator(backend, store, cfg.CacheTTL(), cfg.DedupWaitTimeout(), time.Now, time.After)
	if err != nil {
		fail("Failed to initialize request coordinator", "error", err.Error())
	}

	registry, err := sessions.NewRegistry(coordinator, cfg.SessionIdleTTL(), prometheus.DefaultRegisterer)
	if err != nil {
		fail("Failed to initialize session registry", "error", err.Error())
	}
	registry.Start()
	defer registry.Stop()

	allowedOrigins, err := ports.NewDomainSuffixes(cfg.AllowedOrigins()...)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}
	if cfg.IsDevelopment() {
		allowedOrigins = allowedOrigins.WithLocalhost()
	}

	middleware, stopRateLimiters, err := ports.BuildAPIMiddleware(allowedOrigins, logger.With("component", "api"), sentryMiddleware)
	if err != nil {
		fail("Failed to build middleware", "error", err.Error())
	}
	defer stopRateLimiters()

	mux := http.NewServeMux()
	ports.API{
		Clients:        ports.NewSessionClients(registry, coordinator),
		Cache:          coordinator,
		Sessions:       registry,
		PreviewPayroll: app.BuildPreviewPayroll(calculator, time.Now),
		GetPayslip:     app.BuildGetPayslip(calculator, time.Now),
	}.Register(mux, middleware, allowedOrigins)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port()),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return logging.AddToContext(context.Background(), logger)
		},
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()
	logger.Info("Init complete", "port", cfg.Port())

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			fail("Server error", "error", err.Error())
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down server", "error", err.Error())
		}
	}
	logger.Info("Server shutdown")
}

func devTraceWriter(cfg config.Config) io.Writer {
	if cfg.IsDevelopment() {
		return os.Stderr
	}
	return nil
}
