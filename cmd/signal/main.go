package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"pairlink/internal/core/ports"
	"pairlink/internal/core/services"
	httphandlers "pairlink/internal/handlers/http"
	"pairlink/internal/infrastructure/middleware"
	"pairlink/internal/infrastructure/monitoring"
	"pairlink/internal/infrastructure/repositories"
	wsignal "pairlink/internal/infrastructure/signal"
	"pairlink/pkg/config"
	"pairlink/pkg/logger"
	"pairlink/pkg/secret"
	"pairlink/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
)

var version = "dev"

const statsInterval = 15 * time.Second

func main() {
	var (
		configPath    = pflag.String("config", "", "path to the YAML configuration file")
		rateLimit     = pflag.Bool("rate-limit", false, "limit each client to 1000 requests per 5 minutes")
		localhostOnly = pflag.Bool("localhost-only", false, "listen on 127.0.0.1 only")
		logLevel      = pflag.String("log-level", "", "log level (debug, info, warn, error)")
		showVersion   = pflag.Bool("version", false, "print the version and exit")
	)
	pflag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, source, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *rateLimit {
		cfg.RateLimiting.Enabled = true
	}
	if *localhostOnly {
		cfg.Server.LocalhostOnly = true
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	zapLogger := logger.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()
	log.Infow("configuration loaded", "source", source, "version", version)

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	rtcConfig, err := wsignal.LoadRTCConfig(cfg)
	if err != nil {
		log.Fatalw("failed to load rtc config", "error", err)
	}

	// Repositories
	repoFactory := repositories.NewRepositoryFactory(log)
	roomRepo := repoFactory.CreateRoomRepository()
	keyRepo := repoFactory.CreatePairKeyRepository()

	// Metrics
	metricsService := services.NewMetricsService()
	var collector *monitoring.PrometheusCollector
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
	}
	metrics := services.NewMetricsFanout(metricsService, collectorOrNil(collector))

	// Services
	identity := services.NewIdentityService(secret.NewHasher(), services.IdentityConfig{
		IPv6Localize: cfg.Signal.IPv6Localize,
		DebugMode:    cfg.Signal.DebugMode,
	}, log)
	rooms := services.NewRoomService(roomRepo, metrics, log)
	pairing := services.NewPairingService(keyRepo, rooms, services.PairingConfig{
		MaxAttempts:      cfg.Pairing.MaxAttempts,
		AttemptWindow:    cfg.Pairing.AttemptWindow,
		RoomSecretLength: cfg.Pairing.RoomSecretLength,
	}, metrics, log)
	supervisor := services.NewSupervisor(rooms, pairing, cfg.Signal.PingInterval, metrics, log)
	signaling := services.NewRelayService(identity, rooms, pairing, supervisor, rtcConfig, metrics, log)

	// Health
	var draining atomic.Bool
	health := monitoring.NewHealthChecker()
	health.AddRepositoryCheck(repoFactory, 2*time.Second)
	health.AddShutdownCheck(draining.Load)

	// HTTP
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestLoggerMiddleware(logger.NewContextLogger(zapLogger)),
		middleware.TracingMiddleware(),
		middleware.NewHTTPRateLimitMiddleware(cfg),
		middleware.ErrorHandlerMiddleware(log),
	)

	wsServer := wsignal.NewWebSocketServer(signaling, wsignal.OptionsFromConfig(cfg), zapLogger)
	for _, path := range signalPaths(cfg.Signal.Path) {
		router.GET(path, wsServer.HandleWebSocket)
	}

	httphandlers.NewStatusHandler(signaling, health, version).SetupRoutes(router)

	if cfg.Monitoring.PrometheusEnabled {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	router.NoRoute(httphandlers.NewStaticHandler(cfg.Server.StaticDir).Serve)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	go monitoring.NewRegistryReporter(signaling, metrics, statsInterval, log).Run(ctx)

	addr := listenAddress(cfg.Server.Address, cfg.Server.LocalhostOnly)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting pairlink signaling server", "address", addr, "signal_paths", signalPaths(cfg.Signal.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	draining.Store(true)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	signaling.Shutdown(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}

	if err := repoFactory.Close(); err != nil {
		log.Errorw("error closing repository factory", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracer provider", "error", err)
	}

	log.Info("pairlink signaling server stopped")
}

// loadConfig loads path when given, otherwise the first readable file of
// the usual locations, falling back to defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}

	for _, candidate := range []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/pairlink/config.yaml",
		"config.yaml",
	} {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		cfg, err := config.Load(candidate)
		return cfg, candidate, err
	}

	cfg, err := config.Load("")
	return cfg, "defaults", err
}

// signalPaths returns the websocket endpoint and its webrtc and fallback
// variants.
func signalPaths(base string) []string {
	return []string{base, base + "/webrtc", base + "/fallback"}
}

func listenAddress(addr string, localhostOnly bool) string {
	if !localhostOnly {
		return addr
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return net.JoinHostPort("127.0.0.1", port)
}

// collectorOrNil keeps a nil collector from becoming a non-nil interface.
func collectorOrNil(c *monitoring.PrometheusCollector) ports.MetricsRecorder {
	if c == nil {
		return nil
	}
	return c
}
