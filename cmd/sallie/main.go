package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sallie/companion/config"
	"github.com/sallie/companion/pkg/api"
	"github.com/sallie/companion/pkg/api/handlers"
	"github.com/sallie/companion/pkg/api/middleware"
	"github.com/sallie/companion/pkg/companion"
	"github.com/sallie/companion/pkg/eventbus"
	grpcserver "github.com/sallie/companion/pkg/grpc"
	"github.com/sallie/companion/pkg/logger"
	"github.com/sallie/companion/pkg/metrics"
	"github.com/sallie/companion/pkg/storage"
	badgerstore "github.com/sallie/companion/pkg/storage/badger"
	memstorage "github.com/sallie/companion/pkg/storage/memory"
	redisstore "github.com/sallie/companion/pkg/storage/redis"
	sqlitestore "github.com/sallie/companion/pkg/storage/sqlite"
	"github.com/sallie/companion/pkg/telemetry/tracing"
	"github.com/sallie/companion/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")
	watchFlag   = flag.Bool("watch", true, "Reload hot-reloadable settings when the config file changes")

	// CLI overrides
	appName     = flag.String("app-name", "", "Override app name")
	serverPort  = flag.Int("port", 0, "Override server port")
	grpcPort    = flag.Int("grpc-port", 0, "Enable the gRPC server on this port")
	logLevel    = flag.String("log-level", "", "Override log level")
	storageType = flag.String("storage", "", "Override storage backend (memory, badger, redis, sqlite)")
	debugMode   = flag.Bool("debug", false, "Enable debug mode")
)

func main() {
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}
	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	overrides := buildOverrides()
	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	logCfg := cfg.Log.ToLoggerConfig()
	if cfg.App.Debug || *debugMode {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	if err := run(cfg, log, overrides); err != nil {
		log.Error("Sallie exited with error", "error", err)
		_ = log.Close()
		os.Exit(1)
	}
	_ = log.Close()
}

func run(cfg *config.Config, log logger.Logger, overrides map[string]interface{}) error {
	log.Info("Starting Sallie",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)
	log.Debug("Configuration loaded", "config", cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		tctx, tcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer tcancel()
		if err := shutdownTracing(tctx); err != nil {
			log.Warn("Tracing shutdown failed", "error", err)
		}
	}()

	store, err := openStorage(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage", "error", err)
		}
	}()

	metricsManager := metrics.NewManager(cfg.Metrics.ToMetricsConfig())
	if metricsManager.Enabled() {
		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	var (
		bus       eventbus.Bus
		publisher *eventbus.Publisher
	)
	if cfg.EventBus.Enabled {
		var closeBus func()
		bus, closeBus, err = openEventBus(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeBus()
		publisher, err = eventbus.NewPublisher(cfg.EventBus.Source, bus, cfg.EventBus.RetryConfig(),
			eventbus.WithTelemetry(metricsManager),
			eventbus.WithSchemaRouter(eventbus.DefaultSchemaRouter()),
		)
		if err != nil {
			return fmt.Errorf("create event publisher: %w", err)
		}
	}

	c, err := newCompanion(cfg, store, log, metricsManager, publisher)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start companion: %w", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
		defer scancel()
		log.Info("Stopping companion")
		if err := c.Stop(sctx); err != nil {
			log.Error("Error during companion shutdown", "error", err)
		}
	}()

	apiHandlers := buildHandlers(cfg, c, publisher, log, metricsManager)
	defer apiHandlers.WebSocket.Close()

	if bus != nil && cfg.Server.WebSocket.Enabled {
		sub, err := bus.Subscribe(eventbus.AllSubjects(), cfg.Server.WebSocket.BufferSize)
		if err != nil {
			return fmt.Errorf("subscribe websocket relay: %w", err)
		}
		defer func() { _ = sub.Close() }()
		go apiHandlers.WebSocket.Forward(ctx, sub, eventbus.NewEnvelopeConsumer(eventbus.DefaultSchemaRouter(), 0))
	}

	if *watchFlag && *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, config.NewLoader(),
			config.WithLogger(log),
			config.WithOverrides(overrides),
		)
		if err != nil {
			log.Warn("Config watcher disabled", "error", err)
		} else {
			watcher.OnChange(hotReload(log, apiHandlers.RateLimiter, config.ExtractHotReloadable(cfg)))
			go func() {
				if err := watcher.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Warn("Config watcher stopped", "error", err)
				}
			}()
			defer func() { _ = watcher.Stop() }()
		}
	}

	httpServer := api.NewHTTPServer(cfg, log, apiHandlers)
	serverErrChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	var grpcErrChan <-chan error
	grpcServer, err := startGRPC(cfg, c, log, metricsManager)
	if err != nil {
		shutdownHTTP(cfg, httpServer, log)
		return err
	}
	if grpcServer != nil {
		grpcErrChan = grpcServer.Err()
	}

	log.Info("Sallie is running",
		"http_port", cfg.Server.Port,
		"grpc_enabled", grpcServer != nil,
		"metrics_port", cfg.Metrics.Port,
		"storage", cfg.Storage.Type,
		"archetype", c.Personality().Archetype().String(),
	)

	var runErr error
	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
	case runErr = <-serverErrChan:
	case err := <-grpcErrChan:
		runErr = fmt.Errorf("grpc server: %w", err)
	}

	if grpcServer != nil {
		gctx, gcancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
		if err := grpcServer.Stop(gctx); err != nil {
			log.Error("Error shutting down gRPC server", "error", err)
		}
		gcancel()
	}
	shutdownHTTP(cfg, httpServer, log)
	cancel()

	log.Info("Sallie stopped")
	return runErr
}

func shutdownHTTP(cfg *config.Config, httpServer *api.HTTPServer, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}
}

// startGRPC starts the gRPC server when enabled. Its health service reports
// SERVING only while the companion is started. It returns nil when disabled.
func startGRPC(cfg *config.Config, c *companion.Companion, log logger.Logger, m *metrics.Manager) (*grpcserver.Server, error) {
	if !cfg.Server.GRPC.Enabled {
		return nil, nil
	}
	opts := grpcserver.Options{
		Readiness: c.Started,
		Logger:    log,
		Tracing:   cfg.Tracing.Enabled,
	}
	if m.Enabled() {
		opts.Metrics = m
	}
	srv, err := grpcserver.New(cfg.Server.GRPC.ToGRPCConfig(cfg.Server.Host), opts)
	if err != nil {
		return nil, fmt.Errorf("create grpc server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return nil, fmt.Errorf("start grpc server: %w", err)
	}
	return srv, nil
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.HTTP.ShutdownTimeout > 0 {
		return cfg.Server.HTTP.ShutdownTimeout
	}
	return 10 * time.Second
}

// openStorage opens the configured backend wrapped with the call timeout.
func openStorage(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (storage.Storage, error) {
	var (
		backend storage.Storage
		err     error
	)
	switch cfg.Type {
	case "badger":
		backend, err = badgerstore.NewBadgerStorage(cfg.Badger.ToBadgerConfig())
		if err != nil {
			return nil, fmt.Errorf("open badger storage: %w", err)
		}
		log.Info("Initialized Badger storage", "path", cfg.Badger.Path)
	case "redis":
		backend, err = redisstore.NewRedisStorage(ctx, cfg.Redis.ToRedisConfig())
		if err != nil {
			return nil, fmt.Errorf("open redis storage: %w", err)
		}
		log.Info("Initialized Redis storage", "address", cfg.Redis.Address, "db", cfg.Redis.DB)
	case "sqlite":
		backend, err = sqlitestore.NewSQLiteStorage(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		log.Info("Initialized SQLite storage", "path", cfg.SQLite.Path)
	case "memory", "":
		backend = memstorage.NewMemoryStorage()
		log.Info("Initialized memory storage")
	default:
		backend = memstorage.NewMemoryStorage()
		log.Warn("Unknown storage type, using memory storage", "type", cfg.Type)
	}
	return storage.WithTimeout(backend, cfg.Timeout), nil
}

// openEventBus opens the configured event transport. The returned func
// releases it.
func openEventBus(ctx context.Context, cfg *config.Config, log logger.Logger) (eventbus.Bus, func(), error) {
	if cfg.EventBus.Transport != "redis" {
		bus := eventbus.NewMemoryBus()
		return bus, func() { _ = bus.Close() }, nil
	}

	rc := cfg.Storage.Redis
	client := redis.NewClient(&redis.Options{
		Addr:        rc.Address,
		Password:    rc.Password,
		DB:          rc.DB,
		DialTimeout: rc.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis event bus: %w", err)
	}
	bus := eventbus.NewRedisBus(client, cfg.EventBus.ChannelPrefix)
	log.Info("Initialized Redis event bus", "address", rc.Address, "channel_prefix", cfg.EventBus.ChannelPrefix)
	return bus, func() {
		_ = bus.Close()
		_ = client.Close()
	}, nil
}

func newCompanion(cfg *config.Config, store storage.Storage, log logger.Logger, m *metrics.Manager, pub *eventbus.Publisher) (*companion.Companion, error) {
	persOpts, err := cfg.Personality.ToOptions()
	if err != nil {
		return nil, fmt.Errorf("personality options: %w", err)
	}
	opts := companion.Options{
		Memory:        cfg.Memory.ToOptions(),
		Emotion:       cfg.Emotion.ToOptions(),
		Personality:   persOpts,
		Storage:       store,
		Consolidation: cfg.Memory.ConsolidationEnabled,
		Logger:        log,
		Publisher:     pub,
	}
	if m.Enabled() {
		opts.Metrics = m
	}
	return companion.New(opts)
}

func buildHandlers(cfg *config.Config, c *companion.Companion, pub *eventbus.Publisher, log logger.Logger, m *metrics.Manager) *api.Handlers {
	h := &api.Handlers{
		Health:       handlers.NewHealthHandler(c, degradedReporter(pub)),
		Memory:       handlers.NewMemoryHandler(c, log),
		Emotion:      handlers.NewEmotionHandler(c, log),
		Personality:  handlers.NewPersonalityHandler(c, log),
		Interactions: handlers.NewInteractionHandler(c, log),
		WebSocket: handlers.NewWebSocketHandler(log, handlers.WebSocketConfig{
			AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
			MaxConnections: cfg.Server.WebSocket.MaxConnections,
			BufferSize:     cfg.Server.WebSocket.BufferSize,
			PingInterval:   cfg.Server.WebSocket.PingInterval,
			WriteTimeout:   cfg.Server.WebSocket.WriteTimeout,
		}),
		RateLimiter: middleware.NewRateLimiter(
			cfg.Server.RateLimit.Enabled,
			cfg.Server.RateLimit.RequestsPerSecond,
			cfg.Server.RateLimit.Burst,
		),
	}
	if m.Enabled() {
		h.Metrics = m
	}
	return h
}

// degradedReporter avoids handing a typed nil publisher to the health handler.
func degradedReporter(pub *eventbus.Publisher) handlers.DegradedReporter {
	if pub == nil {
		return nil
	}
	return pub
}

// hotReload returns the watcher callback applying settings that can change
// without a restart.
func hotReload(log logger.Logger, limiter *middleware.RateLimiter, current config.HotReloadableConfig) func(*config.Config) {
	return func(cfg *config.Config) {
		next := config.ExtractHotReloadable(cfg)
		if !next.Changed(current) {
			return
		}
		if next.LogLevel != current.LogLevel {
			log.SetLevel(logger.ParseLevel(next.LogLevel))
		}
		limiter.Update(next.RateLimitEnabled, next.RateLimitRPS, next.RateLimitBurst)
		log.Info("Configuration reloaded",
			"log_level", next.LogLevel,
			"rate_limit_enabled", next.RateLimitEnabled,
			"rate_limit_rps", next.RateLimitRPS,
			"rate_limit_burst", next.RateLimitBurst,
		)
		current = next
	}
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *appName != "" {
		overrides["app.name"] = *appName
	}
	if *serverPort != 0 {
		overrides["server.port"] = *serverPort
	}
	if *grpcPort != 0 {
		overrides["server.grpc.enabled"] = true
		overrides["server.grpc.port"] = *grpcPort
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *storageType != "" {
		overrides["storage.type"] = *storageType
	}
	if *debugMode {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion() {
	fmt.Printf("Sallie - Companion Memory & Persona Service\n")
	fmt.Printf("Version:    %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Go Version: %s\n", version.GoVersion)
}

func printHelp() {
	fmt.Printf("Sallie - Companion memory, emotional state and personality service\n\n")
	fmt.Printf("Usage: sallie [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  sallie                                    # Run with default config\n")
	fmt.Printf("  sallie -config config.yaml                # Use specific config file\n")
	fmt.Printf("  sallie -storage badger -log-level debug   # Override specific options\n")
	fmt.Printf("  sallie -grpc-port 9090                    # Also serve gRPC health checks\n")
	fmt.Printf("  sallie -version                           # Print version info\n")
}
