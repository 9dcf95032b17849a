package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/application/accounting"
	eventapp "github.com/JasonPDev313/Oppsera-sub010/internal/application/event"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/posting"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/cache"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/config"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/event"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/logger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/persistence"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/telemetry"
	"github.com/JasonPDev313/Oppsera-sub010/internal/interfaces/http/handler"
	"github.com/JasonPDev313/Oppsera-sub010/internal/interfaces/http/middleware"
	"github.com/JasonPDev313/Oppsera-sub010/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}

	// The OTLP log bridge needs a logger of its own to report exporter errors.
	bootLog, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output, Service: serviceName})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       serviceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize log exporter", zap.Error(err))
	}

	var extra []zapcore.Core
	if cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled {
		extra = append(extra, logProvider.ZapCore(serviceName, zapcore.InfoLevel))
	}
	log, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: serviceName,
	}, extra...)
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting GL posting engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       serviceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       serviceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingServer,
		ApplicationName: serviceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if cfg.Telemetry.ProfilingEnabled {
		tracerProvider.EnableSpanProfiles()
	}
	meter := meterProvider.Meter(telemetry.TracerName)

	// Database
	dbInstrumentation, err := telemetry.NewDBInstrumentation(meter, telemetry.DBConfig{
		TraceEnabled:       cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:         cfg.Telemetry.DBLogFullSQL,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		DBName:             cfg.Database.DBName,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize database instrumentation", zap.Error(err))
	}
	db, err := persistence.NewDatabase(&cfg.Database, log, dbInstrumentation)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	ledgerMetrics, err := telemetry.NewLedgerMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create ledger metrics", zap.Error(err))
	}

	// Repositories shared across tenants. Tenant-bound repositories are
	// created per unit of work by the coordinator.
	mappingRepo := persistence.NewGormMappingRepository(db.DB)
	settingsRepo := persistence.NewGormSettingsRepository(db.DB)
	queryRepo := persistence.NewGormLedgerQueryRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	// Events: serializer, outbox and bus
	serializer := event.NewEventSerializer()
	event.RegisterLedgerEvents(serializer)
	outboxPublisher := event.NewOutboxPublisher(serializer, event.WithMaxRetries(cfg.Event.MaxRetries))

	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewLoggingHandler(log))

	processorConfig := outboxProcessorConfig(cfg.Event)
	outboxProcessor := event.NewOutboxProcessor(outboxRepo, eventBus, serializer, processorConfig, log)
	coordinator := persistence.NewGormTransactionCoordinator(db.DB, outboxPublisher, outboxProcessor, log)

	// Seen-cache in front of the engine's claim, shared by the bus and HTTP
	checks := map[string]handler.Pinger{"database": db}
	engineOpts := []accounting.PostingEngineOption{accounting.WithEngineMetrics(ledgerMetrics)}
	if cfg.Ledger.SeenCacheEnabled {
		seenCache, err := cache.NewSeenCacheFactory(cfg.Redis, cache.WithLogger(log)).Create(ctx)
		if err != nil {
			log.Fatal("Failed to create seen-cache", zap.Error(err))
		}
		defer func() {
			if err := seenCache.Close(); err != nil {
				log.Error("Error closing seen-cache", zap.Error(err))
			}
		}()
		if redisCache, ok := seenCache.(*cache.RedisSeenCache); ok {
			checks["redis"] = handler.PingFunc(redisCache.Ping)
		}
		idempotencyConfig := shared.DefaultIdempotencyConfig()
		if cfg.Ledger.SeenCacheTTL > 0 {
			idempotencyConfig.TTL = cfg.Ledger.SeenCacheTTL
		}
		engineOpts = append(engineOpts, accounting.WithSeenCache(event.NewIdempotencyGuard(seenCache, log,
			event.WithConsumerName(cfg.Ledger.ConsumerName),
			event.WithIdempotencyConfig(idempotencyConfig),
		)))
	}

	// Posting engine and services
	composer := posting.NewComposer()
	resolver := mapping.NewResolver(mappingRepo, settingsRepo, log)
	journalStore := accounting.NewJournalStore(coordinator, settingsRepo, log,
		accounting.WithJournalMetrics(ledgerMetrics),
	)
	engine := accounting.NewPostingEngine(composer, resolver, coordinator, journalStore, cfg.Ledger.ConsumerName, log, engineOpts...)
	remapService := accounting.NewRemapService(composer, resolver, coordinator, journalStore, queryRepo, log,
		accounting.WithRemapMaxBatch(cfg.Ledger.RemapMaxBatch),
		accounting.WithRemapMetrics(ledgerMetrics),
	)
	queryService := accounting.NewQueryService(queryRepo, mappingRepo, log)
	outboxService := eventapp.NewOutboxService(outboxRepo, log)

	inbound := accounting.NewInboundHandler(engine, log)
	eventBus.Subscribe(inbound, inbound.EventTypes()...)
	log.Info("Inbound event handler registered",
		zap.Strings("event_types", inbound.EventTypes()),
		zap.Bool("seen_cache", cfg.Ledger.SeenCacheEnabled),
	)

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	if cfg.Event.ProcessorEnabled {
		if err := outboxProcessor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		log.Info("Outbox processor started",
			zap.Int("batch_size", processorConfig.BatchSize),
			zap.Duration("poll_interval", processorConfig.PollInterval),
		)
	}

	// HTTP
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	middleware.SetupValidator()

	r := router.NewRouter(router.Config{
		ServiceName:       serviceName,
		TracingEnabled:    cfg.Telemetry.Enabled,
		ProfilingEnabled:  cfg.Telemetry.ProfilingEnabled,
		MaxBodySize:       cfg.HTTP.MaxBodySize,
		RateLimitEnabled:  cfg.HTTP.RateLimitEnabled,
		RateLimitRequests: cfg.HTTP.RateLimitRequests,
		RateLimitWindow:   cfg.HTTP.RateLimitWindow,
		CORS:              corsConfig,
		TrustedProxies:    cfg.HTTP.TrustedProxies,
		Logger:            log,
		Meter:             meter,
	})
	r.RegisterRoot(handler.NewSystemHandler(cfg.App.Name, version, checks))
	r.Register(handler.NewLedgerHandler(queryService, journalStore, remapService))
	r.Register(handler.NewEventHandler(event.NewInboundDecoder(), engine))
	r.RegisterAdmin(handler.NewOutboxHandler(outboxService))

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        r.Setup(),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if cfg.Event.ProcessorEnabled {
		if err := outboxProcessor.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping outbox processor", zap.Error(err))
		}
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	if err := dbInstrumentation.Close(); err != nil {
		log.Error("Error closing database instrumentation", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
	_ = log.Sync()
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		bootLog.Error("Error stopping log provider", zap.Error(err))
	}
}

func outboxProcessorConfig(cfg config.EventConfig) event.OutboxProcessorConfig {
	c := event.DefaultOutboxProcessorConfig()
	if cfg.BatchSize > 0 {
		c.BatchSize = cfg.BatchSize
	}
	if cfg.PollInterval > 0 {
		c.PollInterval = cfg.PollInterval
	}
	c.CleanupEnabled = cfg.CleanupEnabled
	if cfg.CleanupRetention > 0 {
		c.CleanupRetention = cfg.CleanupRetention
	}
	if cfg.CleanupInterval > 0 {
		c.CleanupInterval = cfg.CleanupInterval
	}
	return c
}
