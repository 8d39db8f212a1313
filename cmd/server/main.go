package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ryde/internal/app"
	"ryde/internal/audit"
	"ryde/internal/auth"
	"ryde/internal/config"
	"ryde/internal/handler"
	"ryde/internal/logging"
	"ryde/internal/realtime"
	internalRedis "ryde/internal/redis"
	"ryde/internal/repository/postgres"
	"ryde/internal/service"
)

const fanoutChannel = "ryde:broadcast"

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.ServiceName, cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", zap.Error(err))
			nrApp = nil
		} else {
			logger.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	if cfg.Database.Migrate {
		if err := app.Migrate(cfg.Database, logger); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	// Sessions and the fan-out subscriber live until shutdown.
	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	server, closers := wireServer(rootCtx, db, redisClient, nrApp, cfg, logger)
	defer func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("close failed", zap.Error(err))
			}
		}
	}()

	// Start server in goroutine.
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Hijacked websocket connections are not tracked by Shutdown; cancelling
	// the base context ends their sessions.
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if nrApp != nil {
		nrApp.Shutdown(cfg.Server.ShutdownTimeout)
	}

	logger.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server with the
// close functions of the writers it opened.
func wireServer(
	rootCtx context.Context,
	db *sql.DB,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	cfg *config.Config,
	logger *zap.Logger,
) (*http.Server, []func() error) {
	var closers []func() error

	// Initialize Redis stores.
	locationStore := internalRedis.NewLocationStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)
	idempotencyStore := internalRedis.NewIdempotencyStore(redisClient)

	// Initialize repositories.
	actorRepo := postgres.NewActorRepository(db)
	vehicleRepo := postgres.NewVehicleRepository(db)
	locationRepo := postgres.NewLocationRepository(db)
	rideRepo := postgres.NewRideRepository(db)

	// Audit sink and location stream.
	var sink audit.Sink = audit.NewLogSink(logger)
	var stream service.LocationPublisher
	if cfg.Kafka.Enabled() {
		kafkaSink := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		locationStream := audit.NewLocationStream(cfg.Kafka.Brokers, cfg.Kafka.LocationTopic)
		sink, stream = kafkaSink, locationStream
		closers = append(closers, kafkaSink.Close, locationStream.Close)
		logger.Info("kafka enabled", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	// Realtime core.
	registry := realtime.NewRegistry(logger)
	var broadcaster realtime.Broadcaster = registry
	if cfg.Redis.Fanout {
		cluster := realtime.NewClusterBroadcaster(internalRedis.NewEventBus(redisClient, fanoutChannel), registry, logger)
		go func() {
			if err := cluster.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("cluster fan-out stopped", zap.Error(err))
			}
		}()
		broadcaster = cluster
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	// Initialize services.
	directory := service.NewDirectoryService(actorRepo, cacheStore, logger)
	notificationService := service.NewNotificationService(sink, logger)
	stateMachine := service.NewStateMachine(rideRepo)
	dispatcher := service.NewDispatcher(actorRepo, locationRepo, broadcaster, lockStore, service.DispatchPolicy{
		MaxRadiusKm:  cfg.Dispatch.MaxRadiusKm,
		MinutesPerKm: cfg.Dispatch.MinutesPerKm,
		LockTTL:      cfg.Dispatch.LockTTL,
	}, logger)
	acceptService := service.NewAcceptService(rideRepo, directory, vehicleRepo, locationRepo, locationStore, broadcaster, notificationService, logger)
	relayService := service.NewRelayService(rideRepo, broadcaster, stream, notificationService, logger)
	rideService := service.NewRideService(rideRepo, directory, stateMachine, dispatcher, acceptService, broadcaster, notificationService, logger)
	driverService := service.NewDriverService(locationRepo, locationStore, stream, cfg.Dispatch.NearbyRadiusKm, logger)
	inbound := service.NewInboundRouter(relayService, acceptService, logger)

	// Initialize handlers.
	authenticator := realtime.NewAuthenticator(tokens, directory, cfg.Auth.HandshakeTimeout, logger)
	wsHandler := handler.NewWSHandler(authenticator, registry, inbound, realtime.SessionConfig{
		SendBuffer:   cfg.Realtime.SendBuffer,
		WriteWait:    cfg.Realtime.WriteWait,
		PongWait:     cfg.Realtime.PongWait,
		PingInterval: cfg.Realtime.PingInterval,
		MaxMessage:   cfg.Realtime.MaxMessage,
	}, cfg.Server.AllowedOrigins, logger)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		RideHandler:      handler.NewRideHandler(rideService),
		DriverHandler:    handler.NewDriverHandler(driverService),
		WSHandler:        wsHandler,
		Verifier:         tokens,
		Directory:        directory,
		IdempotencyStore: idempotencyStore,
		NewRelicApp:      nrApp,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		Log:              logger,
	})

	// Create HTTP server. No WriteTimeout: it would cut websocket sessions.
	return &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		BaseContext: func(net.Listener) context.Context { return rootCtx },
	}, closers
}
