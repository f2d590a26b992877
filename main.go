package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/activity-point/api-go/config"
	"github.com/activity-point/api-go/controllers"
	"github.com/activity-point/api-go/middleware"
	"github.com/activity-point/api-go/outbox"
	"github.com/activity-point/api-go/routes"
	"github.com/activity-point/api-go/services"
	"github.com/activity-point/api-go/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := config.NewLogger(cfg.App)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := config.InitDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	catalog := services.NewCatalog(db, logger)
	if err := catalog.Seed(ctx); err != nil {
		logger.Fatal("failed to seed achievements", zap.Error(err))
	}
	activityTypes := services.NewActivityTypeCatalog(db, logger)
	if err := activityTypes.Seed(ctx); err != nil {
		logger.Fatal("failed to seed activity types", zap.Error(err))
	}

	store := storage.NewS3Store(cfg.Storage, logger)
	if err := store.EnsureBucket(ctx); err != nil {
		// Avatar uploads fail until the bucket is reachable; everything else works.
		logger.Warn("avatar bucket unavailable", zap.String("bucket", cfg.Storage.Bucket), zap.Error(err))
	}

	events := outbox.NewRecorder(cfg.Kafka.Enabled())
	grants := services.NewGrantGuard(db, catalog, events, logger, services.GrantOptions{
		MaxAttempts: cfg.Workers.GrantMaxAttempts,
		BackoffBase: cfg.Workers.GrantBackoffBase,
	})
	ledger := services.NewLedger(db, cfg.XP.Policy(), grants, events, logger)

	activityService := services.NewActivityService(db, ledger, grants, events, logger)
	userService := services.NewUserService(db, store, grants, logger)
	authService := services.NewAuthService(db, services.AuthOptions{
		Secret:           cfg.Auth.JWTSecret,
		Issuer:           cfg.Auth.Issuer,
		TokenTTL:         cfg.Auth.TokenTTL,
		DefaultAvatarURL: cfg.Storage.DefaultAvatarURL,
	}, logger)

	grantWorker := services.NewGrantWorker(grants, logger, cfg.Workers.GrantRetryInterval)
	grantWorker.Start()

	var dispatcher *outbox.Dispatcher
	if cfg.Kafka.Enabled() {
		producer := outbox.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()

		dispatcher = outbox.NewDispatcher(db, producer, logger, cfg.Kafka.PollInterval, cfg.Kafka.BatchSize)
		go dispatcher.Start(ctx)
	} else {
		logger.Info("kafka brokers not configured, domain events are not recorded")
	}

	if cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Timeout(cfg.HTTP.RequestTimeout))

	routes.SetupRoutes(r, db, routes.Controllers{
		Auth:         controllers.NewAuthController(authService),
		Activities:   controllers.NewActivityController(activityService, activityTypes),
		Users:        controllers.NewUserController(userService),
		Achievements: controllers.NewAchievementController(catalog),
		Leaderboard:  controllers.NewLeaderboardController(userService),
	}, routes.AuthSettings{Secret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.Issuer})

	server := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTP.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	grantWorker.Stop()
	if dispatcher != nil {
		dispatcher.Wait()
	}
	logger.Info("server stopped")
}
