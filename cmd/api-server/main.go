package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agencydesk/mdconsole/pkg/apiclient"
	"github.com/agencydesk/mdconsole/pkg/apiserver"
	"github.com/agencydesk/mdconsole/pkg/auth"
	"github.com/agencydesk/mdconsole/pkg/config"
	"github.com/agencydesk/mdconsole/pkg/console"
	"github.com/agencydesk/mdconsole/pkg/eventbus"
	"github.com/agencydesk/mdconsole/pkg/inflight"
	"github.com/agencydesk/mdconsole/pkg/logging"
	"github.com/agencydesk/mdconsole/pkg/store/postgres"
	redisclient "github.com/agencydesk/mdconsole/pkg/store/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("auth.jwt_secret is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := console.Options{
		ConfirmationTTL: cfg.Cascade.ConfirmationTTL,
		Logger:          logger,
	}

	if cfg.Database.Enabled {
		db, err := postgres.NewStore(&cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		if err := db.AutoMigrate(); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		opts.Journal = postgres.NewCascadeRepository(db.DB())
	}

	var bus *eventbus.Bus
	if cfg.Redis.Enabled {
		redis, err := redisclient.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redis.Close()

		bus = eventbus.NewBus(redis.Client(), uuid.NewString())
		opts.Publisher = bus
		if cfg.Cascade.LockBackend == "redis" {
			opts.Locker = inflight.NewRedisLocker(redis.Client(), cfg.Cascade.LockTTL)
		}
	}
	if opts.Locker == nil {
		if cfg.Cascade.LockBackend == "redis" {
			logger.Warn("redis lock backend requested but redis is disabled, using in-process locks")
		}
		opts.Locker = inflight.NewMemoryLocker(cfg.Cascade.LockTTL)
	}

	client := apiclient.NewClient(cfg.API, auth.RequestTokens{}, logger)
	manager := console.NewManager(client, opts)
	if bus != nil {
		go manager.Listen(ctx, bus.Subscribe(ctx, eventbus.ChannelStatus))
	}

	tokens := auth.NewTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	server := apiserver.NewServer(manager, tokens, cfg, logger)
	server.StartSweeper(ctx)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.ReadTimeout * 2,
	}

	go func() {
		logger.Info("Starting API server",
			zap.Int("port", cfg.Server.HTTPPort),
			zap.String("upstream", cfg.API.BaseURL),
			zap.String("lock_backend", cfg.Cascade.LockBackend),
			zap.Bool("journal", cfg.Database.Enabled),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
}
