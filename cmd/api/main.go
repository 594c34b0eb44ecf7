package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"nfse-pipeline/internal/config"
	"nfse-pipeline/internal/domain"
	"nfse-pipeline/internal/handler"
	"nfse-pipeline/internal/notify"
	"nfse-pipeline/internal/queue"
	"nfse-pipeline/internal/server"
	"nfse-pipeline/internal/service"
	"nfse-pipeline/internal/storage"
	"nfse-pipeline/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.Logging.Level)
	defer log.Sync()

	ctx := context.Background()
	log.Info(ctx, "Starting API")

	repo, cleanup := openRepository(ctx, cfg, log)
	defer cleanup()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	salesQueue := queue.NewRedisQueue(rdb, queue.Config{
		Name:        cfg.Queue.Name,
		Concurrency: cfg.Queue.Concurrency,
		MaxAttempts: cfg.Queue.MaxAttempts,
		BaseBackoff: cfg.Queue.BaseBackoff,
	}, log)

	broker := notify.NewRedisBroker(rdb)

	authService := service.NewAuthService(repo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, log)
	saleService := service.NewSaleService(repo, salesQueue, log)
	certificateService := service.NewCertificateService(repo, cfg.Signing.UploadsDir, cfg.Signing.EncryptionSecret, log)
	log.Info(ctx, "Services initialized")

	if cfg.Auth.SeedDemoUser {
		if err := authService.SeedUser(ctx, cfg.Auth.DemoUserEmail, cfg.Auth.DemoUserPass); err != nil {
			log.Error(ctx, "Failed to seed demo user",
				"error", err,
			)
		} else {
			log.Info(ctx, "Demo user available",
				"email", cfg.Auth.DemoUserEmail,
			)
		}
	}

	srv := server.New(
		cfg,
		log,
		authService,
		handler.NewAuthHandler(authService, log),
		handler.NewSaleHandler(saleService, log),
		handler.NewCertificateHandler(certificateService, log),
		handler.NewEventsHandler(broker, log),
		handler.NewHealthHandler(),
	)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal(ctx, "Failed to start HTTP server",
				"error", err,
			)
		}
	}()

	log.Info(ctx, "API started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(ctx, "Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "HTTP server shutdown error",
			"error", err,
		)
	}

	log.Info(ctx, "API stopped gracefully")
}

func openRepository(ctx context.Context, cfg *config.Config, log *logger.Logger) (domain.Repository, func()) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Warn(ctx, "Using in-memory storage, state is lost on restart and not shared with the worker")
		return storage.NewMemoryStore(), func() {}
	default:
		store, err := storage.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatal(ctx, "Failed to open sqlite store",
				"path", cfg.Storage.SQLitePath,
				"error", err,
			)
		}
		return store, func() { store.Close() }
	}
}
