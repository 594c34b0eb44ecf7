package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"nfse-pipeline/internal/authority"
	"nfse-pipeline/internal/config"
	"nfse-pipeline/internal/domain"
	"nfse-pipeline/internal/lock"
	"nfse-pipeline/internal/notify"
	"nfse-pipeline/internal/processor"
	"nfse-pipeline/internal/queue"
	"nfse-pipeline/internal/signing"
	"nfse-pipeline/internal/storage"
	"nfse-pipeline/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.Logging.Level)
	defer log.Sync()

	ctx := context.Background()
	log.Info(ctx, "Starting worker")

	repo, cleanup := openRepository(ctx, cfg, log)
	defer cleanup()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	locker := lock.NewRedisLocker(rdb, cfg.Lock.TTL, log)
	broker := notify.NewRedisBroker(rdb)

	signer := signing.NewSigner(cfg.Signing.UploadsDir, cfg.Signing.EncryptionSecret)

	authorityClient := authority.NewClient(authority.Config{
		BaseURL:     cfg.Authority.BaseURL,
		Timeout:     cfg.Authority.Timeout,
		MaxAttempts: cfg.Authority.MaxAttempts,
	}, log)
	defer authorityClient.Close()

	webhook := notify.NewWebhookSender(cfg.Webhook.URL, cfg.Webhook.Timeout, log)
	defer webhook.Close()

	saleProcessor := processor.New(repo, locker, signer, authorityClient, broker, webhook, log)

	salesQueue := queue.NewRedisQueue(rdb, queue.Config{
		Name:        cfg.Queue.Name,
		Concurrency: cfg.Queue.Concurrency,
		MaxAttempts: cfg.Queue.MaxAttempts,
		BaseBackoff: cfg.Queue.BaseBackoff,
	}, log)

	if err := salesQueue.Start(ctx, saleProcessor); err != nil {
		log.Fatal(ctx, "Failed to start queue workers",
			"error", err,
		)
	}

	log.Info(ctx, "Worker started, listening for jobs",
		"queue", cfg.Queue.Name,
		"worker_count", cfg.Queue.Concurrency,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(ctx, "Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := salesQueue.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "Queue shutdown error",
			"error", err,
		)
	}

	log.Info(ctx, "Worker stopped gracefully")
}

func openRepository(ctx context.Context, cfg *config.Config, log *logger.Logger) (domain.Repository, func()) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Warn(ctx, "Using in-memory storage, state is not shared with the API")
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
