package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"nfse-pipeline/pkg/logger"
)

// RedisQueue is a Redis-list backed Queue. Producers LPUSH serialized jobs;
// workers block on BRPOP. Redelivery is scheduled in-process after backoff;
// exhausted jobs land on the dead list for manual inspection.
type RedisQueue struct {
	rdb      *redis.Client
	cfg      Config
	consumer Consumer
	logger   *logger.Logger

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex
}

func NewRedisQueue(rdb *redis.Client, cfg Config, log *logger.Logger) *RedisQueue {
	return &RedisQueue{
		rdb:    rdb,
		cfg:    cfg.withDefaults(),
		logger: log,
	}
}

func (q *RedisQueue) listKey() string {
	return "queue:" + q.cfg.Name
}

func (q *RedisQueue) deadKey() string {
	return "queue:" + q.cfg.Name + ":dead"
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	if job.Attempt < 1 {
		job.Attempt = 1
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}

	return q.rdb.LPush(ctx, q.listKey(), payload).Err()
}

// Start launches the worker pool consuming into the given consumer.
func (q *RedisQueue) Start(ctx context.Context, consumer Consumer) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return nil
	}

	q.consumer = consumer
	ctx, q.cancel = context.WithCancel(ctx)

	q.logger.Info(ctx, "Starting queue workers",
		"queue", q.cfg.Name,
		"worker_count", q.cfg.Concurrency,
	)

	for i := 0; i < q.cfg.Concurrency; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	q.started = true
	return nil
}

func (q *RedisQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	q.logger.Debug(ctx, "Worker started", "worker_id", workerID)

	for {
		select {
		case <-ctx.Done():
			q.logger.Debug(ctx, "Worker stopping", "worker_id", workerID)
			return
		default:
		}

		res, err := q.rdb.BRPop(ctx, 2*time.Second, q.listKey()).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.logger.Error(ctx, "Failed to pop job",
				"worker_id", workerID,
				"error", err,
			)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		// BRPOP returns [key, value]
		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			q.logger.Error(ctx, "Dropping malformed job payload",
				"worker_id", workerID,
				"error", err,
			)
			continue
		}

		q.handle(ctx, job, workerID)
	}
}

func (q *RedisQueue) handle(ctx context.Context, job Job, workerID int) {
	jobCtx := logger.WithTraceID(ctx, job.ID)
	jobCtx = logger.WithSaleID(jobCtx, job.SaleID)

	q.logger.Debug(jobCtx, "Processing job",
		"worker_id", workerID,
		"attempt", job.Attempt,
	)

	err := q.consumer.Consume(jobCtx, job)
	if err == nil {
		q.logger.Debug(jobCtx, "Job completed", "worker_id", workerID)
		return
	}

	if job.Attempt >= q.cfg.MaxAttempts {
		q.logger.Error(jobCtx, "Job attempts exhausted, moving to dead list",
			"attempt", job.Attempt,
			"error", err,
		)
		payload, merr := json.Marshal(job)
		if merr == nil {
			if derr := q.rdb.LPush(context.WithoutCancel(jobCtx), q.deadKey(), payload).Err(); derr != nil {
				q.logger.Error(jobCtx, "Failed to record dead job", "error", derr)
			}
		}
		return
	}

	delay := backoffFor(job.Attempt, q.cfg.BaseBackoff)
	q.logger.Warn(jobCtx, "Job failed, scheduling redelivery",
		"attempt", job.Attempt,
		"delay", delay,
		"error", err,
	)

	job.Attempt++
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			// Requeue immediately on shutdown so the job survives.
		}
		if rerr := q.Enqueue(context.WithoutCancel(ctx), job); rerr != nil {
			q.logger.Error(jobCtx, "Failed to requeue job", "error", rerr)
		}
	}()
}

func (q *RedisQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info(ctx, "Queue shutdown complete", "queue", q.cfg.Name)
		return nil
	case <-ctx.Done():
		q.logger.Warn(ctx, "Queue shutdown timeout", "queue", q.cfg.Name)
		return ctx.Err()
	}
}
