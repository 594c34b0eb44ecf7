package queue

import (
	"context"
	"sync"
	"time"

	"nfse-pipeline/pkg/logger"
)

// MemoryQueue is a channel-backed Queue with the same delivery semantics as
// the Redis one, for tests and single-process runs.
type MemoryQueue struct {
	jobs     chan Job
	cfg      Config
	consumer Consumer
	logger   *logger.Logger

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex

	deadMu sync.Mutex
	dead   []Job
}

func NewMemoryQueue(cfg Config, log *logger.Logger) *MemoryQueue {
	return &MemoryQueue{
		jobs:   make(chan Job, 1000),
		cfg:    cfg.withDefaults(),
		logger: log,
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	if job.Attempt < 1 {
		job.Attempt = 1
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}

	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Start(ctx context.Context, consumer Consumer) error {
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

func (q *MemoryQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.handle(ctx, job, workerID)
		}
	}
}

func (q *MemoryQueue) handle(ctx context.Context, job Job, workerID int) {
	jobCtx := logger.WithTraceID(ctx, job.ID)
	jobCtx = logger.WithSaleID(jobCtx, job.SaleID)

	err := q.consumer.Consume(jobCtx, job)
	if err == nil {
		return
	}

	if job.Attempt >= q.cfg.MaxAttempts {
		q.logger.Error(jobCtx, "Job attempts exhausted, retaining on dead list",
			"attempt", job.Attempt,
			"error", err,
		)
		q.deadMu.Lock()
		q.dead = append(q.dead, job)
		q.deadMu.Unlock()
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
			return
		}
		select {
		case q.jobs <- job:
		case <-ctx.Done():
		}
	}()
}

// DeadJobs returns jobs retained after exhausting their attempts.
func (q *MemoryQueue) DeadJobs() []Job {
	q.deadMu.Lock()
	defer q.deadMu.Unlock()

	out := make([]Job, len(q.dead))
	copy(out, q.dead)
	return out
}

func (q *MemoryQueue) Shutdown(ctx context.Context) error {
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
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
