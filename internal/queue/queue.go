// Package queue delivers sale-processing jobs to a fixed pool of workers
// with at-least-once semantics: a job is acked when the consumer returns
// nil, redelivered with exponential backoff when it returns an error, and
// retained on a dead list once its attempts are exhausted.
package queue

import (
	"context"
	"time"
)

type Job struct {
	ID         string    `json:"id"`
	SaleID     string    `json:"sale_id"`
	UserID     string    `json:"user_id"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type Consumer interface {
	Consume(ctx context.Context, job Job) error
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

type Config struct {
	Name        string
	Concurrency int
	MaxAttempts int
	BaseBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "sales"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 1 * time.Second
	}
	return c
}

// backoffFor returns the delay before redelivering a job that failed on the
// given 1-based attempt: base, base*2, base*4, ...
func backoffFor(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(1<<uint(attempt-1))
}
