package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nfse-pipeline/internal/domain"
	"nfse-pipeline/internal/queue"
	"nfse-pipeline/internal/storage"
	"nfse-pipeline/pkg/logger"
)

type capturingQueue struct {
	mu   sync.Mutex
	jobs []queue.Job
	err  error
}

func (q *capturingQueue) Enqueue(ctx context.Context, job queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *capturingQueue) enqueued() []queue.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]queue.Job, len(q.jobs))
	copy(out, q.jobs)
	return out
}

func TestCreateSale(t *testing.T) {
	store := storage.NewMemoryStore()
	q := &capturingQueue{}
	svc := NewSaleService(store, q, logger.NewNop())

	sale, err := svc.CreateSale(context.Background(), "user-1", 150.5, "Consultoria de TI")
	require.NoError(t, err)

	assert.NotEmpty(t, sale.ID)
	assert.Equal(t, domain.SaleStatusProcessing, sale.Status)
	assert.Equal(t, 150.5, sale.Amount)
	assert.NotEmpty(t, sale.JobID)

	stored, err := store.GetSale(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusProcessing, stored.Status)

	jobs := q.enqueued()
	require.Len(t, jobs, 1)
	assert.Equal(t, sale.ID, jobs[0].SaleID)
	assert.Equal(t, "user-1", jobs[0].UserID)
	assert.Equal(t, sale.JobID, jobs[0].ID)
}

func TestCreateSale_InvalidAmount(t *testing.T) {
	store := storage.NewMemoryStore()
	q := &capturingQueue{}
	svc := NewSaleService(store, q, logger.NewNop())

	tests := []struct {
		name   string
		amount float64
	}{
		{"zero", 0},
		{"negative", -10.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSale(context.Background(), "user-1", tt.amount, "desc")
			assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		})
	}

	assert.Empty(t, q.enqueued(), "invalid sales are never enqueued")
}

func TestListAndGetSales(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewSaleService(store, &capturingQueue{}, logger.NewNop())
	ctx := context.Background()

	created, err := svc.CreateSale(ctx, "user-1", 99.9, "desc")
	require.NoError(t, err)

	sales, err := svc.ListSales(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, created.ID, sales[0].ID)

	sale, err := svc.GetSale(ctx, created.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, sale.ID)

	_, err = svc.GetSale(ctx, created.ID, "user-2")
	assert.ErrorIs(t, err, domain.ErrSaleNotFound)
}
