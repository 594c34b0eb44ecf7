package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"nfse-pipeline/internal/domain"
	"nfse-pipeline/internal/queue"
	"nfse-pipeline/pkg/logger"
)

type SaleService interface {
	CreateSale(ctx context.Context, userID string, amount float64, description string) (*domain.Sale, error)
	ListSales(ctx context.Context, userID string) ([]*domain.Sale, error)
	GetSale(ctx context.Context, saleID, userID string) (*domain.Sale, error)
}

type saleService struct {
	repo   domain.Repository
	queue  queue.Queue
	logger *logger.Logger
}

func NewSaleService(repo domain.Repository, q queue.Queue, log *logger.Logger) SaleService {
	return &saleService{
		repo:   repo,
		queue:  q,
		logger: log,
	}
}

// CreateSale persists the sale in PROCESSING and enqueues the processing job.
func (s *saleService) CreateSale(ctx context.Context, userID string, amount float64, description string) (*domain.Sale, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	sale := &domain.Sale{
		ID:          uuid.New().String(),
		UserID:      userID,
		Amount:      amount,
		Description: description,
		Status:      domain.SaleStatusProcessing,
		JobID:       uuid.New().String(),
		CreatedAt:   time.Now(),
	}

	ctx = logger.WithSaleID(ctx, sale.ID)

	if err := s.repo.CreateSale(ctx, sale); err != nil {
		s.logger.Error(ctx, "Failed to create sale",
			"error", err,
		)
		return nil, err
	}

	job := queue.Job{
		ID:     sale.JobID,
		SaleID: sale.ID,
		UserID: userID,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Error(ctx, "Failed to enqueue sale job",
			"job_id", job.ID,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info(ctx, "Sale created and queued for processing",
		"job_id", job.ID,
		"amount", amount,
	)

	return sale, nil
}

func (s *saleService) ListSales(ctx context.Context, userID string) ([]*domain.Sale, error) {
	return s.repo.ListSalesByUser(ctx, userID)
}

func (s *saleService) GetSale(ctx context.Context, saleID, userID string) (*domain.Sale, error) {
	return s.repo.GetSaleForUser(ctx, saleID, userID)
}
