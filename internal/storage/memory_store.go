package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"nfse-pipeline/internal/domain"
)

type MemoryStore struct {
	sales        map[string]*domain.Sale
	certificates map[string][]*domain.Certificate
	users        map[string]*domain.User
	mu           sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sales:        make(map[string]*domain.Sale),
		certificates: make(map[string][]*domain.Certificate),
		users:        make(map[string]*domain.User),
	}
}

func (s *MemoryStore) CreateSale(ctx context.Context, sale *domain.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	sale.UpdatedAt = now

	stored := *sale
	s.sales[sale.ID] = &stored

	return nil
}

func (s *MemoryStore) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.sales[saleID]
	if !exists {
		return nil, domain.ErrSaleNotFound
	}

	// Return a snapshot so callers never observe concurrent mutation.
	out := *sale
	return &out, nil
}

func (s *MemoryStore) GetSaleForUser(ctx context.Context, saleID, userID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.sales[saleID]
	if !exists || sale.UserID != userID {
		return nil, domain.ErrSaleNotFound
	}

	out := *sale
	return &out, nil
}

func (s *MemoryStore) ListSalesByUser(ctx context.Context, userID string) ([]*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Sale
	for _, sale := range s.sales {
		if sale.UserID == userID {
			copied := *sale
			out = append(out, &copied)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (s *MemoryStore) MarkSaleSuccess(ctx context.Context, saleID, protocol string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.sales[saleID]
	if !exists {
		return nil, domain.ErrSaleNotFound
	}

	sale.Status = domain.SaleStatusSuccess
	sale.Protocol = protocol
	sale.ErrorMsg = ""
	sale.UpdatedAt = time.Now()

	out := *sale
	return &out, nil
}

func (s *MemoryStore) MarkSaleError(ctx context.Context, saleID, errorMsg string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.sales[saleID]
	if !exists {
		return nil, domain.ErrSaleNotFound
	}

	sale.Status = domain.SaleStatusError
	sale.ErrorMsg = errorMsg
	sale.Protocol = ""
	sale.UpdatedAt = time.Now()

	out := *sale
	return &out, nil
}

func (s *MemoryStore) CreateCertificate(ctx context.Context, cert *domain.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = time.Now()
	}

	stored := *cert
	s.certificates[cert.UserID] = append(s.certificates[cert.UserID], &stored)

	return nil
}

func (s *MemoryStore) LatestCertificate(ctx context.Context, userID string) (*domain.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	certs := s.certificates[userID]
	if len(certs) == 0 {
		return nil, domain.ErrNoCertificate
	}

	latest := certs[0]
	for _, cert := range certs[1:] {
		if cert.CreatedAt.After(latest.CreatedAt) {
			latest = cert
		}
	}

	out := *latest
	return &out, nil
}

func (s *MemoryStore) ListCertificatesByUser(ctx context.Context, userID string) ([]*domain.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	certs := s.certificates[userID]
	out := make([]*domain.Certificate, 0, len(certs))
	for _, cert := range certs {
		copied := *cert
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	stored := *user
	s.users[user.ID] = &stored

	return nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			out := *user
			return &out, nil
		}
	}

	return nil, domain.ErrUserNotFound
}
