package service

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"nfse-pipeline/internal/domain"
	"nfse-pipeline/internal/signing"
	"nfse-pipeline/pkg/logger"
)

type CertificateService interface {
	Upload(ctx context.Context, userID, filename string, file io.Reader, password string) (*domain.Certificate, error)
	List(ctx context.Context, userID string) ([]*domain.Certificate, error)
}

type certificateService struct {
	repo       domain.Repository
	uploadsDir string
	secret     string
	logger     *logger.Logger
}

func NewCertificateService(repo domain.Repository, uploadsDir, secret string, log *logger.Logger) CertificateService {
	return &certificateService{
		repo:       repo,
		uploadsDir: uploadsDir,
		secret:     secret,
		logger:     log,
	}
}

// Upload stores the PKCS#12 file under a generated name and persists the
// reference with the AES-encrypted password.
func (s *certificateService) Upload(ctx context.Context, userID, filename string, file io.Reader, password string) (*domain.Certificate, error) {
	encrypted, err := signing.EncryptPassword(password, s.secret)
	if err != nil {
		s.logger.Error(ctx, "Failed to encrypt certificate password",
			"error", err,
		)
		return nil, err
	}

	storedName := uuid.New().String() + filepath.Ext(filename)

	if err := os.MkdirAll(s.uploadsDir, 0o755); err != nil {
		return nil, err
	}

	dst, err := os.Create(filepath.Join(s.uploadsDir, storedName))
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return nil, err
	}

	cert := &domain.Certificate{
		ID:                uuid.New().String(),
		UserID:            userID,
		Filename:          storedName,
		EncryptedPassword: encrypted,
	}

	if err := s.repo.CreateCertificate(ctx, cert); err != nil {
		s.logger.Error(ctx, "Failed to persist certificate",
			"error", err,
		)
		return nil, err
	}

	s.logger.Info(ctx, "Certificate uploaded",
		"certificate_id", cert.ID,
		"user_id", userID,
	)

	return cert, nil
}

func (s *certificateService) List(ctx context.Context, userID string) ([]*domain.Certificate, error) {
	return s.repo.ListCertificatesByUser(ctx, userID)
}
