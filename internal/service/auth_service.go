package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"nfse-pipeline/internal/domain"
	"nfse-pipeline/pkg/logger"
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (token string, userID string, err error)
	VerifyToken(token string) (userID string, err error)
	SeedUser(ctx context.Context, email, password string) error
}

type authService struct {
	repo     domain.Repository
	secret   string
	tokenTTL time.Duration
	logger   *logger.Logger
}

func NewAuthService(repo domain.Repository, secret string, tokenTTL time.Duration, log *logger.Logger) AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &authService{
		repo:     repo,
		secret:   secret,
		tokenTTL: tokenTTL,
		logger:   log,
	}
}

type claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

func (s *authService) Login(ctx context.Context, email, password string) (string, string, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return "", "", domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", "", domain.ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
		UserID: user.ID,
	})

	signed, err := token.SignedString([]byte(s.secret))
	if err != nil {
		return "", "", err
	}

	s.logger.Info(ctx, "User logged in",
		"user_id", user.ID,
	)

	return signed, user.ID, nil
}

func (s *authService) VerifyToken(tokenStr string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return "", err
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.UserID == "" {
		return "", errors.New("invalid token")
	}

	return c.UserID, nil
}

// SeedUser creates a user if the email is not taken. Used for the demo
// account in local environments.
func (s *authService) SeedUser(ctx context.Context, email, password string) error {
	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return s.repo.CreateUser(ctx, &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
	})
}
