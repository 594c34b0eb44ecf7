package domain

import "context"

type Repository interface {
	// Sale operations
	CreateSale(ctx context.Context, sale *Sale) error
	GetSale(ctx context.Context, saleID string) (*Sale, error)
	GetSaleForUser(ctx context.Context, saleID, userID string) (*Sale, error)
	ListSalesByUser(ctx context.Context, userID string) ([]*Sale, error)
	MarkSaleSuccess(ctx context.Context, saleID, protocol string) (*Sale, error)
	MarkSaleError(ctx context.Context, saleID, errorMsg string) (*Sale, error)

	// Certificate operations
	CreateCertificate(ctx context.Context, cert *Certificate) error
	LatestCertificate(ctx context.Context, userID string) (*Certificate, error)
	ListCertificatesByUser(ctx context.Context, userID string) ([]*Certificate, error)

	// User operations
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}
