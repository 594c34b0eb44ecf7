package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"nfse-pipeline/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS sales (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	amount REAL NOT NULL,
	description TEXT NOT NULL,
	status TEXT NOT NULL,
	protocol TEXT NOT NULL DEFAULT '',
	error_msg TEXT NOT NULL DEFAULT '',
	job_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sales_user ON sales(user_id, created_at);
CREATE TABLE IF NOT EXISTS certificates (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	encrypted_password TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_certificates_user ON certificates(user_id, created_at);
`

// SQLiteStore is the persistent Repository implementation.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSale(ctx context.Context, sale *domain.Sale) error {
	now := time.Now()
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	sale.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sales (id, user_id, amount, description, status, protocol, error_msg, job_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID, sale.UserID, sale.Amount, sale.Description, string(sale.Status),
		sale.Protocol, sale.ErrorMsg, sale.JobID, sale.CreatedAt, sale.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) scanSale(row *sql.Row) (*domain.Sale, error) {
	var sale domain.Sale
	var status string
	err := row.Scan(&sale.ID, &sale.UserID, &sale.Amount, &sale.Description, &status,
		&sale.Protocol, &sale.ErrorMsg, &sale.JobID, &sale.CreatedAt, &sale.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSaleNotFound
	}
	if err != nil {
		return nil, err
	}
	sale.Status = domain.SaleStatus(status)
	return &sale, nil
}

const saleColumns = `id, user_id, amount, description, status, protocol, error_msg, job_id, created_at, updated_at`

func (s *SQLiteStore) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE id = ?`, saleID)
	return s.scanSale(row)
}

func (s *SQLiteStore) GetSaleForUser(ctx context.Context, saleID, userID string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE id = ? AND user_id = ?`, saleID, userID)
	return s.scanSale(row)
}

func (s *SQLiteStore) ListSalesByUser(ctx context.Context, userID string) ([]*domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Sale
	for rows.Next() {
		var sale domain.Sale
		var status string
		if err := rows.Scan(&sale.ID, &sale.UserID, &sale.Amount, &sale.Description, &status,
			&sale.Protocol, &sale.ErrorMsg, &sale.JobID, &sale.CreatedAt, &sale.UpdatedAt); err != nil {
			return nil, err
		}
		sale.Status = domain.SaleStatus(status)
		out = append(out, &sale)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) MarkSaleSuccess(ctx context.Context, saleID, protocol string) (*domain.Sale, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sales SET status = ?, protocol = ?, error_msg = '', updated_at = ? WHERE id = ?`,
		string(domain.SaleStatusSuccess), protocol, time.Now(), saleID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.ErrSaleNotFound
	}
	return s.GetSale(ctx, saleID)
}

func (s *SQLiteStore) MarkSaleError(ctx context.Context, saleID, errorMsg string) (*domain.Sale, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sales SET status = ?, error_msg = ?, protocol = '', updated_at = ? WHERE id = ?`,
		string(domain.SaleStatusError), errorMsg, time.Now(), saleID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.ErrSaleNotFound
	}
	return s.GetSale(ctx, saleID)
}

func (s *SQLiteStore) CreateCertificate(ctx context.Context, cert *domain.Certificate) error {
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO certificates (id, user_id, filename, encrypted_password, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		cert.ID, cert.UserID, cert.Filename, cert.EncryptedPassword, cert.CreatedAt)
	return err
}

func (s *SQLiteStore) LatestCertificate(ctx context.Context, userID string) (*domain.Certificate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, filename, encrypted_password, created_at
		 FROM certificates WHERE user_id = ? ORDER BY created_at DESC LIMIT 1`, userID)

	var cert domain.Certificate
	err := row.Scan(&cert.ID, &cert.UserID, &cert.Filename, &cert.EncryptedPassword, &cert.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoCertificate
	}
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (s *SQLiteStore) ListCertificatesByUser(ctx context.Context, userID string) ([]*domain.Certificate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, filename, encrypted_password, created_at
		 FROM certificates WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Certificate
	for rows.Next() {
		var cert domain.Certificate
		if err := rows.Scan(&cert.ID, &cert.UserID, &cert.Filename, &cert.EncryptedPassword, &cert.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &cert)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	return err
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email)

	var user domain.User
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
