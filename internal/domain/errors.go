package domain

import "errors"

var (
	ErrSaleNotFound       = errors.New("sale not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrNoCertificate      = errors.New("no certificate for user")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
)
