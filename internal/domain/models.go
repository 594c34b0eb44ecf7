package domain

import "time"

type SaleStatus string

const (
	SaleStatusProcessing SaleStatus = "PROCESSING"
	SaleStatusSuccess    SaleStatus = "SUCCESS"
	SaleStatusError      SaleStatus = "ERROR"
)

// Terminal reports whether no further status transitions are allowed.
func (s SaleStatus) Terminal() bool {
	return s == SaleStatusSuccess || s == SaleStatusError
}

type Sale struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Amount      float64    `json:"amount"`
	Description string     `json:"description"`
	Status      SaleStatus `json:"status"`
	Protocol    string     `json:"protocol,omitempty"`
	ErrorMsg    string     `json:"error_msg,omitempty"`
	JobID       string     `json:"job_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Certificate references an uploaded PKCS#12 file. The password is stored
// AES-encrypted; only the signing path ever decrypts it.
type Certificate struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Filename          string    `json:"filename"`
	EncryptedPassword string    `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
