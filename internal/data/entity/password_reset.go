package entity

import "time"

// PasswordResetToken is single use; a new one is minted for every request.
type PasswordResetToken struct {
	Token     string     `db:"token"`
	Email     string     `db:"email"`
	IsUsed    bool       `db:"is_used"`
	CreatedAt time.Time  `db:"created_at"`
	ExpiresAt time.Time  `db:"expires_at"`
	UsedAt    *time.Time `db:"used_at"`
}

type Credential struct {
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	UpdatedAt    time.Time `db:"updated_at"`
}
