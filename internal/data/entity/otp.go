package entity

import (
	"time"
)

type OTPStatus string

const (
	OTPStatusGenerated    OTPStatus = "generated"
	OTPStatusEmailPending OTPStatus = "email_pending"
	OTPStatusSent         OTPStatus = "sent"
	OTPStatusVerified     OTPStatus = "verified"
	OTPStatusFailed       OTPStatus = "failed"
	OTPStatusExpired      OTPStatus = "expired"
)

// OTP is keyed by the transaction it authorizes.
type OTP struct {
	Timestamps
	TransactionID string     `db:"transaction_id"`
	UserID        string     `db:"user_id"`
	UserEmail     string     `db:"user_email"`
	OTPCode       string     `db:"otp_code"`
	Status        OTPStatus  `db:"status"`
	IsUsed        bool       `db:"is_used"`
	LastError     *string    `db:"last_error"`
	ExpiresAt     time.Time  `db:"expires_at"`
	EmailSentAt   *time.Time `db:"email_sent_at"`
	VerifiedAt    *time.Time `db:"verified_at"`
}

// IsExpired reports whether now is past the expiry timestamp.
func (o *OTP) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
