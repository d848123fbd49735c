package entity

import "time"

type EmailKind string

const (
	EmailKindOTP           EmailKind = "otp"
	EmailKindPasswordReset EmailKind = "password_reset"
)

type EmailStatus string

const (
	EmailStatusPending EmailStatus = "pending"
	EmailStatusSent    EmailStatus = "sent"
	EmailStatusFailed  EmailStatus = "failed"
)

// EmailRequest is a one-shot work item for the notification dispatcher.
type EmailRequest struct {
	ID            string      `db:"id"`
	Kind          EmailKind   `db:"kind"`
	TransactionID *string     `db:"transaction_id"`
	ToEmail       string      `db:"to_email"`
	OTPCode       *string     `db:"otp_code"`
	ResetLink     *string     `db:"reset_link"`
	Subject       string      `db:"subject"`
	IsResend      bool        `db:"is_resend"`
	Status        EmailStatus `db:"status"`
	MessageID     *string     `db:"message_id"`
	LastError     *string     `db:"last_error"`
	CreatedAt     time.Time   `db:"created_at"`
	SentAt        *time.Time  `db:"sent_at"`
	FailedAt      *time.Time  `db:"failed_at"`
}
