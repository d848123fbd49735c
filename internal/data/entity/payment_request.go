package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending        PaymentStatus = "pending"
	PaymentStatusProcessing     PaymentStatus = "processing"
	PaymentStatusPendingPayment PaymentStatus = "pending_payment"
	PaymentStatusCompleted      PaymentStatus = "completed"
	PaymentStatusFailed         PaymentStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

const PaymentMethodVNPay = "vnpay"

// PaymentRequest is never deleted; it doubles as the audit record of the gateway leg.
type PaymentRequest struct {
	Timestamps
	TransactionID    string            `db:"transaction_id"`
	UserID           string            `db:"user_id"`
	Amount           decimal.Decimal   `db:"amount"`
	PaymentMethod    string            `db:"payment_method"`
	RecipientBank    *string           `db:"recipient_bank"`
	RecipientAccount *string           `db:"recipient_account"`
	ClientIP         *string           `db:"client_ip"`
	Status           PaymentStatus     `db:"status"`
	PaymentURL       *string           `db:"payment_url"`
	PaymentGateway   *string           `db:"payment_gateway"`
	PaymentReference *string           `db:"payment_reference"`
	ResponseCode     *string           `db:"response_code"`
	LastError        *string           `db:"last_error"`
	GatewayParams    map[string]string `db:"gateway_params"`
	ProcessingAt     *time.Time        `db:"processing_at"`
	CompletedAt      *time.Time        `db:"completed_at"`
	FailedAt         *time.Time        `db:"failed_at"`
}

// PaymentTransition is a compare-and-swap on status. Only the non-nil
// fields are written alongside the new status.
type PaymentTransition struct {
	From             PaymentStatus
	To               PaymentStatus
	At               time.Time
	PaymentURL       *string
	PaymentGateway   *string
	PaymentReference *string
	ResponseCode     *string
	LastError        *string
	GatewayParams    map[string]string
}
