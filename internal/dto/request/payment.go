package request

import "github.com/shopspring/decimal"

type CreatePaymentRequest struct {
	TransactionID    string          `json:"transaction_id" validate:"omitempty,max=64"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentMethod    string          `json:"payment_method" validate:"required,max=32"`
	RecipientBank    string          `json:"recipient_bank" validate:"omitempty,max=100"`
	RecipientAccount string          `json:"recipient_account" validate:"omitempty,max=64"`
}
