package response

import (
	"time"

	"paygate/internal/data/entity"

	"github.com/shopspring/decimal"
)

type PaymentResponse struct {
	TransactionID    string               `json:"transaction_id"`
	Amount           decimal.Decimal      `json:"amount"`
	PaymentMethod    string               `json:"payment_method"`
	Status           entity.PaymentStatus `json:"status"`
	PaymentURL       *string              `json:"payment_url,omitempty"`
	PaymentReference *string              `json:"payment_reference,omitempty"`
	Error            *string              `json:"error,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// PaymentStatusResponse is the result of the check-payment-status callable.
type PaymentStatusResponse struct {
	Success          bool                 `json:"success"`
	Status           entity.PaymentStatus `json:"status"`
	PaymentURL       *string              `json:"paymentUrl"`
	PaymentReference *string              `json:"paymentReference"`
	Error            *string              `json:"error"`
}

// PaymentReturnResponse is shown after the browser comes back from the gateway.
type PaymentReturnResponse struct {
	TransactionID string               `json:"transaction_id"`
	Status        entity.PaymentStatus `json:"status"`
	ResponseCode  string               `json:"response_code"`
	Success       bool                 `json:"success"`
}

// CallbackResponse is the acknowledgement body the gateway expects.
type CallbackResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

func PaymentToResponse(p *entity.PaymentRequest) PaymentResponse {
	return PaymentResponse{
		TransactionID:    p.TransactionID,
		Amount:           p.Amount,
		PaymentMethod:    p.PaymentMethod,
		Status:           p.Status,
		PaymentURL:       p.PaymentURL,
		PaymentReference: p.PaymentReference,
		Error:            p.LastError,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func PaymentToStatusResponse(p *entity.PaymentRequest) PaymentStatusResponse {
	return PaymentStatusResponse{
		Success:          true,
		Status:           p.Status,
		PaymentURL:       p.PaymentURL,
		PaymentReference: p.PaymentReference,
		Error:            p.LastError,
	}
}
