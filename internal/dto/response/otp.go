package response

import (
	"time"

	"paygate/internal/data/entity"
)

type OTPResponse struct {
	TransactionID string           `json:"transaction_id"`
	Status        entity.OTPStatus `json:"status"`
	ExpiresAt     time.Time        `json:"expires_at"`
}

type VerifyOTPResponse struct {
	TransactionID string `json:"transaction_id"`
	Verified      bool   `json:"verified"`
}

func OTPToResponse(otp *entity.OTP) OTPResponse {
	return OTPResponse{
		TransactionID: otp.TransactionID,
		Status:        otp.Status,
		ExpiresAt:     otp.ExpiresAt,
	}
}
