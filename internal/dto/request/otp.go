package request

type IssueOTPRequest struct {
	TransactionID string `json:"transaction_id" validate:"required,max=128"`
	Email         string `json:"email" validate:"required,email"`
}

type VerifyOTPRequest struct {
	TransactionID string `json:"transaction_id" validate:"required,max=128"`
	OTP           string `json:"otp" validate:"required,numeric,min=4,max=10"`
}
