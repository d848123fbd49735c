package adaptor

import (
	"paygate/internal/usecase"

	"go.uber.org/zap"
)

type Handler struct {
	OTP      *OTPHandler
	Payment  *PaymentHandler
	Password *PasswordHandler
	RPC      *RPCHandler
	Health   *HealthHandler
}

func NewHandler(service *usecase.Service, checks []HealthCheck, log *zap.Logger) *Handler {
	return &Handler{
		OTP:      NewOTPHandler(service.OTP, log),
		Payment:  NewPaymentHandler(service.Payment, log),
		Password: NewPasswordHandler(service.Password, log),
		RPC:      NewRPCHandler(service.OTP, service.Payment, log),
		Health:   NewHealthHandler(checks, log),
	}
}
