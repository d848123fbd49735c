package repository

import (
	"paygate/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	OTP            OTPRepository
	EmailRequest   EmailRequestRepository
	PaymentRequest PaymentRequestRepository
	PasswordReset  PasswordResetRepository
	Credential     CredentialRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		OTP:            NewOTPRepository(db, log),
		EmailRequest:   NewEmailRequestRepository(db, log),
		PaymentRequest: NewPaymentRequestRepository(db, log),
		PasswordReset:  NewPasswordResetRepository(db, log),
		Credential:     NewCredentialRepository(db, log),
	}
}
