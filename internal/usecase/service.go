package usecase

import (
	"net/url"
	"time"

	"paygate/internal/data/repository"
	"paygate/internal/provider/vnpay"
	"paygate/internal/rate"
	"paygate/pkg/mailer"
	"paygate/pkg/utils"

	"go.uber.org/zap"
)

// Clock is swapped in tests.
type Clock func() time.Time

// Infra groups the collaborators that live outside the document store.
type Infra struct {
	Gateway     PaymentGateway
	Mailer      mailer.Mailer
	SendLimiter *rate.SendLimiter
	Lockout     *rate.Lockout
	Clock       Clock
}

// PaymentGateway is implemented by *vnpay.Client.
type PaymentGateway interface {
	BuildPaymentURL(p vnpay.PaymentParams) (string, error)
	VerifyCallback(values url.Values) bool
}

type Service struct {
	OTP          OTPService
	Notification NotificationService
	Payment      PaymentService
	Password     PasswordService
}

func NewService(repo *repository.Repository, infra Infra, config *utils.Config, log *zap.Logger) *Service {
	if infra.Clock == nil {
		infra.Clock = time.Now
	}

	otp := NewOTPService(repo, infra.SendLimiter, infra.Lockout, infra.Clock, config, log)

	return &Service{
		OTP:          otp,
		Notification: NewNotificationService(repo, otp, infra.Mailer, infra.Clock, config, log),
		Payment:      NewPaymentService(repo, infra.Gateway, infra.Clock, config, log),
		Password:     NewPasswordService(repo, infra.Clock, config, log),
	}
}
