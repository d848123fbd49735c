package wire

import (
	"paygate/internal/adaptor"
	"paygate/pkg/middleware"

	"github.com/go-chi/chi/v5"
)

func wireOTP(r chi.Router, otpHandler *adaptor.OTPHandler) {
	// ==================== PROTECTED ROUTES ====================
	r.Route("/api/otp", func(r chi.Router) {
		r.Use(middleware.RequireUser)

		r.Post("/", otpHandler.Issue)
		r.Post("/verify", otpHandler.Verify)
	})
}
