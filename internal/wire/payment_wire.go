package wire

import (
	"paygate/internal/adaptor"
	"paygate/pkg/middleware"

	"github.com/go-chi/chi/v5"
)

func wirePayment(r chi.Router, paymentHandler *adaptor.PaymentHandler) {
	// ==================== GATEWAY ROUTES ====================
	// Signed by the gateway, no bearer token
	r.Get("/api/payments/vnpay/callback", paymentHandler.Callback)
	r.Post("/api/payments/vnpay/callback", paymentHandler.Callback)
	r.Get("/api/payments/vnpay/return", paymentHandler.Return)

	// ==================== PROTECTED ROUTES ====================
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser)

		r.Post("/api/payments", paymentHandler.Create)
		r.Get("/api/payments/{transactionId}", paymentHandler.Status)
	})
}
