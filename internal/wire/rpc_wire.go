package wire

import (
	"paygate/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

// Callables answer UNAUTHENTICATED themselves, so no RequireUser here.
func wireRPC(r chi.Router, rpcHandler *adaptor.RPCHandler) {
	r.Route("/api/rpc", func(r chi.Router) {
		r.Post("/resend-otp", rpcHandler.ResendOTP)
		r.Post("/check-payment-status", rpcHandler.CheckPaymentStatus)
	})
}
