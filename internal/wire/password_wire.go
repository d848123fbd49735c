package wire

import (
	"paygate/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wirePassword(r chi.Router, passwordHandler *adaptor.PasswordHandler) {
	// ==================== PUBLIC ROUTES ====================
	r.Post("/api/password/forgot", passwordHandler.Forgot)
	r.Post("/api/password/reset", passwordHandler.Reset)
}
