package adaptor

import (
	"encoding/json"
	"net/http"

	"paygate/internal/dto/request"
	"paygate/internal/usecase"
	"paygate/pkg/utils"

	"go.uber.org/zap"
)

type PasswordHandler struct {
	service usecase.PasswordService
	log     *zap.Logger
}

func NewPasswordHandler(service usecase.PasswordService, log *zap.Logger) *PasswordHandler {
	return &PasswordHandler{
		service: service,
		log:     log.With(zap.String("handler", "password")),
	}
}

// Forgot handles POST /api/password/forgot
func (h *PasswordHandler) Forgot(w http.ResponseWriter, r *http.Request) {
	var req request.ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	if err := h.service.RequestReset(r.Context(), req.Email); err != nil {
		handleServiceError(w, h.log, err, "request password reset")
		return
	}

	utils.ResponseSuccess(w, "If the address is registered, a reset link is on its way", nil)
}

// Reset handles POST /api/password/reset
func (h *PasswordHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req request.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	if err := h.service.ConfirmReset(r.Context(), req.Token, req.NewPassword); err != nil {
		handleServiceError(w, h.log, err, "reset password")
		return
	}

	utils.ResponseSuccess(w, "Password updated", nil)
}
