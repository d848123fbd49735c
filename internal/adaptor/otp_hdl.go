package adaptor

import (
	"encoding/json"
	"net/http"

	"paygate/internal/dto/request"
	"paygate/internal/dto/response"
	"paygate/internal/usecase"
	"paygate/pkg/utils"

	"go.uber.org/zap"
)

type OTPHandler struct {
	service usecase.OTPService
	log     *zap.Logger
}

func NewOTPHandler(service usecase.OTPService, log *zap.Logger) *OTPHandler {
	return &OTPHandler{
		service: service,
		log:     log.With(zap.String("handler", "otp")),
	}
}

// Issue handles POST /api/otp (protected)
func (h *OTPHandler) Issue(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.IssueOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	// Fall back to the email claim of the token
	if req.Email == "" {
		req.Email, _ = utils.GetEmailFromContext(r.Context())
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	otp, err := h.service.Issue(r.Context(), usecase.IssueOTPInput{
		TransactionID: req.TransactionID,
		UserID:        userID,
		Email:         req.Email,
	})
	if err != nil {
		handleServiceError(w, h.log, err, "issue OTP")
		return
	}

	utils.ResponseCreated(w, "OTP issued, check your email", response.OTPToResponse(otp))
}

// Verify handles POST /api/otp/verify (protected)
func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req request.VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	ok, err := h.service.Verify(r.Context(), req.TransactionID, req.OTP)
	if err != nil {
		handleServiceError(w, h.log, err, "verify OTP")
		return
	}

	res := response.VerifyOTPResponse{TransactionID: req.TransactionID, Verified: ok}
	if !ok {
		utils.ResponseJSON(w, http.StatusBadRequest, false, "Invalid OTP code", res, nil)
		return
	}

	utils.ResponseSuccess(w, "OTP verified", res)
}
