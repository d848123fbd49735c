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

// RPCHandler serves the callable functions used by the mobile client.
type RPCHandler struct {
	otp     usecase.OTPService
	payment usecase.PaymentService
	log     *zap.Logger
}

func NewRPCHandler(otp usecase.OTPService, payment usecase.PaymentService, log *zap.Logger) *RPCHandler {
	return &RPCHandler{
		otp:     otp,
		payment: payment,
		log:     log.With(zap.String("handler", "rpc")),
	}
}

// ResendOTP handles POST /api/rpc/resend-otp
func (h *RPCHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	userID, txID, ok := h.decode(w, r)
	if !ok {
		return
	}

	if err := h.otp.Resend(r.Context(), txID, userID); err != nil {
		handleRPCError(w, h.log, err, "resend OTP")
		return
	}

	utils.WriteJSON(w, http.StatusOK, response.CallableResult{
		Result: response.ResendOTPResponse{Success: true, Message: "OTP email will be resent"},
	})
}

// CheckPaymentStatus handles POST /api/rpc/check-payment-status
func (h *RPCHandler) CheckPaymentStatus(w http.ResponseWriter, r *http.Request) {
	userID, txID, ok := h.decode(w, r)
	if !ok {
		return
	}

	status, err := h.payment.Status(r.Context(), userID, txID)
	if err != nil {
		handleRPCError(w, h.log, err, "check payment status")
		return
	}

	utils.WriteJSON(w, http.StatusOK, response.CallableResult{Result: status})
}

// decode enforces identity before anything else, then reads {data:{transactionId}}.
func (h *RPCHandler) decode(w http.ResponseWriter, r *http.Request) (userID, txID string, ok bool) {
	userID, ok = utils.GetUserIDFromContext(r.Context())
	if !ok {
		writeRPCError(w, rpcUnauthenticated, "User must be authenticated")
		return "", "", false
	}

	var req request.CallableRequest[request.TransactionRef]
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, rpcInvalidArgument, "Invalid request body")
		return "", "", false
	}
	if req.Data.TransactionID == "" {
		writeRPCError(w, rpcInvalidArgument, "Transaction ID is required")
		return "", "", false
	}

	return userID, req.Data.TransactionID, true
}
