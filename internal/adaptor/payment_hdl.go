package adaptor

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"

	"paygate/internal/dto/request"
	"paygate/internal/dto/response"
	"paygate/internal/usecase"
	"paygate/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	service usecase.PaymentService
	log     *zap.Logger
}

func NewPaymentHandler(service usecase.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log.With(zap.String("handler", "payment")),
	}
}

// Create handles POST /api/payments (protected)
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	payment, err := h.service.Create(r.Context(), userID, usecase.CreatePaymentInput{
		TransactionID:    req.TransactionID,
		Amount:           req.Amount,
		PaymentMethod:    req.PaymentMethod,
		RecipientBank:    req.RecipientBank,
		RecipientAccount: req.RecipientAccount,
		ClientIP:         clientIP(r),
	})
	if err != nil {
		handleServiceError(w, h.log, err, "create payment")
		return
	}

	utils.ResponseCreated(w, "Payment request created", response.PaymentToResponse(payment))
}

// Status handles GET /api/payments/{transactionId} (protected)
func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	status, err := h.service.Status(r.Context(), userID, chi.URLParam(r, "transactionId"))
	if err != nil {
		handleServiceError(w, h.log, err, "get payment status")
		return
	}

	utils.ResponseSuccess(w, "success", status)
}

// Callback handles GET|POST /api/payments/vnpay/callback. The gateway only
// reads the body, so the status is always 200.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	values, err := gatewayValues(r)
	if err != nil {
		h.log.Warn("Unreadable callback", zap.Error(err))
		utils.WriteJSON(w, http.StatusOK, response.CallbackResponse{RspCode: usecase.RspInternalError, Message: "Internal error"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, h.service.HandleCallback(r.Context(), values))
}

// Return handles GET /api/payments/vnpay/return
func (h *PaymentHandler) Return(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ReturnStatus(r.Context(), r.URL.Query())
	if err != nil {
		handleServiceError(w, h.log, err, "payment return")
		return
	}

	message := "Payment not completed"
	if res.Success {
		message = "Payment received"
	}
	utils.ResponseSuccess(w, message, res)
}

// gatewayValues merges the query string and a form-encoded body.
func gatewayValues(r *http.Request) (url.Values, error) {
	if r.Method == http.MethodGet {
		return r.URL.Query(), nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return r.Form, nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if net.ParseIP(host) == nil {
		return ""
	}
	return host
}
