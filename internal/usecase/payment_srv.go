package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"paygate/internal/data/entity"
	"paygate/internal/data/repository"
	"paygate/internal/dto/response"
	"paygate/internal/provider/vnpay"
	"paygate/pkg/metrics"
	"paygate/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultClientIP = "127.0.0.1"

var (
	minPaymentAmount = decimal.NewFromInt(10_000)
	maxPaymentAmount = decimal.NewFromInt(100_000_000)
)

// Acknowledgement codes returned to the gateway.
const (
	RspSuccess          = "00"
	RspOrderNotFound    = "01"
	RspAlreadyConfirmed = "02"
	RspInvalidAmount    = "04"
	RspChecksumFailed   = "97"
	RspInternalError    = "99"
)

type CreatePaymentInput struct {
	TransactionID    string `validate:"omitempty,max=64"`
	Amount           decimal.Decimal
	PaymentMethod    string `validate:"required,max=32"`
	RecipientBank    string `validate:"omitempty,max=100"`
	RecipientAccount string `validate:"omitempty,max=64"`
	ClientIP         string `validate:"omitempty,ip"`
}

type PaymentService interface {
	Create(ctx context.Context, userID string, in CreatePaymentInput) (*entity.PaymentRequest, error)
	// OnCreated runs once per creation event. Duplicate events are no-ops.
	OnCreated(ctx context.Context, transactionID string) error
	HandleCallback(ctx context.Context, values url.Values) response.CallbackResponse
	Status(ctx context.Context, callerID, transactionID string) (*response.PaymentStatusResponse, error)
	ReturnStatus(ctx context.Context, values url.Values) (*response.PaymentReturnResponse, error)
}

type paymentService struct {
	repo    *repository.Repository
	gateway PaymentGateway
	now     Clock
	config  *utils.Config
	log     *zap.Logger
}

func NewPaymentService(
	repo *repository.Repository,
	gateway PaymentGateway,
	now Clock,
	config *utils.Config,
	log *zap.Logger,
) PaymentService {
	return &paymentService{
		repo:    repo,
		gateway: gateway,
		now:     now,
		config:  config,
		log:     log.With(zap.String("service", "payment")),
	}
}

func (s *paymentService) Create(ctx context.Context, userID string, in CreatePaymentInput) (*entity.PaymentRequest, error) {
	// 1. Validasi input
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if errs := utils.ValidateStruct(in); len(errs) > 0 {
		s.log.Warn("Create payment validation failed", zap.Any("errors", errs))
		return nil, validationError(utils.FormatValidationErrors(errs))
	}
	if !in.Amount.IsPositive() {
		return nil, validationError("amount must be positive")
	}
	if in.Amount.LessThan(minPaymentAmount) {
		return nil, validationError(fmt.Sprintf("amount must be at least %s VND", minPaymentAmount))
	}
	if in.Amount.GreaterThan(maxPaymentAmount) {
		return nil, validationError(fmt.Sprintf("amount must not exceed %s VND", maxPaymentAmount))
	}

	now := s.now()

	// 2. Transaction id
	txID := in.TransactionID
	if txID == "" {
		generated, err := utils.GenerateTransactionID(now)
		if err != nil {
			return nil, err
		}
		txID = generated
	}

	payment := &entity.PaymentRequest{
		Timestamps: entity.Timestamps{
			CreatedAt: now,
			UpdatedAt: now,
		},
		TransactionID:    txID,
		UserID:           userID,
		Amount:           in.Amount,
		PaymentMethod:    strings.ToLower(in.PaymentMethod),
		RecipientBank:    optional(in.RecipientBank),
		RecipientAccount: optional(in.RecipientAccount),
		ClientIP:         optional(in.ClientIP),
		Status:           entity.PaymentStatusPending,
	}

	// 3. Insert, the creation event fires from the store
	if err := s.repo.PaymentRequest.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrDuplicateTxn
		}
		return nil, err
	}

	s.log.Info("Payment request created",
		zap.String("transaction_id", txID),
		zap.String("user_id", userID),
		zap.String("amount", in.Amount.String()),
		zap.String("payment_method", payment.PaymentMethod))

	return payment, nil
}

func (s *paymentService) OnCreated(ctx context.Context, transactionID string) error {
	log := s.log.With(zap.String("transaction_id", transactionID))

	// 1. Load
	payment, err := s.repo.PaymentRequest.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return err
	}
	if payment == nil {
		log.Warn("Payment request not found")
		return nil
	}

	// 2. Only fresh gateway payments
	if payment.PaymentMethod != entity.PaymentMethodVNPay {
		log.Debug("Skipping non-gateway payment", zap.String("payment_method", payment.PaymentMethod))
		return nil
	}
	if payment.Status != entity.PaymentStatusPending {
		log.Debug("Payment request already picked up", zap.String("status", string(payment.Status)))
		return nil
	}

	// 3. Claim: pending -> processing
	moved, err := s.transition(ctx, transactionID, entity.PaymentTransition{
		From: entity.PaymentStatusPending,
		To:   entity.PaymentStatusProcessing,
		At:   s.now(),
	})
	if err != nil {
		return err
	}
	if !moved {
		log.Debug("Payment request claimed concurrently")
		return nil
	}

	// 4. Build the gateway URL
	bank := "Unknown"
	if payment.RecipientBank != nil && *payment.RecipientBank != "" {
		bank = *payment.RecipientBank
	}
	clientIP := defaultClientIP
	if payment.ClientIP != nil && *payment.ClientIP != "" {
		clientIP = *payment.ClientIP
	}

	paymentURL, buildErr := s.gateway.BuildPaymentURL(vnpay.PaymentParams{
		Amount:      payment.Amount,
		OrderID:     transactionID,
		Description: "Chuyen tien den " + bank,
		OrderType:   s.config.VNPay.OrderType,
		Locale:      s.config.VNPay.Locale,
		ClientIP:    clientIP,
	})

	// 5. processing -> pending_payment | failed
	if buildErr != nil {
		reason := buildErr.Error()
		log.Error("Failed to build payment URL", zap.Error(buildErr))
		if _, err := s.transition(ctx, transactionID, entity.PaymentTransition{
			From:      entity.PaymentStatusProcessing,
			To:        entity.PaymentStatusFailed,
			At:        s.now(),
			LastError: &reason,
		}); err != nil {
			return err
		}
		return nil
	}

	gateway := vnpay.GatewayName
	if _, err := s.transition(ctx, transactionID, entity.PaymentTransition{
		From:           entity.PaymentStatusProcessing,
		To:             entity.PaymentStatusPendingPayment,
		At:             s.now(),
		PaymentURL:     &paymentURL,
		PaymentGateway: &gateway,
	}); err != nil {
		return err
	}

	log.Info("Payment URL created")
	return nil
}

func (s *paymentService) HandleCallback(ctx context.Context, values url.Values) response.CallbackResponse {
	// 1. Signature
	if !s.gateway.VerifyCallback(values) {
		s.log.Warn("Callback checksum mismatch")
		return callbackResult(RspChecksumFailed, "Checksum failed")
	}

	cb := vnpay.ParseCallback(values)
	log := s.log.With(
		zap.String("transaction_id", cb.TxnRef),
		zap.String("response_code", cb.ResponseCode))

	if cb.TxnRef == "" {
		return callbackResult(RspOrderNotFound, "Order not found")
	}

	// 2. Load
	payment, err := s.repo.PaymentRequest.FindByTransactionID(ctx, cb.TxnRef)
	if err != nil {
		log.Error("Failed to load payment request", zap.Error(err))
		return callbackResult(RspInternalError, "Internal error")
	}
	if payment == nil {
		log.Warn("Callback for unknown order")
		return callbackResult(RspOrderNotFound, "Order not found")
	}

	// 3. Amount
	if cb.HasAmount && cb.Amount != vnpay.MinorUnits(payment.Amount) {
		log.Warn("Callback amount mismatch",
			zap.Int64("callback_amount", cb.Amount),
			zap.Int64("expected_amount", vnpay.MinorUnits(payment.Amount)))
		return callbackResult(RspInvalidAmount, "Invalid amount")
	}

	// 4. Status
	if payment.Status.IsTerminal() {
		log.Info("Duplicate callback", zap.String("status", string(payment.Status)))
		return callbackResult(RspAlreadyConfirmed, "Order already confirmed")
	}
	if payment.Status != entity.PaymentStatusPendingPayment {
		log.Error("Callback before payment URL was issued", zap.String("status", string(payment.Status)))
		return callbackResult(RspInternalError, "Internal error")
	}

	// 5. pending_payment -> completed | failed
	code := cb.ResponseCode
	t := entity.PaymentTransition{
		From:          entity.PaymentStatusPendingPayment,
		At:            s.now(),
		ResponseCode:  &code,
		GatewayParams: cb.Params,
	}
	success := vnpay.IsSuccess(code)
	if success {
		ref := cb.TransactionNo
		t.To = entity.PaymentStatusCompleted
		t.PaymentReference = &ref
	} else {
		// the raw gateway code is the stored error
		reason := code
		t.To = entity.PaymentStatusFailed
		t.LastError = &reason
	}

	moved, err := s.transition(ctx, cb.TxnRef, t)
	if err != nil {
		log.Error("Failed to finalize payment", zap.Error(err))
		return callbackResult(RspInternalError, "Internal error")
	}
	if !moved {
		log.Info("Payment finalized concurrently")
		return callbackResult(RspAlreadyConfirmed, "Order already confirmed")
	}

	if success {
		log.Info("Payment completed", zap.String("payment_reference", cb.TransactionNo))
		return callbackResult(RspSuccess, "Success")
	}

	log.Info("Payment failed")
	if code == "" {
		code = RspInternalError
	}
	return callbackResult(code, "Payment failed")
}

func (s *paymentService) Status(ctx context.Context, callerID, transactionID string) (*response.PaymentStatusResponse, error) {
	if callerID == "" {
		return nil, ErrUnauthorized
	}
	if transactionID == "" {
		return nil, validationError("transaction id is required")
	}

	payment, err := s.repo.PaymentRequest.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrNotFound
	}
	if payment.UserID != callerID {
		s.log.Warn("Payment status requested by non-owner",
			zap.String("transaction_id", transactionID),
			zap.String("user_id", callerID))
		return nil, ErrUnauthorized
	}

	res := response.PaymentToStatusResponse(payment)
	return &res, nil
}

func (s *paymentService) ReturnStatus(ctx context.Context, values url.Values) (*response.PaymentReturnResponse, error) {
	if !s.gateway.VerifyCallback(values) {
		return nil, ErrChecksum
	}

	cb := vnpay.ParseCallback(values)
	if cb.TxnRef == "" {
		return nil, validationError("missing order reference")
	}

	payment, err := s.repo.PaymentRequest.FindByTransactionID(ctx, cb.TxnRef)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrNotFound
	}

	return &response.PaymentReturnResponse{
		TransactionID: payment.TransactionID,
		Status:        payment.Status,
		ResponseCode:  cb.ResponseCode,
		Success:       vnpay.IsSuccess(cb.ResponseCode),
	}, nil
}

func (s *paymentService) transition(ctx context.Context, transactionID string, t entity.PaymentTransition) (bool, error) {
	moved, err := s.repo.PaymentRequest.Transition(ctx, transactionID, t)
	if moved {
		metrics.PaymentTransitions.WithLabelValues(string(t.To)).Inc()
	}
	return moved, err
}

func callbackResult(code, message string) response.CallbackResponse {
	metrics.GatewayCallbacks.WithLabelValues(code).Inc()
	return response.CallbackResponse{RspCode: code, Message: message}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
