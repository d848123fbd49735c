package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"paygate/internal/data/entity"
	"paygate/internal/data/repository"
	"paygate/internal/rate"
	"paygate/pkg/metrics"
	"paygate/pkg/utils"

	"go.uber.org/zap"
)

const (
	otpEmailSubject = "Mã OTP xác thực giao dịch"
	resendSuffix    = " (Gửi lại)"
)

type IssueOTPInput struct {
	TransactionID string `validate:"required,max=128"`
	UserID        string `validate:"required"`
	Email         string `validate:"required,email"`
}

type OTPService interface {
	Issue(ctx context.Context, in IssueOTPInput) (*entity.OTP, error)
	Resend(ctx context.Context, transactionID, requestingUserID string) error
	Verify(ctx context.Context, transactionID, code string) (bool, error)
	// ApplyDeliveryResult is called by the notification dispatcher once the
	// email request itself has left pending.
	ApplyDeliveryResult(ctx context.Context, transactionID string, sent bool, reason string) error
}

type otpService struct {
	repo    *repository.Repository
	limiter *rate.SendLimiter
	lockout *rate.Lockout
	now     Clock
	config  *utils.Config
	log     *zap.Logger
}

func NewOTPService(
	repo *repository.Repository,
	limiter *rate.SendLimiter,
	lockout *rate.Lockout,
	now Clock,
	config *utils.Config,
	log *zap.Logger,
) OTPService {
	return &otpService{
		repo:    repo,
		limiter: limiter,
		lockout: lockout,
		now:     now,
		config:  config,
		log:     log.With(zap.String("service", "otp")),
	}
}

func (s *otpService) Issue(ctx context.Context, in IssueOTPInput) (*entity.OTP, error) {
	// 1. Validasi input
	if errs := utils.ValidateStruct(in); len(errs) > 0 {
		s.log.Warn("Issue OTP validation failed", zap.Any("errors", errs))
		return nil, validationError(utils.FormatValidationErrors(errs))
	}

	// 2. Send limit per user; only generated OTPs are counted
	if err := s.limiter.Allow(ctx, in.UserID); err != nil {
		if errors.Is(err, rate.ErrLimited) {
			metrics.OTPEvents.WithLabelValues(metrics.OTPRateLimited).Inc()
		}
		return nil, err
	}

	// 3. Generate code
	code, err := utils.GenerateOTP(s.config.OTP.Length)
	if err != nil {
		s.log.Error("Failed to generate OTP", zap.Error(err))
		return nil, fmt.Errorf("generate OTP: %w", err)
	}

	now := s.now()
	otp := &entity.OTP{
		Timestamps: entity.Timestamps{
			CreatedAt: now,
			UpdatedAt: now,
		},
		TransactionID: in.TransactionID,
		UserID:        in.UserID,
		UserEmail:     in.Email,
		OTPCode:       code,
		Status:        entity.OTPStatusGenerated,
		ExpiresAt:     now.Add(s.config.OTP.Expiry()),
	}

	// 4. Persist, refusing to replace a live or used OTP
	created, err := s.repo.OTP.Upsert(ctx, otp, now)
	if err != nil {
		return nil, fmt.Errorf("save OTP %s: %w", in.TransactionID, err)
	}
	if !created {
		existing, err := s.repo.OTP.FindByTransactionID(ctx, in.TransactionID)
		if err != nil {
			return nil, fmt.Errorf("load OTP %s: %w", in.TransactionID, err)
		}
		if existing != nil && existing.IsUsed {
			return nil, ErrAlreadyUsed
		}
		s.log.Warn("Live OTP already exists", zap.String("transaction_id", in.TransactionID))
		return nil, ErrDuplicateActive
	}
	s.limiter.Record(ctx, in.UserID)

	// 5. Enqueue the email
	req := otpEmailRequest(otp, fmt.Sprintf("%s_issue_%d", otp.TransactionID, now.UnixNano()), false, now)
	if err := s.repo.EmailRequest.Create(ctx, req); err != nil {
		reason := "enqueue email: " + err.Error()
		if _, uerr := s.repo.OTP.ApplyDelivery(ctx, otp.TransactionID, false, &reason, now); uerr != nil {
			s.log.Error("Failed to record enqueue failure", zap.Error(uerr), zap.String("transaction_id", otp.TransactionID))
		}
		return nil, fmt.Errorf("enqueue OTP email for %s: %w", otp.TransactionID, err)
	}

	// 6. generated -> email_pending, unless the dispatcher already got there
	moved, err := s.repo.OTP.UpdateStatus(ctx, otp.TransactionID,
		[]entity.OTPStatus{entity.OTPStatusGenerated}, entity.OTPStatusEmailPending, now)
	if err != nil {
		s.log.Warn("Failed to mark OTP email pending", zap.Error(err), zap.String("transaction_id", otp.TransactionID))
	}
	if moved {
		otp.Status = entity.OTPStatusEmailPending
	}

	metrics.OTPEvents.WithLabelValues(metrics.OTPIssued).Inc()
	s.log.Info("OTP issued",
		zap.String("transaction_id", otp.TransactionID),
		zap.String("user_id", otp.UserID),
		zap.Time("expires_at", otp.ExpiresAt))

	return otp, nil
}

func (s *otpService) Resend(ctx context.Context, transactionID, requestingUserID string) error {
	if transactionID == "" {
		return validationError("transaction id is required")
	}

	// 1. Load
	otp, err := s.repo.OTP.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("load OTP %s: %w", transactionID, err)
	}
	if otp == nil {
		return ErrNotFound
	}

	// 2. Ownership and single use
	if otp.UserID != requestingUserID {
		s.log.Warn("OTP resend by non-owner",
			zap.String("transaction_id", transactionID),
			zap.String("user_id", requestingUserID))
		return ErrUnauthorized
	}
	if otp.IsUsed {
		return ErrAlreadyUsed
	}

	// 3. Same code, new request identity
	now := s.now()
	req := otpEmailRequest(otp, fmt.Sprintf("%s_resend_%d", transactionID, now.UnixNano()), true, now)
	if err := s.repo.EmailRequest.Create(ctx, req); err != nil {
		return fmt.Errorf("enqueue OTP resend for %s: %w", transactionID, err)
	}

	if _, err := s.repo.OTP.UpdateStatus(ctx, transactionID,
		[]entity.OTPStatus{entity.OTPStatusGenerated, entity.OTPStatusSent, entity.OTPStatusFailed},
		entity.OTPStatusEmailPending, now); err != nil {
		s.log.Warn("Failed to mark OTP email pending", zap.Error(err), zap.String("transaction_id", transactionID))
	}

	metrics.OTPEvents.WithLabelValues(metrics.OTPResent).Inc()
	s.log.Info("OTP resend queued",
		zap.String("transaction_id", transactionID),
		zap.String("email_request_id", req.ID))

	return nil
}

func (s *otpService) Verify(ctx context.Context, transactionID, code string) (bool, error) {
	if transactionID == "" || code == "" {
		return false, validationError("transaction id and code are required")
	}

	// 1. Load
	otp, err := s.repo.OTP.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return false, fmt.Errorf("load OTP %s: %w", transactionID, err)
	}
	if otp == nil {
		return false, ErrNotFound
	}

	// 2. Single shot
	if otp.IsUsed {
		return false, ErrAlreadyUsed
	}

	// 3. Expiry
	now := s.now()
	if otp.IsExpired(now) {
		if _, err := s.repo.OTP.MarkExpired(ctx, transactionID, now); err != nil {
			s.log.Warn("Failed to mark OTP expired", zap.Error(err), zap.String("transaction_id", transactionID))
		}
		metrics.OTPEvents.WithLabelValues(metrics.OTPExpired).Inc()
		return false, ErrExpired
	}

	// 4. Lockout
	if err := s.lockout.Check(ctx, otp.UserID); err != nil {
		if errors.Is(err, rate.ErrLocked) {
			metrics.OTPEvents.WithLabelValues(metrics.OTPLocked).Inc()
		}
		return false, err
	}

	// 5. Compare
	if subtle.ConstantTimeCompare([]byte(code), []byte(otp.OTPCode)) != 1 {
		locked, err := s.lockout.Fail(ctx, otp.UserID)
		if err != nil {
			s.log.Warn("Failed to count OTP failure", zap.Error(err), zap.String("user_id", otp.UserID))
		}
		metrics.OTPEvents.WithLabelValues(metrics.OTPMismatch).Inc()
		s.log.Info("OTP mismatch",
			zap.String("transaction_id", transactionID),
			zap.Bool("locked", locked))
		return false, nil
	}

	// 6. Consume
	consumed, err := s.repo.OTP.MarkVerified(ctx, transactionID, now)
	if err != nil {
		return false, fmt.Errorf("mark OTP %s verified: %w", transactionID, err)
	}
	if !consumed {
		return false, ErrAlreadyUsed
	}

	if err := s.lockout.Reset(ctx, otp.UserID); err != nil {
		s.log.Warn("Failed to reset OTP failures", zap.Error(err), zap.String("user_id", otp.UserID))
	}

	metrics.OTPEvents.WithLabelValues(metrics.OTPVerified).Inc()
	s.log.Info("OTP verified", zap.String("transaction_id", transactionID))
	return true, nil
}

func (s *otpService) ApplyDeliveryResult(ctx context.Context, transactionID string, sent bool, reason string) error {
	var lastErr *string
	if !sent {
		lastErr = &reason
	}

	applied, err := s.repo.OTP.ApplyDelivery(ctx, transactionID, sent, lastErr, s.now())
	if err != nil {
		return fmt.Errorf("apply delivery result to OTP %s: %w", transactionID, err)
	}
	if !applied {
		s.log.Debug("Delivery result ignored, OTP already used or expired",
			zap.String("transaction_id", transactionID))
	}
	return nil
}

func otpEmailRequest(otp *entity.OTP, id string, resend bool, now time.Time) *entity.EmailRequest {
	subject := otpEmailSubject
	if resend {
		subject += resendSuffix
	}

	txID := otp.TransactionID
	code := otp.OTPCode
	return &entity.EmailRequest{
		ID:            id,
		Kind:          entity.EmailKindOTP,
		TransactionID: &txID,
		ToEmail:       otp.UserEmail,
		OTPCode:       &code,
		Subject:       subject,
		IsResend:      resend,
		Status:        entity.EmailStatusPending,
		CreatedAt:     now,
	}
}
