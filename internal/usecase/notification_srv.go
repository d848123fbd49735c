package usecase

import (
	"context"
	"errors"
	"fmt"

	"paygate/internal/data/entity"
	"paygate/internal/data/repository"
	"paygate/pkg/mailer"
	"paygate/pkg/metrics"
	"paygate/pkg/utils"

	"go.uber.org/zap"
)

var errMissingPayload = errors.New("missing email or OTP code")

// missingPayloadReason is the last_error text stored for errMissingPayload.
const missingPayloadReason = "Missing email or OTP code"

type NotificationService interface {
	// Deliver sends one pending email request. Repeated calls for the same
	// request are no-ops once it has left pending.
	Deliver(ctx context.Context, requestID string) error
}

type notificationService struct {
	repo   *repository.Repository
	otp    OTPService
	mailer mailer.Mailer
	now    Clock
	config *utils.Config
	log    *zap.Logger
}

func NewNotificationService(
	repo *repository.Repository,
	otp OTPService,
	m mailer.Mailer,
	now Clock,
	config *utils.Config,
	log *zap.Logger,
) NotificationService {
	return &notificationService{
		repo:   repo,
		otp:    otp,
		mailer: m,
		now:    now,
		config: config,
		log:    log.With(zap.String("service", "notification")),
	}
}

func (s *notificationService) Deliver(ctx context.Context, requestID string) error {
	// 1. Load
	req, err := s.repo.EmailRequest.FindByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("load email request %s: %w", requestID, err)
	}
	if req == nil {
		s.log.Warn("Email request not found", zap.String("email_request_id", requestID))
		return nil
	}

	// 2. Duplicate delivery guard
	if req.Status != entity.EmailStatusPending {
		s.log.Debug("Email request already processed",
			zap.String("email_request_id", requestID),
			zap.String("status", string(req.Status)))
		return nil
	}

	// 3. Render
	html, err := s.render(req)
	if err != nil {
		reason := err.Error()
		if errors.Is(err, errMissingPayload) {
			reason = missingPayloadReason
		}
		return s.fail(ctx, req, reason)
	}

	// 4. Send
	messageID, err := s.mailer.Send(ctx, mailer.Message{
		To:      req.ToEmail,
		Subject: req.Subject,
		HTML:    html,
	})
	if err != nil {
		s.log.Error("Email delivery failed",
			zap.Error(err),
			zap.String("email_request_id", requestID),
			zap.String("kind", string(req.Kind)))
		if ferr := s.fail(ctx, req, err.Error()); ferr != nil {
			return ferr
		}
		return fmt.Errorf("%w: email request %s: %v", ErrDelivery, requestID, err)
	}

	// 5. pending -> sent, then the OTP record
	now := s.now()
	moved, err := s.repo.EmailRequest.MarkSent(ctx, requestID, messageID, now)
	if err != nil {
		return fmt.Errorf("mark email request %s sent: %w", requestID, err)
	}
	if !moved {
		s.log.Warn("Email request left pending concurrently", zap.String("email_request_id", requestID))
		return nil
	}

	metrics.EmailsTotal.WithLabelValues(string(req.Kind), string(entity.EmailStatusSent)).Inc()

	if req.Kind == entity.EmailKindOTP && req.TransactionID != nil {
		if err := s.otp.ApplyDeliveryResult(ctx, *req.TransactionID, true, ""); err != nil {
			return err
		}
	}

	s.log.Info("Email sent",
		zap.String("email_request_id", requestID),
		zap.String("kind", string(req.Kind)),
		zap.String("message_id", messageID))

	return nil
}

func (s *notificationService) render(req *entity.EmailRequest) (string, error) {
	if req.ToEmail == "" {
		return "", errMissingPayload
	}

	switch req.Kind {
	case entity.EmailKindOTP:
		if req.OTPCode == nil || *req.OTPCode == "" {
			return "", errMissingPayload
		}
		txID := ""
		if req.TransactionID != nil {
			txID = *req.TransactionID
		}
		return mailer.RenderOTP(mailer.OTPData{
			TransactionID: txID,
			Code:          *req.OTPCode,
			ExpiryMinutes: s.config.OTP.ExpiryMinutes,
			IsResend:      req.IsResend,
		})
	case entity.EmailKindPasswordReset:
		if req.ResetLink == nil || *req.ResetLink == "" {
			return "", errors.New("missing reset link")
		}
		return mailer.RenderPasswordReset(mailer.ResetData{
			Email:         req.ToEmail,
			Link:          *req.ResetLink,
			ExpiryMinutes: s.config.PasswordReset.TokenTTLMinutes,
		})
	default:
		return "", fmt.Errorf("unknown email kind %q", req.Kind)
	}
}

func (s *notificationService) fail(ctx context.Context, req *entity.EmailRequest, reason string) error {
	moved, err := s.repo.EmailRequest.MarkFailed(ctx, req.ID, reason, s.now())
	if err != nil {
		return fmt.Errorf("mark email request %s failed: %w", req.ID, err)
	}
	if !moved {
		return nil
	}

	metrics.EmailsTotal.WithLabelValues(string(req.Kind), string(entity.EmailStatusFailed)).Inc()
	s.log.Warn("Email request failed",
		zap.String("email_request_id", req.ID),
		zap.String("reason", reason))

	if req.Kind == entity.EmailKindOTP && req.TransactionID != nil {
		return s.otp.ApplyDeliveryResult(ctx, *req.TransactionID, false, reason)
	}
	return nil
}
