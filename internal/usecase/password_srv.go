package usecase

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"paygate/internal/data/entity"
	"paygate/internal/data/repository"
	"paygate/pkg/utils"

	"go.uber.org/zap"
)

const (
	resetTokenBytes   = 32
	resetEmailSubject = "Đặt lại mật khẩu"
)

type PasswordService interface {
	RequestReset(ctx context.Context, email string) error
	ConfirmReset(ctx context.Context, token, newPassword string) error
}

type passwordService struct {
	repo   *repository.Repository
	now    Clock
	config *utils.Config
	log    *zap.Logger
}

func NewPasswordService(repo *repository.Repository, now Clock, config *utils.Config, log *zap.Logger) PasswordService {
	return &passwordService{
		repo:   repo,
		now:    now,
		config: config,
		log:    log.With(zap.String("service", "password")),
	}
}

func (s *passwordService) RequestReset(ctx context.Context, email string) error {
	if errs := utils.ValidateStruct(struct {
		Email string `validate:"required,email"`
	}{email}); len(errs) > 0 {
		return validationError(utils.FormatValidationErrors(errs))
	}

	token, err := utils.GenerateToken(resetTokenBytes)
	if err != nil {
		return err
	}

	now := s.now()
	ttl := time.Duration(s.config.PasswordReset.TokenTTLMinutes) * time.Minute
	if err := s.repo.PasswordReset.Create(ctx, &entity.PasswordResetToken{
		Token:     token,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}); err != nil {
		return err
	}

	link, err := resetLink(s.config.PasswordReset.LinkBaseURL, token)
	if err != nil {
		return err
	}

	req := &entity.EmailRequest{
		ID:        "reset_" + utils.GenerateUUIDString(),
		Kind:      entity.EmailKindPasswordReset,
		ToEmail:   email,
		ResetLink: &link,
		Subject:   resetEmailSubject,
		Status:    entity.EmailStatusPending,
		CreatedAt: now,
	}
	if err := s.repo.EmailRequest.Create(ctx, req); err != nil {
		return fmt.Errorf("enqueue reset email: %w", err)
	}

	s.log.Info("Password reset requested",
		zap.String("email", email),
		zap.String("email_request_id", req.ID))

	return nil
}

func (s *passwordService) ConfirmReset(ctx context.Context, token, newPassword string) error {
	if errs := utils.ValidateStruct(struct {
		Token       string `validate:"required"`
		NewPassword string `validate:"required,min=8,max=72"`
	}{token, newPassword}); len(errs) > 0 {
		return validationError(utils.FormatValidationErrors(errs))
	}

	// 1. Load
	t, err := s.repo.PasswordReset.FindByToken(ctx, token)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrNotFound
	}
	if t.IsUsed {
		return ErrTokenUsed
	}
	now := s.now()
	if !now.Before(t.ExpiresAt) {
		return ErrTokenExpired
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	// 2. Consume, losing a race reads as already used
	consumed, err := s.repo.PasswordReset.Consume(ctx, token, now)
	if err != nil {
		return err
	}
	if !consumed {
		return ErrTokenUsed
	}

	// 3. Store
	if err := s.repo.Credential.Upsert(ctx, &entity.Credential{
		Email:        t.Email,
		PasswordHash: hash,
		UpdatedAt:    now,
	}); err != nil {
		return err
	}

	s.log.Info("Password reset completed", zap.String("email", t.Email))
	return nil
}

func resetLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse reset link base: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
