package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paygate/internal/data/entity"
	"paygate/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type PasswordResetRepository interface {
	Create(ctx context.Context, token *entity.PasswordResetToken) error
	FindByToken(ctx context.Context, token string) (*entity.PasswordResetToken, error)
	// Consume flips is_used on an unexpired, unused token.
	Consume(ctx context.Context, token string, at time.Time) (bool, error)
}

type passwordResetRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewPasswordResetRepository(db database.PgxIface, log *zap.Logger) PasswordResetRepository {
	return &passwordResetRepository{
		db:  db,
		log: log.With(zap.String("repository", "password_reset")),
	}
}

func (r *passwordResetRepository) Create(ctx context.Context, token *entity.PasswordResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (token, email, is_used, created_at, expires_at)
		VALUES ($1, $2, false, $3, $4)
	`

	if _, err := r.db.Exec(ctx, query, token.Token, token.Email, token.CreatedAt, token.ExpiresAt); err != nil {
		r.log.Error("Failed to create password reset token", zap.Error(err))
		return fmt.Errorf("create password reset token: %w", err)
	}

	return nil
}

func (r *passwordResetRepository) FindByToken(ctx context.Context, token string) (*entity.PasswordResetToken, error) {
	query := `
		SELECT token, email, is_used, created_at, expires_at, used_at
		FROM password_reset_tokens
		WHERE token = $1
	`

	var t entity.PasswordResetToken
	err := r.db.QueryRow(ctx, query, token).Scan(
		&t.Token,
		&t.Email,
		&t.IsUsed,
		&t.CreatedAt,
		&t.ExpiresAt,
		&t.UsedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find password reset token", zap.Error(err))
		return nil, fmt.Errorf("find password reset token: %w", err)
	}

	return &t, nil
}

func (r *passwordResetRepository) Consume(ctx context.Context, token string, at time.Time) (bool, error) {
	query := `
		UPDATE password_reset_tokens
		SET is_used = true, used_at = $2
		WHERE token = $1 AND is_used = false AND expires_at > $2
	`

	result, err := r.db.Exec(ctx, query, token, at)
	if err != nil {
		r.log.Error("Failed to consume password reset token", zap.Error(err))
		return false, fmt.Errorf("consume password reset token: %w", err)
	}

	return result.RowsAffected() > 0, nil
}
