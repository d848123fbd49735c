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

type OTPRepository interface {
	// Upsert inserts otp, or replaces an existing record that is no longer live.
	// It returns false when a live or used record is in the way.
	Upsert(ctx context.Context, otp *entity.OTP, now time.Time) (bool, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*entity.OTP, error)
	// UpdateStatus moves an unused OTP from one of from to status.
	UpdateStatus(ctx context.Context, transactionID string, from []entity.OTPStatus, status entity.OTPStatus, at time.Time) (bool, error)
	MarkVerified(ctx context.Context, transactionID string, at time.Time) (bool, error)
	MarkExpired(ctx context.Context, transactionID string, at time.Time) (bool, error)
	// ApplyDelivery records the email outcome on an unused, unexpired-status OTP.
	ApplyDelivery(ctx context.Context, transactionID string, sent bool, reason *string, at time.Time) (bool, error)
}

type otpRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewOTPRepository(db database.PgxIface, log *zap.Logger) OTPRepository {
	return &otpRepository{
		db:  db,
		log: log.With(zap.String("repository", "otp")),
	}
}

const otpColumns = `transaction_id, user_id, user_email, otp_code, status, is_used, last_error,
		       created_at, expires_at, email_sent_at, verified_at, updated_at`

func (r *otpRepository) Upsert(ctx context.Context, otp *entity.OTP, now time.Time) (bool, error) {
	query := `
		INSERT INTO otps (transaction_id, user_id, user_email, otp_code, status, is_used,
		                  created_at, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, false, $6, $7, $8)
		ON CONFLICT (transaction_id) DO UPDATE
		SET user_id = EXCLUDED.user_id,
		    user_email = EXCLUDED.user_email,
		    otp_code = EXCLUDED.otp_code,
		    status = EXCLUDED.status,
		    is_used = false,
		    last_error = NULL,
		    created_at = EXCLUDED.created_at,
		    expires_at = EXCLUDED.expires_at,
		    email_sent_at = NULL,
		    verified_at = NULL,
		    updated_at = EXCLUDED.updated_at
		WHERE otps.is_used = false
		  AND otps.expires_at < $9
	`

	result, err := r.db.Exec(ctx, query,
		otp.TransactionID,
		otp.UserID,
		otp.UserEmail,
		otp.OTPCode,
		otp.Status,
		otp.CreatedAt,
		otp.ExpiresAt,
		otp.UpdatedAt,
		now,
	)
	if err != nil {
		r.log.Error("Failed to upsert OTP",
			zap.Error(err),
			zap.String("transaction_id", otp.TransactionID),
		)
		return false, fmt.Errorf("upsert OTP for %s: %w", otp.TransactionID, err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *otpRepository) FindByTransactionID(ctx context.Context, transactionID string) (*entity.OTP, error) {
	query := `SELECT ` + otpColumns + ` FROM otps WHERE transaction_id = $1`

	var otp entity.OTP
	err := r.db.QueryRow(ctx, query, transactionID).Scan(
		&otp.TransactionID,
		&otp.UserID,
		&otp.UserEmail,
		&otp.OTPCode,
		&otp.Status,
		&otp.IsUsed,
		&otp.LastError,
		&otp.CreatedAt,
		&otp.ExpiresAt,
		&otp.EmailSentAt,
		&otp.VerifiedAt,
		&otp.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find OTP",
			zap.Error(err),
			zap.String("transaction_id", transactionID),
		)
		return nil, fmt.Errorf("find OTP %s: %w", transactionID, err)
	}

	return &otp, nil
}

func (r *otpRepository) UpdateStatus(ctx context.Context, transactionID string, from []entity.OTPStatus, status entity.OTPStatus, at time.Time) (bool, error) {
	query := `
		UPDATE otps
		SET status = $2, updated_at = $3
		WHERE transaction_id = $1
		  AND is_used = false
		  AND status = ANY($4)
	`

	fromText := make([]string, len(from))
	for i, s := range from {
		fromText[i] = string(s)
	}

	return r.exec(ctx, "update OTP status", transactionID, query, transactionID, status, at, fromText)
}

func (r *otpRepository) MarkVerified(ctx context.Context, transactionID string, at time.Time) (bool, error) {
	query := `
		UPDATE otps
		SET is_used = true, status = 'verified', verified_at = $2, updated_at = $2
		WHERE transaction_id = $1
		  AND is_used = false
	`

	return r.exec(ctx, "mark OTP verified", transactionID, query, transactionID, at)
}

func (r *otpRepository) MarkExpired(ctx context.Context, transactionID string, at time.Time) (bool, error) {
	query := `
		UPDATE otps
		SET status = 'expired', updated_at = $2
		WHERE transaction_id = $1
		  AND is_used = false
		  AND status <> 'expired'
		  AND expires_at < $2
	`

	return r.exec(ctx, "mark OTP expired", transactionID, query, transactionID, at)
}

func (r *otpRepository) ApplyDelivery(ctx context.Context, transactionID string, sent bool, reason *string, at time.Time) (bool, error) {
	query := `
		UPDATE otps
		SET status = $2,
		    email_sent_at = CASE WHEN $3 THEN $5 ELSE email_sent_at END,
		    last_error = $4,
		    updated_at = $5
		WHERE transaction_id = $1
		  AND is_used = false
		  AND status <> 'expired'
	`

	status := entity.OTPStatusFailed
	if sent {
		status = entity.OTPStatusSent
	}

	return r.exec(ctx, "apply OTP delivery", transactionID, query, transactionID, status, sent, reason, at)
}

func (r *otpRepository) exec(ctx context.Context, op, transactionID, query string, args ...any) (bool, error) {
	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to "+op,
			zap.Error(err),
			zap.String("transaction_id", transactionID),
		)
		return false, fmt.Errorf("%s %s: %w", op, transactionID, err)
	}
	return result.RowsAffected() > 0, nil
}
