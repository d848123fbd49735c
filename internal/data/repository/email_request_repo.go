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

type EmailRequestRepository interface {
	Create(ctx context.Context, req *entity.EmailRequest) error
	FindByID(ctx context.Context, id string) (*entity.EmailRequest, error)
	// MarkSent and MarkFailed only leave pending; they return false otherwise.
	MarkSent(ctx context.Context, id string, messageID string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id string, reason string, at time.Time) (bool, error)
	ListPendingIDs(ctx context.Context, createdBefore time.Time, limit int) ([]string, error)
}

type emailRequestRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewEmailRequestRepository(db database.PgxIface, log *zap.Logger) EmailRequestRepository {
	return &emailRequestRepository{
		db:  db,
		log: log.With(zap.String("repository", "email_request")),
	}
}

func (r *emailRequestRepository) Create(ctx context.Context, req *entity.EmailRequest) error {
	query := `
		INSERT INTO email_requests (id, kind, transaction_id, to_email, otp_code, reset_link,
		                            subject, is_resend, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		req.ID,
		req.Kind,
		req.TransactionID,
		req.ToEmail,
		req.OTPCode,
		req.ResetLink,
		req.Subject,
		req.IsResend,
		req.Status,
		req.CreatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create email request",
			zap.Error(err),
			zap.String("email_request_id", req.ID),
			zap.String("kind", string(req.Kind)),
		)
		return fmt.Errorf("create email request %s: %w", req.ID, err)
	}

	return nil
}

func (r *emailRequestRepository) FindByID(ctx context.Context, id string) (*entity.EmailRequest, error) {
	query := `
		SELECT id, kind, transaction_id, to_email, otp_code, reset_link, subject, is_resend,
		       status, message_id, last_error, created_at, sent_at, failed_at
		FROM email_requests
		WHERE id = $1
	`

	var req entity.EmailRequest
	err := r.db.QueryRow(ctx, query, id).Scan(
		&req.ID,
		&req.Kind,
		&req.TransactionID,
		&req.ToEmail,
		&req.OTPCode,
		&req.ResetLink,
		&req.Subject,
		&req.IsResend,
		&req.Status,
		&req.MessageID,
		&req.LastError,
		&req.CreatedAt,
		&req.SentAt,
		&req.FailedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find email request",
			zap.Error(err),
			zap.String("email_request_id", id),
		)
		return nil, fmt.Errorf("find email request %s: %w", id, err)
	}

	return &req, nil
}

func (r *emailRequestRepository) MarkSent(ctx context.Context, id string, messageID string, at time.Time) (bool, error) {
	query := `
		UPDATE email_requests
		SET status = 'sent', message_id = $2, sent_at = $3
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.db.Exec(ctx, query, id, messageID, at)
	if err != nil {
		r.log.Error("Failed to mark email request sent",
			zap.Error(err),
			zap.String("email_request_id", id),
		)
		return false, fmt.Errorf("mark email request %s sent: %w", id, err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *emailRequestRepository) MarkFailed(ctx context.Context, id string, reason string, at time.Time) (bool, error) {
	query := `
		UPDATE email_requests
		SET status = 'failed', last_error = $2, failed_at = $3
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.db.Exec(ctx, query, id, reason, at)
	if err != nil {
		r.log.Error("Failed to mark email request failed",
			zap.Error(err),
			zap.String("email_request_id", id),
		)
		return false, fmt.Errorf("mark email request %s failed: %w", id, err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *emailRequestRepository) ListPendingIDs(ctx context.Context, createdBefore time.Time, limit int) ([]string, error) {
	query := `
		SELECT id
		FROM email_requests
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, createdBefore, limit)
	if err != nil {
		r.log.Error("Failed to list pending email requests", zap.Error(err))
		return nil, fmt.Errorf("list pending email requests: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan pending email requests: %w", err)
	}

	return ids, nil
}
