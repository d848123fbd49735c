package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"paygate/internal/data/entity"
	"paygate/pkg/database"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// ErrDuplicateKey is returned by Create when the primary key is taken.
var ErrDuplicateKey = errors.New("duplicate key")

type PaymentRequestRepository interface {
	Create(ctx context.Context, payment *entity.PaymentRequest) error
	FindByTransactionID(ctx context.Context, transactionID string) (*entity.PaymentRequest, error)
	// Transition applies t only while the stored status still equals t.From.
	Transition(ctx context.Context, transactionID string, t entity.PaymentTransition) (bool, error)
	ListPendingIDs(ctx context.Context, createdBefore time.Time, limit int) ([]string, error)
}

type paymentRequestRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewPaymentRequestRepository(db database.PgxIface, log *zap.Logger) PaymentRequestRepository {
	return &paymentRequestRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment_request")),
	}
}

func (r *paymentRequestRepository) Create(ctx context.Context, payment *entity.PaymentRequest) error {
	query := `
		INSERT INTO payment_requests (transaction_id, user_id, amount, payment_method, recipient_bank,
		                              recipient_account, client_ip, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		payment.TransactionID,
		payment.UserID,
		payment.Amount,
		payment.PaymentMethod,
		payment.RecipientBank,
		payment.RecipientAccount,
		payment.ClientIP,
		payment.Status,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("create payment request %s: %w", payment.TransactionID, ErrDuplicateKey)
	}
	if err != nil {
		r.log.Error("Failed to create payment request",
			zap.Error(err),
			zap.String("transaction_id", payment.TransactionID),
			zap.String("user_id", payment.UserID),
		)
		return fmt.Errorf("create payment request %s: %w", payment.TransactionID, err)
	}

	return nil
}

func (r *paymentRequestRepository) FindByTransactionID(ctx context.Context, transactionID string) (*entity.PaymentRequest, error) {
	query := `
		SELECT transaction_id, user_id, amount, payment_method, recipient_bank, recipient_account,
		       client_ip, status, payment_url, payment_gateway, payment_reference, response_code,
		       last_error, gateway_params, created_at, updated_at, processing_at, completed_at, failed_at
		FROM payment_requests
		WHERE transaction_id = $1
	`

	var (
		payment entity.PaymentRequest
		params  []byte
	)
	err := r.db.QueryRow(ctx, query, transactionID).Scan(
		&payment.TransactionID,
		&payment.UserID,
		&payment.Amount,
		&payment.PaymentMethod,
		&payment.RecipientBank,
		&payment.RecipientAccount,
		&payment.ClientIP,
		&payment.Status,
		&payment.PaymentURL,
		&payment.PaymentGateway,
		&payment.PaymentReference,
		&payment.ResponseCode,
		&payment.LastError,
		&params,
		&payment.CreatedAt,
		&payment.UpdatedAt,
		&payment.ProcessingAt,
		&payment.CompletedAt,
		&payment.FailedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment request",
			zap.Error(err),
			zap.String("transaction_id", transactionID),
		)
		return nil, fmt.Errorf("find payment request %s: %w", transactionID, err)
	}

	if len(params) > 0 {
		if err := json.Unmarshal(params, &payment.GatewayParams); err != nil {
			return nil, fmt.Errorf("decode gateway params of %s: %w", transactionID, err)
		}
	}

	return &payment, nil
}

func (r *paymentRequestRepository) Transition(ctx context.Context, transactionID string, t entity.PaymentTransition) (bool, error) {
	query := `
		UPDATE payment_requests
		SET status = $3,
		    updated_at = $4,
		    processing_at = CASE WHEN $3 = 'processing' THEN $4 ELSE processing_at END,
		    completed_at = CASE WHEN $3 = 'completed' THEN $4 ELSE completed_at END,
		    failed_at = CASE WHEN $3 = 'failed' THEN $4 ELSE failed_at END,
		    payment_url = COALESCE($5, payment_url),
		    payment_gateway = COALESCE($6, payment_gateway),
		    payment_reference = COALESCE($7, payment_reference),
		    response_code = COALESCE($8, response_code),
		    last_error = COALESCE($9, last_error),
		    gateway_params = COALESCE($10::jsonb, gateway_params)
		WHERE transaction_id = $1 AND status = $2
	`

	var params []byte
	if t.GatewayParams != nil {
		raw, err := json.Marshal(t.GatewayParams)
		if err != nil {
			return false, fmt.Errorf("encode gateway params of %s: %w", transactionID, err)
		}
		params = raw
	}

	result, err := r.db.Exec(ctx, query,
		transactionID,
		string(t.From),
		string(t.To),
		t.At,
		t.PaymentURL,
		t.PaymentGateway,
		t.PaymentReference,
		t.ResponseCode,
		t.LastError,
		params,
	)
	if err != nil {
		r.log.Error("Failed to transition payment request",
			zap.Error(err),
			zap.String("transaction_id", transactionID),
			zap.String("from", string(t.From)),
			zap.String("to", string(t.To)),
		)
		return false, fmt.Errorf("transition payment request %s from %s to %s: %w", transactionID, t.From, t.To, err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *paymentRequestRepository) ListPendingIDs(ctx context.Context, createdBefore time.Time, limit int) ([]string, error) {
	query := `
		SELECT transaction_id
		FROM payment_requests
		WHERE status = 'pending' AND payment_method = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, entity.PaymentMethodVNPay, createdBefore, limit)
	if err != nil {
		r.log.Error("Failed to list pending payment requests", zap.Error(err))
		return nil, fmt.Errorf("list pending payment requests: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan pending payment requests: %w", err)
	}

	return ids, nil
}
