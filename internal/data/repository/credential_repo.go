package repository

import (
	"context"
	"fmt"

	"paygate/internal/data/entity"
	"paygate/pkg/database"

	"go.uber.org/zap"
)

type CredentialRepository interface {
	Upsert(ctx context.Context, cred *entity.Credential) error
}

type credentialRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewCredentialRepository(db database.PgxIface, log *zap.Logger) CredentialRepository {
	return &credentialRepository{
		db:  db,
		log: log.With(zap.String("repository", "credential")),
	}
}

func (r *credentialRepository) Upsert(ctx context.Context, cred *entity.Credential) error {
	query := `
		INSERT INTO credentials (email, password_hash, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.Exec(ctx, query, cred.Email, cred.PasswordHash, cred.UpdatedAt); err != nil {
		r.log.Error("Failed to upsert credential", zap.Error(err), zap.String("email", cred.Email))
		return fmt.Errorf("upsert credential for %s: %w", cred.Email, err)
	}

	return nil
}
