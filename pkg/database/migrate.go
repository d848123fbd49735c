package database

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schema string

// Channels raised by the AFTER INSERT triggers in schema.sql.
const (
	ChannelPaymentCreated = "payment_requests_created"
	ChannelEmailCreated   = "email_requests_created"
)

// Migrate applies the embedded schema. Safe to run on every start.
func Migrate(ctx context.Context, db PgxIface) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
