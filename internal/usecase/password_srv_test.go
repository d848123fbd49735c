package usecase

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"paygate/internal/data/entity"
	"paygate/pkg/utils"
)

func requestReset(t *testing.T, e *env) string {
	t.Helper()
	if err := e.svc.Password.RequestReset(context.Background(), "a@example.com"); err != nil {
		t.Fatalf("RequestReset() error = %v", err)
	}

	req := e.emails.last()
	if req.Kind != entity.EmailKindPasswordReset || req.ResetLink == nil {
		t.Fatalf("email request = %+v", req)
	}
	u, err := url.Parse(*req.ResetLink)
	if err != nil {
		t.Fatal(err)
	}
	return u.Query().Get("token")
}

func TestRequestReset(t *testing.T) {
	e := newEnv()
	token := requestReset(t, e)

	if len(token) != 64 {
		t.Fatalf("token %q, want 64 hex chars", token)
	}
	stored, _ := e.resets.FindByToken(context.Background(), token)
	if stored == nil || stored.IsUsed || stored.Email != "a@example.com" {
		t.Fatalf("token = %+v", stored)
	}
	if want := e.clock.Now().Add(time.Hour); !stored.ExpiresAt.Equal(want) {
		t.Errorf("expires_at = %v, want %v", stored.ExpiresAt, want)
	}

	// Every request mints a new token.
	if other := requestReset(t, e); other == token {
		t.Fatal("token reused")
	}
}

func TestRequestResetValidation(t *testing.T) {
	e := newEnv()
	if err := e.svc.Password.RequestReset(context.Background(), "not-an-email"); !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestConfirmReset(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	token := requestReset(t, e)

	if err := e.svc.Password.ConfirmReset(ctx, token, "n3w-passw0rd"); err != nil {
		t.Fatalf("ConfirmReset() error = %v", err)
	}
	cred, ok := e.creds.by["a@example.com"]
	if !ok || !utils.CheckPasswordHash("n3w-passw0rd", cred.PasswordHash) {
		t.Fatalf("credential = %+v", cred)
	}

	if err := e.svc.Password.ConfirmReset(ctx, token, "another-pass"); !errors.Is(err, ErrTokenUsed) {
		t.Fatalf("second use error = %v, want ErrTokenUsed", err)
	}
	if e.creds.count != 1 {
		t.Fatalf("credential writes = %d, want 1", e.creds.count)
	}
}

func TestConfirmResetRejections(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	token := requestReset(t, e)

	if err := e.svc.Password.ConfirmReset(ctx, "deadbeef", "n3w-passw0rd"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown token error = %v", err)
	}
	if err := e.svc.Password.ConfirmReset(ctx, token, "short"); !errors.Is(err, ErrValidation) {
		t.Fatalf("short password error = %v", err)
	}

	e.clock.Advance(time.Hour)
	if err := e.svc.Password.ConfirmReset(ctx, token, "n3w-passw0rd"); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expired token error = %v", err)
	}
}
