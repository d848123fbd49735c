package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"paygate/pkg/utils"

	"go.uber.org/zap"
)

func TestRenderOTP(t *testing.T) {
	html, err := RenderOTP(OTPData{TransactionID: "T1", Code: "012345", ExpiryMinutes: 2, IsResend: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"T1", "012345", "2 minutes", "sent again"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered otp mail misses %q", want)
		}
	}
}

func TestRenderPasswordResetEscapes(t *testing.T) {
	html, err := RenderPasswordReset(ResetData{
		Email:         "<script>@x.com",
		Link:          "https://app.example.com/reset?token=abc",
		ExpiryMinutes: 60,
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("email address must be escaped")
	}
	if !strings.Contains(html, "token=abc") {
		t.Error("reset link missing")
	}
}

func TestSMTPMailer(t *testing.T) {
	m := NewSMTPMailer(utils.EmailConfig{Host: "smtp.example.com", Port: 587, User: "u", Password: "p", From: "no-reply@example.com", FromName: "Paygate"})

	var gotAddr string
	var gotTo []string
	var gotBody string
	m.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotBody = addr, to, string(msg)
		return nil
	}

	id, err := m.Send(context.Background(), Message{To: "a@b.com", Subject: "OTP", HTML: "<p>hi</p>"})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" || !strings.Contains(gotBody, "Message-ID: "+id) {
		t.Errorf("message id %q not in headers", id)
	}
	if gotAddr != "smtp.example.com:587" || len(gotTo) != 1 || gotTo[0] != "a@b.com" {
		t.Errorf("addr=%s to=%v", gotAddr, gotTo)
	}
	if !strings.HasSuffix(gotBody, "\r\n\r\n<p>hi</p>") {
		t.Error("body should follow a blank line after headers")
	}

	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 busy") }
	if _, err := m.Send(context.Background(), Message{To: "a@b.com"}); err == nil {
		t.Error("transport errors must be returned")
	}
}

func TestNewPicksLogMailerWithoutHost(t *testing.T) {
	m := New(utils.EmailConfig{}, zap.NewNop())
	if _, ok := m.(*LogMailer); !ok {
		t.Fatalf("New() = %T, want *LogMailer", m)
	}
	id, err := m.Send(context.Background(), Message{To: "a@b.com"})
	if err != nil || !strings.HasPrefix(id, "log-") {
		t.Fatalf("id=%q err=%v", id, err)
	}
}
