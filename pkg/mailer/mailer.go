// Package mailer delivers rendered HTML emails.
package mailer

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"paygate/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer sends one message and returns the transport message id.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// New picks SMTP when a host is configured, otherwise the log transport.
func New(cfg utils.EmailConfig, log *zap.Logger) Mailer {
	if cfg.Host == "" {
		log.Warn("SMTP_HOST not set, emails are written to the log")
		return NewLogMailer(log)
	}
	return NewSMTPMailer(cfg)
}

type SMTPMailer struct {
	cfg  utils.EmailConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg utils.EmailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), m.cfg.Host)

	// Headers
	headers := []string{
		"From: " + mime.QEncoding.Encode("utf-8", m.cfg.FromName) + " <" + m.cfg.From + ">",
		"To: " + msg.To,
		"Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject),
		"Message-ID: " + messageID,
		"Date: " + time.Now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}
	body := strings.Join(headers, "\r\n") + "\r\n\r\n" + msg.HTML

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := m.send(addr, auth, m.cfg.From, []string{msg.To}, []byte(body)); err != nil {
		return "", fmt.Errorf("send mail to %s: %w", msg.To, err)
	}

	return messageID, nil
}

// LogMailer writes messages to the logger instead of sending them.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log.With(zap.String("mailer", "log"))}
}

func (m *LogMailer) Send(_ context.Context, msg Message) (string, error) {
	id := "log-" + uuid.NewString()
	m.log.Info("Email (not sent)",
		zap.String("message_id", id),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.HTML),
	)
	return id, nil
}
