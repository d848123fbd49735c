package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

const layout = `{{define "layout"}}<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		{{template "content" .}}
		<p style="font-size: 12px; color: #666;">This is an automated message, please do not reply.</p>
	</div>
</body>
</html>{{end}}`

const otpContent = `{{define "content"}}
		<h2>Transaction verification</h2>
		<p>Your one-time code for transaction <strong>{{.TransactionID}}</strong> is:</p>
		<p style="font-size: 32px; letter-spacing: 6px; font-weight: bold;">{{.Code}}</p>
		<p>The code expires in {{.ExpiryMinutes}} minutes. Never share it with anyone.</p>
		{{if .IsResend}}<p>This code was sent again at your request.</p>{{end}}
{{end}}`

const resetContent = `{{define "content"}}
		<h2>Password reset</h2>
		<p>We received a request to reset the password for {{.Email}}.</p>
		<p><a href="{{.Link}}">Reset your password</a></p>
		<p>The link expires in {{.ExpiryMinutes}} minutes. Ignore this email if you did not ask for it.</p>
{{end}}`

var (
	otpTemplate   = template.Must(template.Must(template.New("otp").Parse(layout)).Parse(otpContent))
	resetTemplate = template.Must(template.Must(template.New("reset").Parse(layout)).Parse(resetContent))
)

type OTPData struct {
	TransactionID string
	Code          string
	ExpiryMinutes int
	IsResend      bool
}

type ResetData struct {
	Email         string
	Link          string
	ExpiryMinutes int
}

func RenderOTP(data OTPData) (string, error) {
	return render(otpTemplate, data)
}

func RenderPasswordReset(data ResetData) (string, error) {
	return render(resetTemplate, data)
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
