// Package email sends transactional mail over SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/inventio/inventory-api/internal/logging"
)

type Service struct {
	smtpHost     string
	smtpPort     string
	smtpUser     string
	smtpPassword string
	fromEmail    string
	supportEmail string
	frontendURL  string
}

func NewService(smtpHost, smtpPort, smtpUser, smtpPassword, supportEmail, frontendURL string) *Service {
	return &Service{
		smtpHost:     smtpHost,
		smtpPort:     smtpPort,
		smtpUser:     smtpUser,
		smtpPassword: smtpPassword,
		fromEmail:    smtpUser,
		supportEmail: supportEmail,
		frontendURL:  frontendURL,
	}
}

// SendPasswordResetEmail sends a password reset link to the user. The
// caller treats a failure as its own error, so this is not fire-and-forget.
func (s *Service) SendPasswordResetEmail(ctx context.Context, toEmail, toName, token string) error {
	logger := logging.GetLoggerFromContext(ctx)

	resetLink := fmt.Sprintf("%s/resetpassword/%s", s.frontendURL, token)

	subject := "Reset your password"
	body, err := s.renderPasswordResetEmailTemplate(toName, resetLink)
	if err != nil {
		logger.Error("failed to render password reset email template", "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.sendEmail(toEmail, "", subject, body); err != nil {
		logger.Error("failed to send password reset email", "email", toEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("password reset email sent", "email", toEmail)
	return nil
}

// SendContactEmail relays a contact-us message to the support address.
// Reply-To carries the sender so support can answer them directly.
func (s *Service) SendContactEmail(ctx context.Context, senderEmail, senderName, subject, message string) error {
	logger := logging.GetLoggerFromContext(ctx)

	body, err := s.renderContactEmailTemplate(senderName, senderEmail, message)
	if err != nil {
		logger.Error("failed to render contact email template", "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.sendEmail(s.supportEmail, senderEmail, subject, body); err != nil {
		logger.Error("failed to send contact email", "sender", senderEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("contact email relayed", "sender", senderEmail)
	return nil
}

func (s *Service) sendEmail(to, replyTo, subject, body string) error {
	auth := smtp.PlainAuth("", s.smtpUser, s.smtpPassword, s.smtpHost)

	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\n", s.fromEmail, to)
	if replyTo != "" {
		headers += fmt.Sprintf("Reply-To: %s\r\n", replyTo)
	}
	headers += fmt.Sprintf(
		"Subject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n",
		subject,
	)

	msg := []byte(headers + "\r\n" + body + "\r\n")

	addr := fmt.Sprintf("%s:%s", s.smtpHost, s.smtpPort)
	return smtp.SendMail(addr, auth, s.fromEmail, []string{to}, msg)
}

func (s *Service) renderPasswordResetEmailTemplate(name, resetLink string) (string, error) {
	tmpl := `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .header {
            background-color: #4F46E5;
            color: white;
            padding: 20px;
            text-align: center;
            border-radius: 5px 5px 0 0;
        }
        .content {
            background-color: #f9f9f9;
            padding: 30px;
            border-radius: 0 0 5px 5px;
        }
        .button {
            display: inline-block;
            background-color: #4F46E5;
            color: white !important;
            padding: 12px 30px;
            text-decoration: none;
            border-radius: 5px;
            margin: 20px 0;
        }
        .footer {
            margin-top: 30px;
            font-size: 12px;
            color: #666;
            text-align: center;
        }
    </style>
</head>
<body>
    <div class="header">
        <h1>Password Reset</h1>
    </div>
    <div class="content">
        <h2>Hello {{.Name}},</h2>
        <p>We received a request to reset the password for your account. Click the button below to choose a new one.</p>

        <a href="{{.ResetLink}}" class="button" style="color: white !important;">Reset Password</a>

        <p>Or copy and paste this link into your browser:</p>
        <p style="word-break: break-all; color: #4F46E5;">{{.ResetLink}}</p>

        <p style="margin-top: 30px;">If you didn't request a password reset, you can safely ignore this email. Your password will not change.</p>
    </div>
    <div class="footer">
        <p>This link will expire in 30 minutes.</p>
    </div>
</body>
</html>
`

	t, err := template.New("password_reset").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	data := struct {
		Name      string
		ResetLink string
	}{
		Name:      name,
		ResetLink: resetLink,
	}

	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return buf.String(), nil
}

func (s *Service) renderContactEmailTemplate(name, senderEmail, message string) (string, error) {
	tmpl := `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .meta {
            color: #666;
            font-size: 13px;
            margin-bottom: 20px;
        }
        .message {
            background-color: #f9f9f9;
            padding: 20px;
            border-radius: 5px;
            white-space: pre-wrap;
        }
    </style>
</head>
<body>
    <h2>New support message</h2>
    <p class="meta">From {{.Name}} &lt;{{.Email}}&gt;</p>
    <div class="message">{{.Message}}</div>
</body>
</html>
`

	t, err := template.New("contact").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	data := struct {
		Name    string
		Email   string
		Message string
	}{
		Name:    name,
		Email:   senderEmail,
		Message: message,
	}

	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return buf.String(), nil
}
