package services

import (
	"context"
	"fmt"
	"html"

	"notifyhub/internal/config"
	"notifyhub/pkg/logging"

	brevo "github.com/getbrevo/brevo-go/lib"
)

// Mailer sends transactional email
type Mailer interface {
	Send(ctx context.Context, to, name, subject, htmlContent, textContent string) error
}

// NewMailer returns a Brevo mailer, or a mailer that only logs when no API key is configured
func NewMailer(cfg *config.Config) Mailer {
	if cfg.BrevoAPIKey == "" || cfg.BrevoFromEmail == "" {
		return noopMailer{}
	}
	return NewBrevoMailer(cfg.BrevoAPIKey, cfg.BrevoFromEmail, cfg.BrevoFromName)
}

// BrevoMailer sends email through the Brevo transactional API
type BrevoMailer struct {
	client    *brevo.APIClient
	fromEmail string
	fromName  string
}

// NewBrevoMailer creates a new Brevo mailer
func NewBrevoMailer(apiKey, fromEmail, fromName string) *BrevoMailer {
	cfg := brevo.NewConfiguration()
	cfg.AddDefaultHeader("api-key", apiKey)
	return &BrevoMailer{
		client:    brevo.NewAPIClient(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (m *BrevoMailer) Send(ctx context.Context, to, name, subject, htmlContent, textContent string) error {
	_, resp, err := m.client.TransactionalEmailsApi.SendTransacEmail(ctx, brevo.SendSmtpEmail{
		Sender: &brevo.SendSmtpEmailSender{
			Name:  m.fromName,
			Email: m.fromEmail,
		},
		To: []brevo.SendSmtpEmailTo{
			{Email: to, Name: name},
		},
		Subject:     subject,
		HtmlContent: htmlContent,
		TextContent: textContent,
	})
	if err != nil {
		if resp != nil {
			return fmt.Errorf("brevo API error: status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

type noopMailer struct{}

func (noopMailer) Send(_ context.Context, to, _, subject, _, _ string) error {
	logging.Debugf("Email to %s not sent, mailer not configured: %s", to, subject)
	return nil
}

// applicationEmail builds the review notification for an applicant
func applicationEmail(approved bool, username, reason string) (subject, htmlContent, textContent string) {
	if approved {
		subject = "Your NotifyHub account is ready"
		textContent = fmt.Sprintf("Hello %s,\n\nYour application was approved. You can now sign in with the username %s.\n", username, username)
	} else {
		subject = "Your NotifyHub application"
		textContent = fmt.Sprintf("Hello %s,\n\nYour application was not approved.\n", username)
		if reason != "" {
			textContent += fmt.Sprintf("Reason: %s\n", reason)
		}
	}

	htmlContent = fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>%s</title></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background-color: #f8f9fa; padding: 30px; border-radius: 10px;">
		<pre style="font-family: inherit; white-space: pre-wrap; color: #333;">%s</pre>
	</div>
</body>
</html>`, html.EscapeString(subject), html.EscapeString(textContent))
	return subject, htmlContent, textContent
}
