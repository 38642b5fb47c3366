// AngelaMos | 2026
// mailer.go

package mailer

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/bbigmic/dziennik-pracy/internal/config"
	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/metrics"
)

const sendPath = "/v3/mail/send"

type Mailer struct {
	client    *sendgrid.Client
	from      *mail.Email
	timeout   time.Duration
	publicURL string
}

func New(cfg config.MailConfig, publicURL string) *Mailer {
	return newMailer(cfg, publicURL, "")
}

func newMailer(cfg config.MailConfig, publicURL, host string) *Mailer {
	request := sendgrid.GetRequest(cfg.SendGridAPIKey, sendPath, host)
	request.Method = "POST"

	return &Mailer{
		client:    &sendgrid.Client{Request: request},
		from:      mail.NewEmail(cfg.FromName, cfg.FromEmail),
		timeout:   cfg.Timeout,
		publicURL: publicURL,
	}
}

// SendWelcome greets a freshly registered user and points them at the app
// while their trial runs.
func (m *Mailer) SendWelcome(ctx context.Context, email, name string) error {
	subject := "Welcome to Dziennik Pracy"

	plain := fmt.Sprintf(
		"Hi %s,\n\nyour account is ready and your free trial has started. "+
			"Record today's work by voice or text and keep your deadlines in one place.\n\n%s\n",
		name, m.publicURL,
	)
	rich := fmt.Sprintf(
		"<p>Hi %s,</p><p>your account is ready and your free trial has started. "+
			"Record today's work by voice or text and keep your deadlines in one place.</p>"+
			`<p><a href="%s">Open the journal</a></p>`,
		html.EscapeString(name), html.EscapeString(m.publicURL),
	)

	message := mail.NewSingleEmail(m.from, subject, mail.NewEmail(name, email), plain, rich)

	return m.send(ctx, "welcome", message)
}

func (m *Mailer) send(ctx context.Context, op string, message *mail.SGMailV3) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	response, err := m.client.SendWithContext(ctx, message)
	if err == nil && response.StatusCode >= 300 {
		err = fmt.Errorf("sendgrid responded %d: %s", response.StatusCode, response.Body)
	}
	metrics.RecordUpstreamCall("sendgrid", op, err, time.Since(start))

	if err != nil {
		return fmt.Errorf("send %s email: %w: %w", op, core.ErrUpstream, err)
	}

	return nil
}
