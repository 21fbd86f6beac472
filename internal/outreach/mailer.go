package outreach

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hibiken/asynq"
)

// Mailer delivers transactional email over plain SMTP.
type Mailer struct {
	addr   string
	from   string
	logger *slog.Logger
}

// NewMailer constructs a Mailer. An empty host yields a nil mailer, which
// callers treat as the feature being disabled.
func NewMailer(host string, port int, from string, logger *slog.Logger) *Mailer {
	if host == "" {
		return nil
	}
	return &Mailer{
		addr:   fmt.Sprintf("%s:%d", host, port),
		from:   from,
		logger: logger,
	}
}

// Send delivers one message.
func (m *Mailer) Send(payload SendEmailPayload) error {
	headers := []string{
		"From: " + m.from,
		"To: " + payload.To,
		"Subject: " + payload.Subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
	}
	if payload.ReplyTo != "" {
		headers = append(headers, "Reply-To: "+payload.ReplyTo)
	}
	msg := strings.Join(headers, "\r\n") + "\r\n\r\n" + payload.Body + "\r\n"

	if err := smtp.SendMail(m.addr, nil, m.from, []string{payload.To}, []byte(msg)); err != nil {
		return fmt.Errorf("outreach: send mail: %w", err)
	}
	return nil
}

// HandleSendEmailTask processes mail:send tasks.
func (m *Mailer) HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := m.Send(payload); err != nil {
		m.logger.Warn("send mail", slog.String("to", payload.To), slog.Any("error", err))
		return err
	}
	return nil
}
