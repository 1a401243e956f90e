package notifications

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type Message struct {
	ToName  string
	ToEmail string
	Subject string
	HTML    string
}

// Mailer delivers one rendered message. Implementations return an error on
// any delivery failure so the job worker can retry.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer only logs messages. Used in development.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.log.Info("email (log driver)",
		zap.String("to", msg.ToEmail),
		zap.String("subject", msg.Subject),
		zap.Int("html_bytes", len(msg.HTML)),
	)
	return nil
}

func validRecipient(email string) error {
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("invalid recipient email: %q", email)
	}
	return nil
}

func recipientName(name, email string) string {
	if name != "" {
		return name
	}
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
