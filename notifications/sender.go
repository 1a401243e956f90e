package notifications

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Sender renders a template and hands it to the configured Mailer. It is the
// handler behind send-email jobs.
type Sender struct {
	mailer  Mailer
	alerter AdminAlerter
	log     *zap.Logger
}

func NewSender(mailer Mailer, alerter AdminAlerter, log *zap.Logger) *Sender {
	return &Sender{mailer: mailer, alerter: alerter, log: log}
}

func (s *Sender) Send(ctx context.Context, name Template, recipient string, data map[string]string) error {
	subject, html, err := Render(name, data)
	if err != nil {
		return err
	}

	msg := Message{ToName: data["name"], ToEmail: recipient, Subject: subject, HTML: html}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s to %s: %w", name, recipient, err)
	}
	s.log.Info("email sent", zap.String("template", string(name)), zap.String("to", recipient))

	// The alert is best effort; email delivery already succeeded and a retry
	// would resend the email.
	if name == TemplateEstimateAdminNotify && s.alerter != nil {
		if err := s.alerter.Alert(ctx, subject+"\n"+data["scope"]); err != nil {
			s.log.Warn("admin alert failed", zap.Error(err))
		}
	}
	return nil
}
