package notifications

import (
	"context"

	"gopkg.in/gomail.v2"
)

// SMTPMailer sends through an SMTP relay with gomail.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	name   string
}

func NewSMTPMailer(host string, port int, user, pass, from, name string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
		name:   name,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := validRecipient(msg.ToEmail); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", m.from, m.name)
	gm.SetAddressHeader("To", msg.ToEmail, recipientName(msg.ToName, msg.ToEmail))
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTML)

	return m.dialer.DialAndSend(gm)
}
