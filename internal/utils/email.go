package utils

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"log"

	"github.com/wneessen/go-mail"
)

type Attachment struct {
	Name string
	Data []byte
}

type Email struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer envoie les mails via go-mail
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// BuildMessage construit le message MIME sans l'envoyer
func (m *SMTPMailer) BuildMessage(email Email) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("expéditeur invalide: %w", err)
	}
	if err := msg.To(email.To); err != nil {
		return nil, fmt.Errorf("destinataire invalide: %w", err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextHTML, email.HTML)

	for _, a := range email.Attachments {
		msg.AttachReader(a.Name, bytes.NewReader(a.Data))
	}
	return msg, nil
}

func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	msg, err := m.BuildMessage(email)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return err
	}

	log.Println("📧 Envoi de l'e-mail à", email.To)
	return client.DialAndSendWithContext(ctx, msg)
}

// PasswordResetEmail construit le mail contenant le lien de réinitialisation
func PasswordResetEmail(to, username, link string) Email {
	return Email{
		To:      to,
		Subject: "Password reset",
		HTML: fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<p>Hello %s,</p>
		<p>Click the link below to choose a new password. The link expires in one hour.</p>
		<p><a href="%s">Reset my password</a></p>
	</div>
</body>
</html>`, html.EscapeString(username), html.EscapeString(link)),
	}
}
