package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	goerrors "github.com/goliatone/go-errors"
)

// SMTPConfig holds the configuration for plain SMTP delivery
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPSender implements Sender over plain SMTP. Useful against a local
// relay during development.
type SMTPSender struct {
	Config *SMTPConfig
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	auth := smtp.PlainAuth("", s.Config.Username, s.Config.Password, s.Config.Host)
	to := []string{msg.To}
	raw := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s", msg.To, msg.Subject, msg.Body))

	addr := fmt.Sprintf("%s:%s", s.Config.Host, s.Config.Port)
	if err := smtp.SendMail(addr, auth, s.Config.From, to, raw); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "smtp send failed").
			WithMetadata(map[string]any{"to": msg.To})
	}

	return nil
}

func validateSMTPConfig(config *SMTPConfig) error {
	if config == nil || config.Host == "" || config.Port == "" || config.From == "" {
		return goerrors.New("invalid smtp configuration", goerrors.CategoryBadInput)
	}
	return nil
}
