// Package mailer is the outbound email collaborator for the identity core.
// It only knows how to deliver verification codes; transport specifics live
// behind the Sender interface.
package mailer

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Message is a rendered verification email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a message to a single recipient.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg Message) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	if f == nil {
		return nil
	}
	return f(ctx, msg)
}

// Config selects and configures a provider.
type Config struct {
	Provider string
	Mailgun  *MailgunConfig
	SMTP     *SMTPConfig
}

// NewSender returns the Sender for the configured provider.
func NewSender(cfg Config) (Sender, error) {
	switch cfg.Provider {
	case "mailgun":
		if err := validateMailgunConfig(cfg.Mailgun); err != nil {
			return nil, err
		}
		return &MailgunSender{Config: cfg.Mailgun}, nil
	case "smtp":
		if err := validateSMTPConfig(cfg.SMTP); err != nil {
			return nil, err
		}
		return &SMTPSender{Config: cfg.SMTP}, nil
	case "log", "":
		return &LogSender{}, nil
	default:
		return nil, goerrors.New("unknown mailer provider", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"provider": cfg.Provider})
	}
}

// CodeEmail renders the verification code message sent during registration.
func CodeEmail(email, name, code string, expiresAt time.Time) Message {
	greeting := "Hello"
	if name != "" {
		greeting = "Hello " + name
	}

	minutes := int(time.Until(expiresAt).Round(time.Minute).Minutes())
	if minutes < 1 {
		minutes = 1
	}

	return Message{
		To:      email,
		Subject: "Your campus account verification code",
		Body: fmt.Sprintf(
			"%s,\n\nYour verification code is: %s\n\nIt expires in %d minutes. If you did not request this, ignore this email.\n",
			greeting, code, minutes,
		),
	}
}
