package mailer

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/mailgun/mailgun-go/v4"
)

// MailgunConfig holds the configuration for Mailgun
type MailgunConfig struct {
	Key    string
	Domain string
	From   string
}

// MailgunSender implements Sender for Mailgun
type MailgunSender struct {
	Config *MailgunConfig
}

func (s *MailgunSender) Send(ctx context.Context, msg Message) error {
	mg := mailgun.NewMailgun(s.Config.Domain, s.Config.Key)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	message := mg.NewMessage(s.Config.From, msg.Subject, msg.Body)
	if err := message.AddRecipient(msg.To); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid recipient").
			WithMetadata(map[string]any{"to": msg.To})
	}

	if _, _, err := mg.Send(ctx, message); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "mailgun send failed")
	}

	return nil
}

func validateMailgunConfig(config *MailgunConfig) error {
	if config == nil || config.Key == "" || config.Domain == "" || config.From == "" {
		return goerrors.New("invalid mailgun configuration", goerrors.CategoryBadInput)
	}
	return nil
}
