package mailer

import (
	"context"
	"log"
)

// LogSender writes messages to the process log instead of delivering them.
// It is the default provider so local setups work without credentials.
type LogSender struct{}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	log.Printf("mailer: to=%s subject=%q\n%s", msg.To, msg.Subject, msg.Body)
	return nil
}
