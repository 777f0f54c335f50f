package mailer

import (
	"context"
	"time"

	identity "github.com/fixcampus/go-identity"
)

// CodeSender adapts a Sender to the identity.CodeSender interface used by
// the challenge manager.
type CodeSender struct {
	Sender Sender
}

// NewCodeSender wraps sender for use with identity.NewChallengeManager.
func NewCodeSender(sender Sender) *CodeSender {
	return &CodeSender{Sender: sender}
}

// Deliver renders the verification email and hands it to the sender.
func (c *CodeSender) Deliver(ctx context.Context, email, name, code string, expiresAt time.Time) error {
	if c == nil || c.Sender == nil {
		return nil
	}
	return c.Sender.Send(ctx, CodeEmail(email, name, code, expiresAt))
}

var _ identity.CodeSender = &CodeSender{}
