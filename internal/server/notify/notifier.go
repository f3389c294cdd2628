// Package notify delivers one-time codes and account notices by email.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/walletkeeper/internal/server/models"
)

type Notifier interface {
	SendCode(ctx context.Context, to string, flow models.Flow, code string) error
	SendResetConfirmation(ctx context.Context, to string) error
	SendWelcome(ctx context.Context, to, fullName string) error
}

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

func codeMessage(to string, flow models.Flow, code string) Message {
	var purpose string
	switch flow {
	case models.FlowReset:
		purpose = "reset your password"
	case models.FlowLoginMnemonic:
		purpose = "sign in with your recovery phrase"
	default:
		purpose = "sign in"
	}

	return Message{
		To:      to,
		Subject: "Your verification code",
		Body: fmt.Sprintf("Use the code %s to %s.\r\n\r\nIf you did not request this, ignore this email.\r\n",
			code, purpose),
	}
}

func resetConfirmationMessage(to string) Message {
	return Message{
		To:      to,
		Subject: "Your password was changed",
		Body:    "The password for your wallet account was just changed.\r\nIf this wasn't you, contact support immediately.\r\n",
	}
}

func welcomeMessage(to, fullName string) Message {
	return Message{
		To:      to,
		Subject: "Welcome to walletkeeper",
		Body:    fmt.Sprintf("Hi %s,\r\n\r\nYour wallet is ready.\r\n", fullName),
	}
}

// WriterNotifier prints messages to w. Meant for local development where
// no mail relay is available.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

func (n *WriterNotifier) write(m Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := fmt.Fprintf(n.w, "To: %s\nSubject: %s\n\n%s\n", m.To, m.Subject, m.Body)
	return err
}

func (n *WriterNotifier) SendCode(_ context.Context, to string, flow models.Flow, code string) error {
	return n.write(codeMessage(to, flow, code))
}

func (n *WriterNotifier) SendResetConfirmation(_ context.Context, to string) error {
	return n.write(resetConfirmationMessage(to))
}

func (n *WriterNotifier) SendWelcome(_ context.Context, to, fullName string) error {
	return n.write(welcomeMessage(to, fullName))
}
