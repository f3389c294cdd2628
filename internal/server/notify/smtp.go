package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/walletkeeper/internal/server/models"
)

// SMTPNotifier sends mail through a relay, upgrading with STARTTLS when the
// server offers it. Every delivery is bounded by the context deadline.
type SMTPNotifier struct {
	host     string
	port     int
	username string
	password string
	from     string

	tlsConfig *tls.Config
}

func NewSMTPNotifier(host string, port int, username, password, from string) *SMTPNotifier {
	return &SMTPNotifier{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		from:      from,
		tlsConfig: &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12},
	}
}

func (n *SMTPNotifier) SendCode(ctx context.Context, to string, flow models.Flow, code string) error {
	return n.send(ctx, codeMessage(to, flow, code))
}

func (n *SMTPNotifier) SendResetConfirmation(ctx context.Context, to string) error {
	return n.send(ctx, resetConfirmationMessage(to))
}

func (n *SMTPNotifier) SendWelcome(ctx context.Context, to, fullName string) error {
	return n.send(ctx, welcomeMessage(to, fullName))
}

func (n *SMTPNotifier) send(ctx context.Context, m Message) error {
	if strings.ContainsAny(m.To, "\r\n") {
		return fmt.Errorf("invalid recipient")
	}

	addr := net.JoinHostPort(n.host, strconv.Itoa(n.port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(time.Minute))
	}

	client, err := smtp.NewClient(conn, n.host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(n.tlsConfig); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if n.username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(smtp.PlainAuth("", n.username, n.password, n.host)); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}

	if err := client.Mail(n.from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(m.To); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(n.render(m)); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}

	return client.Quit()
}

func (n *SMTPNotifier) render(m Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.from)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.Body)
	return []byte(b.String())
}
