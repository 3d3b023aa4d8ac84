// Package mailer abstracts the email-sending capability consumed by the
// settlement pipeline. Delivery transport is a collaborator, not a concern
// of the pipeline: a send failure is reported, never propagated into
// payment state.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"settlement-service/internal/util"
)

type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type Result struct {
	MessageID string
}

type Mailer interface {
	Send(ctx context.Context, msg *Message) (*Result, error)
}

// SMTPMailer delivers mail over plain SMTP with AUTH.
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
}

func NewSMTP(host string, port int, username, password, from string) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
		auth: auth,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg *Message) (*Result, error) {
	messageID := uuid.New().String()

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Message-ID: <%s>\r\n", messageID)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.HTML != "" {
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.HTML)
	} else {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.Text)
	}

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{msg.To}, []byte(b.String())); err != nil {
		return nil, fmt.Errorf("smtp send to %s failed: %w", msg.To, err)
	}

	return &Result{MessageID: messageID}, nil
}

// LogMailer logs instead of delivering. Used in development and when no
// SMTP host is configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer() *LogMailer {
	return &LogMailer{logger: util.NamedLogger("mailer")}
}

func (m *LogMailer) Send(ctx context.Context, msg *Message) (*Result, error) {
	m.logger.Info("Email delivery skipped (no SMTP configured)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return &Result{MessageID: uuid.New().String()}, nil
}
