// Package notify delivers outbound storefront email (welcome, verification,
// one-time login codes).
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kjstillabower/storefront-service/internal/observability"
)

// ErrNoRecipient is returned when Send is called with an empty address.
var ErrNoRecipient = errors.New("recipient address is required")

const (
	BackendLog  = "log"
	BackendSMTP = "smtp"
)

// LogSender writes messages to the log instead of delivering them. Used in dev.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, body string) error {
	if strings.TrimSpace(to) == "" {
		observability.EmailsSentTotal.WithLabelValues(BackendLog, "error").Inc()
		return ErrNoRecipient
	}
	s.logger.Info("email sent", zap.String("to", to), zap.Int("body_bytes", len(body)))
	observability.EmailsSentTotal.WithLabelValues(BackendLog, "success").Inc()
	return nil
}

// sendMailFunc matches smtp.SendMail.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers plain-text mail through an SMTP relay.
type SMTPSender struct {
	addr     string
	from     string
	auth     smtp.Auth
	sendMail sendMailFunc
}

// NewSMTPSender creates an SMTPSender. auth may be nil for unauthenticated relays.
func NewSMTPSender(addr, from string, auth smtp.Auth) (*SMTPSender, error) {
	if addr == "" {
		return nil, errors.New("smtp address is required")
	}
	if from == "" {
		return nil, errors.New("smtp from address is required")
	}
	return &SMTPSender{addr: addr, from: from, auth: auth, sendMail: smtp.SendMail}, nil
}

// Send delivers body to a single recipient. smtp.SendMail does not take a
// context, so cancellation is only checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, to, body string) error {
	if strings.TrimSpace(to) == "" {
		observability.EmailsSentTotal.WithLabelValues(BackendSMTP, "error").Inc()
		return ErrNoRecipient
	}
	if strings.ContainsAny(to, "\r\n") {
		observability.EmailsSentTotal.WithLabelValues(BackendSMTP, "error").Inc()
		return fmt.Errorf("invalid recipient %q", to)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.sendMail(s.addr, s.auth, s.from, []string{to}, buildMessage(s.from, to, body)); err != nil {
		observability.EmailsSentTotal.WithLabelValues(BackendSMTP, "error").Inc()
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	observability.EmailsSentTotal.WithLabelValues(BackendSMTP, "success").Inc()
	return nil
}

func buildMessage(from, to, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subjectFor(body) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

const maxSubjectBytes = 78

// subjectFor uses the first line of body, capped at 78 bytes without
// splitting a UTF-8 sequence.
func subjectFor(body string) string {
	line, _, _ := strings.Cut(body, "\n")
	line = strings.TrimSpace(line)
	if len(line) > maxSubjectBytes {
		cut := maxSubjectBytes
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		line = line[:cut]
	}
	if line == "" {
		return "Storefront"
	}
	return line
}
