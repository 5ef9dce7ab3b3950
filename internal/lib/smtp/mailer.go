package smtp

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/user-management/internal/lib/sl"
)

// Receipt подтверждение приема письма SMTP сервером.
type Receipt struct {
	MessageID string
	Accepted  []string
}

// Mailer отправляет HTML письма через транспорт.
type Mailer struct {
	transport TransportInterface
	log       *slog.Logger
	now       func() time.Time
}

// NewMailer создает Mailer.
func NewMailer(transport TransportInterface, log *slog.Logger) *Mailer {
	return &Mailer{transport: transport, log: log, now: time.Now}
}

// Send отправляет одно письмо на адрес to. Ошибка возвращается, если сервер
// не принял письмо на любом из шагов протокола.
func (m *Mailer) Send(ctx context.Context, to, subject, html string) (Receipt, error) {
	const op = "smtp.Send"
	log := m.log.With(slog.String("op", op), slog.String("to", to))

	if err := ctx.Err(); err != nil {
		return Receipt{}, fmt.Errorf("%s: %w", op, err)
	}

	from := m.transport.GetSMTPUser()
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(from))
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"Date: " + m.now().Format(time.RFC1123Z),
		"Message-ID: " + messageID,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
		"",
		html,
	}, "\r\n")

	client, err := m.transport.Connect(ctx)
	if err != nil {
		log.Error("failed to connect to SMTP server", sl.Err(err))
		return Receipt{}, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(from); err != nil {
		log.Error("failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return Receipt{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := client.Rcpt(to); err != nil {
		log.Error("failed to set RCPT TO", sl.Err(err))
		return Receipt{}, fmt.Errorf("%s: %w", op, err)
	}

	wc, err := client.Data()
	if err != nil {
		log.Error("failed to get Data writer", sl.Err(err))
		return Receipt{}, fmt.Errorf("%s: %w", op, err)
	}
	if _, err = wc.Write([]byte(msg)); err != nil {
		log.Error("failed to write email body", sl.Err(err))
		return Receipt{}, fmt.Errorf("%s: %w", op, err)
	}
	if err = wc.Close(); err != nil {
		log.Error("failed to close Data writer", sl.Err(err))
		return Receipt{}, fmt.Errorf("%s: %w", op, err)
	}
	if err = client.Quit(); err != nil {
		log.Warn("failed to quit SMTP client", sl.Err(err))
	}

	log.Info("email sent successfully", slog.String("message_id", messageID))
	return Receipt{MessageID: messageID, Accepted: []string{to}}, nil
}

func domainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return strings.TrimSuffix(addr[i+1:], ">")
	}
	return "localhost"
}
