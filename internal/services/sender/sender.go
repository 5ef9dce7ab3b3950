// Package services доставляет письма обратной связи из очереди.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"

	"github.com/magabrotheeeer/user-management/internal/lib/sl"
	"github.com/magabrotheeeer/user-management/internal/lib/smtp"
	"github.com/magabrotheeeer/user-management/internal/models"
)

// Mailer отправляет письма.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) (smtp.Receipt, error)
}

// SenderService пересылает обратную связь на служебный адрес.
type SenderService struct {
	mailer Mailer
	inbox  string
	log    *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(mailer Mailer, inbox string, log *slog.Logger) *SenderService {
	return &SenderService{
		mailer: mailer,
		inbox:  inbox,
		log:    log,
	}
}

// SendFeedback обрабатывает одно сообщение из очереди mail.feedback.
func (s *SenderService) SendFeedback(ctx context.Context, body []byte) error {
	const op = "services.sender.SendFeedback"

	var message models.Feedback
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	subject := fmt.Sprintf("Feedback from %s", message.Name)
	bodyHTML := fmt.Sprintf("<p><b>From:</b> %s &lt;%s&gt;</p><p>%s</p>",
		html.EscapeString(message.Name), html.EscapeString(message.Email), html.EscapeString(message.Text))

	receipt, err := s.mailer.Send(ctx, s.inbox, subject, bodyHTML)
	if err != nil {
		s.log.Error("failed to send feedback email", slog.String("from", message.Email), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("feedback delivered", slog.String("message_id", receipt.MessageID))
	return nil
}
