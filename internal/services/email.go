package services

import (
	"context"
	"fmt"
	"log/slog"

	"eventregistration/internal/domain"
)

type emailNotifier struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	logger   *slog.Logger
}

// NewEmailNotifier returns a Notifier that renders templates and delivers them with the given Mailer.
func NewEmailNotifier(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, logger *slog.Logger) domain.Notifier {
	return &emailNotifier{mailer: mailer, renderer: renderer, logger: logger}
}

// Send renders templateID with data and mails it to recipient.
func (s *emailNotifier) Send(ctx context.Context, templateID, recipient string, data any) error {
	if data == nil {
		return fmt.Errorf("%s email data is nil", templateID)
	}
	if recipient == "" {
		return fmt.Errorf("%s email has no recipient", templateID)
	}
	subject, htmlBody, textBody, err := s.renderer.Render(templateID, data)
	if err != nil {
		return fmt.Errorf("failed to render %s template: %w", templateID, err)
	}
	if err := s.mailer.Send(ctx, recipient, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send %s email: %w", templateID, err)
	}
	s.logger.InfoContext(ctx, "email sent", "template", templateID, "to", recipient)
	return nil
}
