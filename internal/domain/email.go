package domain

import "context"

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// Notification template ids.
const (
	TemplateCheckPaymentInstructions = "check_payment_instructions"
	TemplateRegistrationConfirmation = "registration_confirmation"
)

// CheckPaymentEmailData holds data for the check payment instructions email.
type CheckPaymentEmailData struct {
	Name             string
	EventName        string
	ConfirmationCode string
	TotalAmount      string
	AmountDue        string
	PayableTo        string
	MailingAddress   string
}

// RegistrationConfirmationEmailData holds data for the confirmation email sent once a card payment completes.
type RegistrationConfirmationEmailData struct {
	Name             string
	EventName        string
	ConfirmationCode string
	AmountPaid       string
	AmountRemaining  string
}

// Notifier sends a templated notification. Callers treat failures as non-fatal.
type Notifier interface {
	Send(ctx context.Context, templateID, recipient string, data any) error
}
