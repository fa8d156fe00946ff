package email

import "context"

// Sender delivers the transactional emails of the staff dashboard.
type Sender interface {
	SendClientAssignedEmail(ctx context.Context, toEmail, csmName, clientName, clientURL string) error
}

// NoopSender drops every email. Used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendClientAssignedEmail(context.Context, string, string, string, string) error {
	return nil
}

var (
	_ Sender = NoopSender{}
	_ Sender = (*SMTPSender)(nil)
)
