package email

import "context"

// AlertSender delivers operational alert email to one or more recipients.
type AlertSender interface {
	Send(ctx context.Context, to []string, subject, body string) error
}
