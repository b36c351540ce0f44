// Package external contains clients for the third-party services the mailer
// depends on. Every provider is wrapped behind a small interface so the rest
// of the codebase never touches an SDK type directly.
package external

import (
	"context"

	"roomdigest/internal/types"
)

// EmailProvider abstracts the email delivery service (AWS SES).
// Send transmits one pre-rendered email and returns the provider's message ID.
type EmailProvider interface {
	Send(ctx context.Context, input types.SendInput) (string, error)
}
