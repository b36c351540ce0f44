package mailer

import (
	"context"

	"roomdigest/internal/external"
	"roomdigest/internal/types"
)

// Mailer renders and transmits emails. It owns nothing about digest
// aggregation; it takes a finished view model and delivers it.
type Mailer struct {
	renderer *Renderer
	provider external.EmailProvider
	logger   types.Logger
}

// NewMailer creates a Mailer over a renderer and a delivery provider.
func NewMailer(renderer *Renderer, provider external.EmailProvider, logger types.Logger) *Mailer {
	return &Mailer{
		renderer: renderer,
		provider: provider,
		logger:   logger,
	}
}

// SendDigest renders the digest and transmits it to the job's recipient.
// Returns the provider's message ID on success.
func (m *Mailer) SendDigest(ctx context.Context, job *types.DigestJob, mail *types.DigestMail) (string, error) {
	rendered, err := m.renderer.RenderDigest(mail)
	if err != nil {
		return "", err
	}

	msgID, err := m.provider.Send(ctx, types.SendInput{
		To:          job.EmailAddress,
		From:        m.renderer.Sender(),
		Subject:     rendered.Subject,
		BodyHTML:    rendered.BodyHTML,
		BodyText:    rendered.BodyText,
		ReferenceID: job.JobID,
	})
	if err != nil {
		return "", err
	}

	m.logger.Info("digest email sent",
		"job_id", job.JobID,
		"user_id", job.UserID,
		"message_id", msgID,
		"rooms", len(mail.Rooms))
	return msgID, nil
}

// SendAccountEmail renders and transmits one of the account emails. The
// caller supplies the confirmation link, already carrying its submit token.
func (m *Mailer) SendAccountEmail(ctx context.Context, kind AccountEmailKind, to, appName, link, referenceID string) (string, error) {
	rendered, err := m.renderer.RenderAccountEmail(kind, appName, link)
	if err != nil {
		return "", err
	}

	msgID, err := m.provider.Send(ctx, types.SendInput{
		To:          to,
		From:        m.renderer.Sender(),
		Subject:     rendered.Subject,
		BodyHTML:    rendered.BodyHTML,
		BodyText:    rendered.BodyText,
		ReferenceID: referenceID,
	})
	if err != nil {
		return "", err
	}

	m.logger.Info("account email sent",
		"kind", string(kind),
		"message_id", msgID)
	return msgID, nil
}
