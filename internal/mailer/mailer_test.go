package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomdigest/internal/types"
)

// recordingProvider captures the SendInput it receives.
type recordingProvider struct {
	last types.SendInput
	err  error
}

func (p *recordingProvider) Send(ctx context.Context, input types.SendInput) (string, error) {
	p.last = input
	if p.err != nil {
		return "", p.err
	}
	return "msg-1", nil
}

type noopLogger struct{}

func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) With(args ...any) types.Logger { return noopLogger{} }

func TestMailer_SendDigest(t *testing.T) {
	provider := &recordingProvider{}
	m := NewMailer(newTestRenderer(t), provider, noopLogger{})

	job := &types.DigestJob{
		JobID:        "job-1",
		AppID:        "m.email",
		UserID:       "@me:hs",
		EmailAddress: "me@example.com",
	}

	msgID, err := m.SendDigest(context.Background(), job, testDigestMail())
	require.NoError(t, err)
	assert.Equal(t, "msg-1", msgID)

	assert.Equal(t, "me@example.com", provider.last.To)
	assert.Equal(t, "digest@hs.example", provider.last.From.Address)
	assert.Equal(t, "Chatter", provider.last.From.Name)
	assert.Equal(t, "job-1", provider.last.ReferenceID)
	assert.Contains(t, provider.last.Subject, "You have a message")
	assert.NotEmpty(t, provider.last.BodyHTML)
	assert.NotEmpty(t, provider.last.BodyText)
}

func TestMailer_SendDigest_ProviderError(t *testing.T) {
	provider := &recordingProvider{err: types.NewAppError(types.ErrCodeUpstreamRateLimited, "slow down", nil)}
	m := NewMailer(newTestRenderer(t), provider, noopLogger{})

	job := &types.DigestJob{JobID: "job-1", EmailAddress: "me@example.com"}
	_, err := m.SendDigest(context.Background(), job, testDigestMail())
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamRateLimited, appErr.Code)
}

func TestMailer_SendAccountEmail(t *testing.T) {
	provider := &recordingProvider{}
	m := NewMailer(newTestRenderer(t), provider, noopLogger{})

	msgID, err := m.SendAccountEmail(context.Background(),
		AccountEmailPasswordReset, "me@example.com", "Chatter",
		"https://hs.example/reset?token=abc", "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", msgID)
	assert.Equal(t, "[Chatter] Password reset", provider.last.Subject)
	assert.Equal(t, "ref-1", provider.last.ReferenceID)
}
