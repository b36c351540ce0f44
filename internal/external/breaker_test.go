package external

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomdigest/internal/types"
)

// flakyProvider fails every call with a fixed error until cleared.
type flakyProvider struct {
	err   error
	calls int
}

func (f *flakyProvider) Send(ctx context.Context, input types.SendInput) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "msg-ok", nil
}

func TestBreakerProvider_PassesThroughSuccess(t *testing.T) {
	p := &flakyProvider{}
	b := NewBreakerProvider("test", p)

	msgID, err := b.Send(context.Background(), types.SendInput{})
	require.NoError(t, err)
	assert.Equal(t, "msg-ok", msgID)
}

func TestBreakerProvider_OpensAfterConsecutiveFailures(t *testing.T) {
	p := &flakyProvider{err: fmt.Errorf("provider down")}
	b := NewBreakerProvider("test", p)

	for i := 0; i < 6; i++ {
		_, err := b.Send(context.Background(), types.SendInput{})
		require.Error(t, err)
	}
	callsBefore := p.calls

	_, err := b.Send(context.Background(), types.SendInput{})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, appErr.Code)
	assert.Equal(t, callsBefore, p.calls, "open circuit must not reach the provider")
}

func TestBreakerProvider_BlockedRecipientDoesNotTrip(t *testing.T) {
	p := &flakyProvider{err: types.NewAppError(types.ErrCodeEmailBlocked, "suppressed address", nil)}
	b := NewBreakerProvider("test", p)

	for i := 0; i < 20; i++ {
		_, err := b.Send(context.Background(), types.SendInput{})
		require.Error(t, err)

		var appErr *types.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, types.ErrCodeEmailBlocked, appErr.Code, "circuit must stay closed for per-recipient rejections")
	}
	assert.Equal(t, 20, p.calls)
}
