package external

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomdigest/internal/types"
)

// mockSESAPI records the last SendEmail input and returns a canned response.
type mockSESAPI struct {
	lastInput *sesv2.SendEmailInput
	err       error
	messageID string
}

func (m *mockSESAPI) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.lastInput = params
	if m.err != nil {
		return nil, m.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String(m.messageID)}, nil
}

func testSendInput() types.SendInput {
	return types.SendInput{
		To:          "me@example.com",
		From:        types.SenderIdentity{Address: "digest@hs.example", Name: "Chatter"},
		Subject:     "[Chatter] You have messages on Chatter...",
		BodyHTML:    "<p>hello</p>",
		BodyText:    "hello",
		ReferenceID: "job-1",
	}
}

func TestSESClient_Send_Success(t *testing.T) {
	api := &mockSESAPI{messageID: "ses-msg-1"}
	client := NewSESClientWithAPI(api, SESClientConfig{ConfigSetName: "digests"})

	msgID, err := client.Send(context.Background(), testSendInput())
	require.NoError(t, err)
	assert.Equal(t, "ses-msg-1", msgID)

	require.NotNil(t, api.lastInput)
	assert.Equal(t, "Chatter <digest@hs.example>", *api.lastInput.FromEmailAddress)
	assert.Equal(t, []string{"me@example.com"}, api.lastInput.Destination.ToAddresses)
	assert.Equal(t, "digests", *api.lastInput.ConfigurationSetName)
	require.Len(t, api.lastInput.EmailTags, 1)
	assert.Equal(t, "job-1", *api.lastInput.EmailTags[0].Value)
}

func TestSESClient_Send_BareFromAddress(t *testing.T) {
	api := &mockSESAPI{messageID: "ses-msg-1"}
	client := NewSESClientWithAPI(api, SESClientConfig{})

	input := testSendInput()
	input.From.Name = ""
	_, err := client.Send(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "digest@hs.example", *api.lastInput.FromEmailAddress)
}

func TestSESClient_Send_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		sesErr   error
		wantCode types.ErrorCode
	}{
		{"rejected", &sestypes.MessageRejected{}, types.ErrCodeEmailBlocked},
		{"rate limited", &sestypes.TooManyRequestsException{}, types.ErrCodeUpstreamRateLimited},
		{"sending paused", &sestypes.SendingPausedException{}, types.ErrCodeUpstreamUnavailable},
		{"other", errors.New("socket closed"), types.ErrCodeUpstreamEmailProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockSESAPI{err: tt.sesErr}
			client := NewSESClientWithAPI(api, SESClientConfig{})

			_, err := client.Send(context.Background(), testSendInput())
			require.Error(t, err)

			var appErr *types.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantCode, appErr.Code)
		})
	}
}

func TestSESClient_Send_RetryClassification(t *testing.T) {
	api := &mockSESAPI{err: &sestypes.MessageRejected{}}
	client := NewSESClientWithAPI(api, SESClientConfig{})

	_, err := client.Send(context.Background(), testSendInput())
	require.Error(t, err)
	assert.False(t, types.Retryable(err), "a rejected recipient must not be retried")

	api.err = &sestypes.TooManyRequestsException{}
	_, err = client.Send(context.Background(), testSendInput())
	require.Error(t, err)
	assert.True(t, types.Retryable(err))
}
