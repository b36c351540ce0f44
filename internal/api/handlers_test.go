package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomdigest/internal/types"
)

type fakePushers struct {
	deleted [][3]string
	err     error
}

func (f *fakePushers) Delete(ctx context.Context, userID, appID, pushkey string) error {
	f.deleted = append(f.deleted, [3]string{userID, appID, pushkey})
	return f.err
}

type fakeVerifier struct {
	userID string
	err    error
	tokens []string
}

func (f *fakeVerifier) VerifyUnsubscribe(token string) (string, error) {
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return "", f.err
	}
	return f.userID, nil
}

type noopLogger struct{}

func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) With(args ...any) types.Logger { return noopLogger{} }

func newTestServer(t *testing.T, pushers *fakePushers, verifier *fakeVerifier) *Server {
	t.Helper()
	s, err := NewServer(pushers, verifier, noopLogger{})
	require.NoError(t, err)
	return s
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIErrorResponse {
	t.Helper()
	var body APIErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestNewServer_NilDependencies(t *testing.T) {
	_, err := NewServer(nil, &fakeVerifier{}, noopLogger{})
	assert.Error(t, err)

	_, err = NewServer(&fakePushers{}, nil, noopLogger{})
	assert.Error(t, err)

	_, err = NewServer(&fakePushers{}, &fakeVerifier{}, nil)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakePushers{}, &fakeVerifier{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRemovePusher_Success(t *testing.T) {
	pushers := &fakePushers{}
	verifier := &fakeVerifier{userID: "@alice:hs"}
	s := newTestServer(t, pushers, verifier)

	req := httptest.NewRequest(http.MethodGet,
		"/pushers/remove?access_token=tok&app_id=m.email&pushkey=alice%40example.com", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "unsubscribed")

	require.Len(t, verifier.tokens, 1)
	assert.Equal(t, "tok", verifier.tokens[0])

	require.Len(t, pushers.deleted, 1)
	assert.Equal(t, [3]string{"@alice:hs", "m.email", "alice@example.com"}, pushers.deleted[0])
}

func TestRemovePusher_PostAlsoAccepted(t *testing.T) {
	pushers := &fakePushers{}
	s := newTestServer(t, pushers, &fakeVerifier{userID: "@alice:hs"})

	req := httptest.NewRequest(http.MethodPost,
		"/pushers/remove?access_token=tok&app_id=m.email&pushkey=k", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, pushers.deleted, 1)
}

func TestRemovePusher_MissingParams(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"no token", "app_id=m.email&pushkey=k"},
		{"no app id", "access_token=tok&pushkey=k"},
		{"no pushkey", "access_token=tok&app_id=m.email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pushers := &fakePushers{}
			s := newTestServer(t, pushers, &fakeVerifier{userID: "@alice:hs"})

			req := httptest.NewRequest(http.MethodGet, "/pushers/remove?"+tt.query, nil)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, types.ErrCodeValidationMissingParam, decodeError(t, rec).Code)
			assert.Empty(t, pushers.deleted)
		})
	}
}

func TestRemovePusher_InvalidToken(t *testing.T) {
	pushers := &fakePushers{}
	verifier := &fakeVerifier{
		err: types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid unsubscribe token", nil),
	}
	s := newTestServer(t, pushers, verifier)

	req := httptest.NewRequest(http.MethodGet,
		"/pushers/remove?access_token=bad&app_id=m.email&pushkey=k", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, types.ErrCodeAuthTokenInvalid, decodeError(t, rec).Code)
	assert.Empty(t, pushers.deleted)
}

func TestRemovePusher_AlreadyGoneStillSucceeds(t *testing.T) {
	pushers := &fakePushers{
		err: types.NewAppError(types.ErrCodeNotFoundPusher, "pusher not found", nil),
	}
	s := newTestServer(t, pushers, &fakeVerifier{userID: "@alice:hs"})

	req := httptest.NewRequest(http.MethodGet,
		"/pushers/remove?access_token=tok&app_id=m.email&pushkey=k", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsubscribed")
}

func TestRemovePusher_StoreFailure(t *testing.T) {
	pushers := &fakePushers{
		err: types.NewAppError(types.ErrCodeInternalDB, "failed to delete pusher", nil),
	}
	s := newTestServer(t, pushers, &fakeVerifier{userID: "@alice:hs"})

	req := httptest.NewRequest(http.MethodGet,
		"/pushers/remove?access_token=tok&app_id=m.email&pushkey=k", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, types.ErrCodeInternalDB, decodeError(t, rec).Code)
}
