package tokens

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomdigest/internal/types"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	i, err := NewIssuer(types.SecretString("test-secret"), "hs.example", fixedClock{now: time.Unix(1700000000, 0)})
	require.NoError(t, err)
	return i
}

func TestNewIssuer_EmptySecretRejected(t *testing.T) {
	_, err := NewIssuer(types.SecretString(""), "hs.example", nil)
	require.Error(t, err)
}

func TestUnsubscribeToken_RoundTrip(t *testing.T) {
	i := newTestIssuer(t)

	token, err := i.UnsubscribeToken("@me:hs")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := i.VerifyUnsubscribe(token)
	require.NoError(t, err)
	assert.Equal(t, "@me:hs", userID)
}

func TestVerifyUnsubscribe_WrongSecret(t *testing.T) {
	i := newTestIssuer(t)
	token, err := i.UnsubscribeToken("@me:hs")
	require.NoError(t, err)

	other, err := NewIssuer(types.SecretString("different-secret"), "hs.example", fixedClock{now: time.Unix(1700000000, 0)})
	require.NoError(t, err)

	_, err = other.VerifyUnsubscribe(token)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeAuthTokenInvalid, appErr.Code)
}

func TestVerifyUnsubscribe_WrongIssuer(t *testing.T) {
	i := newTestIssuer(t)
	token, err := i.UnsubscribeToken("@me:hs")
	require.NoError(t, err)

	other, err := NewIssuer(types.SecretString("test-secret"), "other.example", fixedClock{now: time.Unix(1700000000, 0)})
	require.NoError(t, err)

	_, err = other.VerifyUnsubscribe(token)
	require.Error(t, err)
}

func TestVerifyUnsubscribe_Garbage(t *testing.T) {
	i := newTestIssuer(t)

	_, err := i.VerifyUnsubscribe("not-a-token")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeAuthTokenInvalid, appErr.Code)
}

func TestVerifyUnsubscribe_RejectsUnsignedAlgorithm(t *testing.T) {
	i := newTestIssuer(t)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject: "@me:hs",
		Issuer:  "hs.example",
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = i.VerifyUnsubscribe(token)
	require.Error(t, err)
}

func TestVerifyUnsubscribe_ScopeMismatch(t *testing.T) {
	i := newTestIssuer(t)

	wrongScope := jwt.NewWithClaims(jwt.SigningMethodHS256, unsubscribeClaims{
		Scope: "something_else",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "@me:hs",
			Issuer:  "hs.example",
		},
	})
	token, err := wrongScope.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = i.VerifyUnsubscribe(token)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeAuthTokenInvalid, appErr.Code)
}

func TestUnsubscribeToken_NeverExpires(t *testing.T) {
	i := newTestIssuer(t)
	token, err := i.UnsubscribeToken("@me:hs")
	require.NoError(t, err)

	// Verify years later.
	later, err := NewIssuer(types.SecretString("test-secret"), "hs.example", fixedClock{now: time.Unix(1800000000, 0)})
	require.NoError(t, err)

	userID, err := later.VerifyUnsubscribe(token)
	require.NoError(t, err)
	assert.Equal(t, "@me:hs", userID)
}
