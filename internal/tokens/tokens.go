// Package tokens mints and verifies the signed tokens embedded in digest
// emails. Tokens are HS256 JWTs scoped to a single operation.
package tokens

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"roomdigest/internal/types"
)

// ScopeDeletePusher authorizes exactly one operation: removing the
// recipient's own email pusher.
const ScopeDeletePusher = "delete_pusher"

// unsubscribeClaims is the claim set carried by unsubscribe tokens.
type unsubscribeClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies the mailer's tokens with a shared secret.
type Issuer struct {
	secret []byte
	issuer string
	clock  types.Clock
}

// NewIssuer creates an Issuer. The secret must be non-empty; issuer names the
// deployment and is checked on verification.
func NewIssuer(secret types.SecretString, issuer string, clock types.Clock) (*Issuer, error) {
	if secret.Unmask() == "" {
		return nil, fmt.Errorf("token secret must not be empty")
	}
	if clock == nil {
		clock = types.SystemClock{}
	}
	return &Issuer{
		secret: []byte(secret.Unmask()),
		issuer: issuer,
		clock:  clock,
	}, nil
}

// UnsubscribeToken mints the token embedded in a digest's unsubscribe link.
//
// The token never expires. Digest emails sit unread in inboxes for months and
// an unsubscribe link that stops working is a spam complaint instead; the
// token's scope limits the damage of a leak to removing the pusher.
func (i *Issuer) UnsubscribeToken(userID string) (string, error) {
	claims := unsubscribeClaims{
		Scope: ScopeDeletePusher,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			Issuer:   i.issuer,
			IssuedAt: jwt.NewNumericDate(i.clock.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign unsubscribe token: %w", err)
	}
	return signed, nil
}

// VerifyUnsubscribe validates an unsubscribe token and returns the user ID it
// was minted for. Tokens signed with the wrong key, the wrong algorithm, a
// different issuer, or a different scope are rejected with an auth error.
func (i *Issuer) VerifyUnsubscribe(tokenString string) (string, error) {
	claims := &unsubscribeClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return i.secret, nil
	}, jwt.WithIssuer(i.issuer), jwt.WithTimeFunc(i.clock.Now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return "", types.NewAppError(types.ErrCodeAuthTokenInvalid, "malformed token", err)
		}
		return "", types.NewAppError(types.ErrCodeAuthTokenInvalid, "token verification failed", err)
	}

	if !token.Valid {
		return "", types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid token", nil)
	}
	if claims.Scope != ScopeDeletePusher {
		return "", types.NewAppError(types.ErrCodeAuthTokenInvalid, "token scope mismatch", nil)
	}
	if claims.Subject == "" {
		return "", types.NewAppError(types.ErrCodeAuthTokenInvalid, "token has no subject", nil)
	}

	return claims.Subject, nil
}
