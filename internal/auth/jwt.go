package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what the dashboard reads from a bearer token without verifying it.
// The monitoring API is the only party that validates signatures.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry earlier than now.
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// ExpiresWithin reports whether the token expires within d of now.
func (i TokenInfo) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !i.ExpiresAt.IsZero() && i.ExpiresAt.Sub(now) <= d
}

// Inspect decodes the registered claims of a JWT. Opaque (non-JWT) tokens return
// ErrOpaqueToken and are still usable as bearer tokens.
func Inspect(tokenString string) (TokenInfo, error) {
	if tokenString == "" {
		return TokenInfo{}, errors.New("auth: empty token")
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return TokenInfo{}, ErrOpaqueToken
	}
	info := TokenInfo{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// ErrOpaqueToken marks a bearer token that is not a JWT.
var ErrOpaqueToken = errors.New("auth: token is not a jwt")
