// Package token reads expiry metadata out of opaque credentials.
//
// The session core treats credentials as opaque strings issued by the
// backend. When a credential happens to be a JWT, its exp claim is a cheap
// local signal that the session is already dead, so the store can report
// IsAuthenticated=false without waiting for the next backend round-trip.
//
// Claims are parsed WITHOUT signature verification. The backend remains the
// sole authority on validity; this package must never be used to accept a
// credential, only to reject one early.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var parser = jwt.NewParser(jwt.WithoutClaimsValidation())

// ExpiresAt returns the exp claim of a JWT-shaped credential. The second
// return is false when the credential is not a parseable JWT or carries no
// exp claim; such credentials are never known-expired.
func ExpiresAt(credential string) (time.Time, bool) {
	if credential == "" {
		return time.Time{}, false
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(credential, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether the credential is known-expired at now, with
// leeway tolerated in the credential's favor. Opaque (non-JWT) credentials
// and JWTs without exp report false.
func Expired(credential string, now time.Time, leeway time.Duration) bool {
	exp, ok := ExpiresAt(credential)
	if !ok {
		return false
	}
	return now.After(exp.Add(leeway))
}
