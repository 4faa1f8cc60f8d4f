package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// DefaultSkew treats tokens about to expire as already expired.
const DefaultSkew = time.Minute

type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	IssuedAt     time.Time `json:"issued_at"`
	// ExpiresIn is the lifetime in seconds reported by the issuer.
	ExpiresIn int64 `json:"expires_in,omitempty"`
}

// Valid prefers the JWT exp claim; opaque tokens fall back to IssuedAt+ExpiresIn.
func (t *Token) Valid(now time.Time, skew time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	deadline := now.Add(skew)
	if exp, ok := jwtExpiry(t.AccessToken); ok {
		return exp.After(deadline)
	}
	if t.IssuedAt.IsZero() || t.ExpiresIn <= 0 {
		return false
	}
	return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second).After(deadline)
}

// jwtExpiry reads the exp claim without verifying the signature; the issuer is trusted.
func jwtExpiry(raw string) (time.Time, bool) {
	if strings.Count(raw, ".") != 2 {
		return time.Time{}, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
