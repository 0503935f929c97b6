// Package auth resolves the calling user from a bearer JWT, enforces
// per-caller rate limits, and supplies the default document visibility
// check used as the search permission filter.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/errors"
)

// claims accepts the caller either as the registered subject or as a
// user_id claim.
type claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 caller tokens.
type Tokens struct {
	secret []byte
}

func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret)}
}

// Issue mints a token whose subject is callerID. ttl <= 0 means no expiry.
func (t *Tokens) Issue(callerID string, ttl time.Duration) (string, error) {
	if callerID == "" {
		return "", fmt.Errorf("%w: caller id is required", apperrors.ErrInvalidInput)
	}
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  callerID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
}

// CallerID verifies raw and returns the caller it names.
func (t *Tokens) CallerID(raw string) (string, error) {
	token, err := jwt.ParseWithClaims(raw, &claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: token expired", apperrors.ErrUnauthorized)
		}
		return "", fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: invalid token claims", apperrors.ErrUnauthorized)
	}
	id := c.Subject
	if id == "" {
		id = c.UserID
	}
	if id == "" {
		return "", fmt.Errorf("%w: token names no caller", apperrors.ErrUnauthorized)
	}
	return id, nil
}
