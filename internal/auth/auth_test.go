package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/logger"
)

func TestIssueAndVerify(t *testing.T) {
	tokens := NewTokens("secret")

	raw, err := tokens.Issue("alice", time.Hour)
	require.NoError(t, err)

	id, err := tokens.CallerID(raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", id)

	_, err = tokens.Issue("", time.Hour)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestUserIDClaim(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "bob"}).
		SignedString([]byte("secret"))
	require.NoError(t, err)

	id, err := NewTokens("secret").CallerID(raw)
	require.NoError(t, err)
	assert.Equal(t, "bob", id)
}

func TestRejectedTokens(t *testing.T) {
	tokens := NewTokens("secret")

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	forged, err := NewTokens("other").Issue("alice", time.Hour)
	require.NoError(t, err)

	anonymous, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"expired": expired, "forged": forged, "no caller": anonymous, "garbage": "not.a.jwt",
	} {
		_, err := tokens.CallerID(raw)
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized, name)
	}
}

func callerEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(logger.CallerID(r.Context())))
	})
}

func TestAuthenticateMiddleware(t *testing.T) {
	tokens := NewTokens("secret")
	h := Authenticate(tokens)(callerEcho())
	valid, err := tokens.Issue("alice", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		status int
		caller string
	}{
		{"valid token", "/api/v1/search", "Bearer " + valid, http.StatusOK, "alice"},
		{"anonymous", "/api/v1/search", "", http.StatusOK, ""},
		{"bad token", "/api/v1/search", "Bearer nope", http.StatusUnauthorized, ""},
		{"not bearer", "/api/v1/search", "Basic abc", http.StatusUnauthorized, ""},
		{"health exempt", "/health/ready", "Bearer nope", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.caller, rec.Body.String())
			}
		})
	}
}

func TestLimiter(t *testing.T) {
	l := NewLimiter(2, time.Minute)
	defer l.Close()
	now := time.Now()
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("alice"))
	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"))
	assert.True(t, l.Allow("bob"))

	now = now.Add(30 * time.Second)
	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"))

	assert.Nil(t, NewLimiter(0, time.Minute))
}

func TestRateLimitMiddleware(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	defer l.Close()
	h := RateLimit(l)(callerEcho())

	send := func(caller string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
		if caller != "" {
			req = req.WithContext(logger.WithCallerID(req.Context(), caller))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("alice"))
	assert.Equal(t, http.StatusTooManyRequests, send("alice"))
	assert.Equal(t, http.StatusOK, send("bob"))
	assert.Equal(t, http.StatusOK, send(""))
	assert.Equal(t, http.StatusTooManyRequests, send(""))
}

func TestVisibilityFilter(t *testing.T) {
	doc := document.Document{ID: "d", OwnerID: "alice", Visibility: document.VisibilityShared, AllowedUsers: []string{"carol"}}
	for caller, want := range map[string]bool{"alice": true, "carol": true, "bob": false, "": false} {
		ok, err := VisibilityFilter.Allow(context.Background(), doc, caller)
		require.NoError(t, err)
		assert.Equal(t, want, ok, caller)
	}
}
