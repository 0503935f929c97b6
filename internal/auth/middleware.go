package auth

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/logger"
)

func exempt(path string) bool {
	return strings.HasPrefix(path, "/health") || path == "/metrics"
}

// Authenticate stores the bearer token's caller on the request context.
// Requests without a token continue anonymously and see only public
// documents; a token that fails verification is rejected. A nil Tokens
// disables verification.
func Authenticate(tokens *Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens == nil || exempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				writeError(w, http.StatusUnauthorized, "malformed authorization header")
				return
			}

			callerID, err := tokens.CallerID(raw)
			if err != nil {
				logger.FromContext(r.Context()).Debug("rejected caller token", "error", err)
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			ctx := logger.WithCallerID(r.Context(), callerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimit enforces the limiter per caller. Anonymous requests share a
// bucket per remote address.
func RateLimit(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil || exempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key := logger.CallerID(r.Context())
			if key == "" {
				key = "anon:" + remoteHost(r.RemoteAddr)
			}
			if !l.Allow(key) {
				w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteHost(addr string) string {
	if i := strings.LastIndex(addr, ":"); i > 0 {
		return addr[:i]
	}
	return addr
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
