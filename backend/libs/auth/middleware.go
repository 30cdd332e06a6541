package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

type contextKey string

const sessionKey contextKey = "authSession"

// ImpersonateHeader carries the target tenant for privileged callers.
const ImpersonateHeader = "X-Impersonate-Tenant-ID"

// SessionResolver is the subset of Resolver the middleware needs.
type SessionResolver interface {
	BeginSession(credential, impersonate string) (Session, error)
}

// Middleware resolves the bearer token and impersonation header once per request
// and stores the resulting Session in the request context.
func Middleware(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}

			session, err := resolver.BeginSession(credential, r.Header.Get(ImpersonateHeader))
			if err != nil {
				status, msg := StatusFor(err)
				writeAuthError(w, status, msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// StatusFor maps resolver errors to HTTP status and client message.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	default:
		return http.StatusUnauthorized, "invalid token"
	}
}

// WithSession stores session in context.
func WithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFromContext retrieves the session stored by Middleware.
func SessionFromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(sessionKey).(Session)
	return session, ok
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
