package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kalambet/tutord/internal/auth"
)

type ctxKey int

const userIDKey ctxKey = iota

// TokenResolver maps a bearer token to the user it was issued to.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// BearerAuth rejects requests without a live bearer token and stores the
// resolved user ID in the request context.
func BearerAuth(resolver TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			userID, err := resolver.Resolve(r.Context(), token)
			if errors.Is(err, auth.ErrInvalidToken) {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			if err != nil {
				slog.Error("resolving bearer token", "error", err)
				httpError(w, http.StatusInternalServerError, "api_error", "could not verify token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
		})
	}
}

// AdminKey guards operator endpoints with the X-Admin-Key header. An empty
// configured key locks the endpoints entirely.
func AdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Admin-Key")
			if key == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserID returns the authenticated user ID stored by BearerAuth.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}
