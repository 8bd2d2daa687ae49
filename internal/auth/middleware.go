package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"

	"ms-attendance/internal/logger"
	"ms-attendance/internal/utils"
)

type contextKey string

const usernameKey contextKey = "username"

// Middleware rejects requests without a valid session cookie.
func Middleware(sessions *Sessions, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CookieName)
			if err != nil {
				_ = utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing session"))
				return
			}

			username, err := sessions.ParseToken(cookie.Value)
			if err != nil {
				log.LogSecurity("SESSION_REJECTED", fmt.Sprintf("Rejected session for %s %s: %v", r.Method, r.URL.Path, err))
				_ = utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "invalid session"))
				return
			}

			ctx := context.WithValue(r.Context(), usernameKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Username returns the operator authenticated by Middleware.
func Username(ctx context.Context) string {
	if u, ok := ctx.Value(usernameKey).(string); ok {
		return u
	}
	return ""
}

// RequireSecret guards maintenance endpoints with a static bearer secret.
// An unset secret disables the endpoint with a 500.
func RequireSecret(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				_ = utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("MIGRATION_SECRET not configured", ""))
				return
			}

			token, err := ExtractTokenFromRequest(r)
			if err != nil || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				log.LogSecurity("SECRET_REJECTED", fmt.Sprintf("Rejected maintenance call %s %s", r.Method, r.URL.Path))
				_ = utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", ""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
