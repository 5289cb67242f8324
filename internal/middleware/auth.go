package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/videotube/backend/internal/logging"
)

// Cookie names shared by the session endpoints and the authentication middleware.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

type contextKey string

const userIDKey contextKey = "userID"

// Authenticator resolves an access token to the user it was issued for.
type Authenticator interface {
	Authenticate(accessToken string) (string, error)
}

// RequireAuth rejects requests without a valid access token and stores the caller's id
// in the request context.
func RequireAuth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := logging.FromContext(ctx)

			token := AccessToken(r)
			if token == "" {
				logger.Warn("missing access token")
				writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "unauthorized request")
				return
			}

			userID, err := authn.Authenticate(token)
			if err != nil {
				logger.Warn("access token rejected", "error", err)
				writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid access token")
				return
			}

			ctx = WithUserID(ctx, userID)
			ctx = logging.With(ctx, "user_id", userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth identifies the caller when a valid access token is present and otherwise
// lets the request through anonymously.
func OptionalAuth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := AccessToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := authn.Authenticate(token)
			if err != nil {
				logging.FromContext(r.Context()).Debug("ignoring invalid access token", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// AccessToken extracts the access token from the cookie or the Authorization header.
func AccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		if value := strings.TrimSpace(cookie.Value); value != "" {
			return value
		}
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// WithUserID stores the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user id, or "" for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}
