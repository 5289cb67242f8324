package handlers

import (
	"net/http"
	"time"

	"github.com/videotube/backend/internal/middleware"
	"github.com/videotube/backend/internal/models"
)

// CookieConfig controls how session cookies are written.
type CookieConfig struct {
	Secure bool
}

func (c CookieConfig) setSession(w http.ResponseWriter, tokens models.SessionTokens) {
	http.SetCookie(w, c.cookie(middleware.AccessTokenCookie, tokens.AccessToken, tokens.AccessExpiresAt))
	http.SetCookie(w, c.cookie(middleware.RefreshTokenCookie, tokens.RefreshToken, tokens.RefreshExpiresAt))
}

func (c CookieConfig) clearSession(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, middleware.RefreshTokenCookie} {
		cookie := c.cookie(name, "", time.Unix(0, 0))
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
	}
}

func (c CookieConfig) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
