package http

import (
	"net/http"
	"time"

	"github.com/finlit/platform/internal/accounts/domain"
)

func setSessionCookie(w http.ResponseWriter, tok domain.SessionToken, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     tok.CookieName,
		Value:    tok.Token,
		Path:     "/",
		Expires:  tok.ExpiresAt,
		MaxAge:   max(int(time.Until(tok.ExpiresAt).Seconds()), 1),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookies expires every cookie a session can travel in.
func clearSessionCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{domain.CookieUser, domain.CookieAdmin, domain.CookieGeneric} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
