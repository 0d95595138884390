package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/finlit/platform/pkg/jwtx"
	"github.com/finlit/platform/pkg/slogx"
)

// TokenSource locates a session token on a request. Sources are tried in
// the order they are given to Authenticate; the first non-empty token wins.
type TokenSource struct {
	Name    string
	Extract func(*http.Request) string
}

// CookieSource reads the named cookie.
func CookieSource(name string) TokenSource {
	return TokenSource{
		Name: "cookie:" + name,
		Extract: func(r *http.Request) string {
			c, err := r.Cookie(name)
			if err != nil {
				return ""
			}
			return c.Value
		},
	}
}

// BearerSource reads "Authorization: Bearer <token>".
func BearerSource() TokenSource {
	return TokenSource{
		Name: "bearer",
		Extract: func(r *http.Request) string {
			auth := r.Header.Get("Authorization")
			if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
				return ""
			}
			return strings.TrimSpace(auth[7:])
		},
	}
}

// ExtractToken returns the first token found and the name of its source.
func ExtractToken(r *http.Request, sources ...TokenSource) (token, source string) {
	for _, s := range sources {
		if t := s.Extract(r); t != "" {
			return t, s.Name
		}
	}
	return "", ""
}

// ClientInfo identifies the client presenting a session.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// ClientInfoFromRequest reads the client IP and User-Agent.
func ClientInfoFromRequest(r *http.Request) ClientInfo {
	return ClientInfo{IP: IPKeyExtractor(r), UserAgent: r.UserAgent()}
}

// SessionVerifier checks a session token against the role a route requires.
// It returns jwtx.ErrRoleMismatch when the token is valid but for another
// role.
type SessionVerifier interface {
	VerifySession(ctx context.Context, token, requiredRole string, client ClientInfo) (jwtx.Claims, error)
}

// Authenticate admits requests carrying a valid session for requiredRole.
// Verified claims are placed on the request context. A valid session for the
// wrong role is answered with 403; every other failure gets the same 401.
func Authenticate(v SessionVerifier, requiredRole string, sources ...TokenSource) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			token, source := ExtractToken(r, sources...)
			if token == "" {
				writeUnauthorized(w)
				return
			}

			claims, err := v.VerifySession(ctx, token, requiredRole, ClientInfoFromRequest(r))
			if err != nil {
				log.Info("session rejected", "source", source, "required_role", requiredRole, "err", err)
				if errors.Is(err, jwtx.ErrRoleMismatch) {
					WriteJSON(w, http.StatusForbidden, map[string]string{
						"error":             "forbidden",
						"error_description": "insufficient role",
					})
					return
				}
				writeUnauthorized(w)
				return
			}

			ctx = contextWithClaims(ctx, claims)
			ctx = slogx.With(ctx, "sub", claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": "authentication required",
	})
}
