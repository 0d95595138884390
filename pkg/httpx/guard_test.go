package httpx_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finlit/platform/pkg/httpx"
	"github.com/finlit/platform/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	tokens map[string]jwtx.Claims
	gotIP  string
	gotUA  string
}

func (f *fakeVerifier) VerifySession(_ context.Context, token, role string, c httpx.ClientInfo) (jwtx.Claims, error) {
	f.gotIP, f.gotUA = c.IP, c.UserAgent
	claims, ok := f.tokens[token]
	if !ok {
		return jwtx.Claims{}, jwtx.ErrInvalidSig
	}
	if err := claims.ValidateRole(role); err != nil {
		return jwtx.Claims{}, err
	}
	return claims, nil
}

func newGuarded(t *testing.T, role string) (http.Handler, *fakeVerifier, *jwtx.Claims) {
	t.Helper()
	v := &fakeVerifier{tokens: map[string]jwtx.Claims{
		"user-tok":  {RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}, Role: "user"},
		"admin-tok": {RegisteredClaims: jwt.RegisteredClaims{Subject: "a1"}, Role: "admin"},
	}}
	var seen jwtx.Claims
	h := httpx.Authenticate(v, role,
		httpx.CookieSource("userToken"),
		httpx.CookieSource("session"),
		httpx.BearerSource(),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = httpx.ClaimsFromContext(r.Context())
		sub, _ := httpx.SubjectFromContext(r.Context())
		require.Equal(t, seen.Subject, sub)
		w.WriteHeader(http.StatusNoContent)
	}))
	return h, v, &seen
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestAuthenticate(t *testing.T) {
	t.Run("missing token is 401", func(t *testing.T) {
		h, _, _ := newGuarded(t, "user")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "invalid_token", errorCode(t, rec))
		require.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("unknown token is 401", func(t *testing.T) {
		h, _, _ := newGuarded(t, "user")
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("role cookie admits and injects claims", func(t *testing.T) {
		h, v, seen := newGuarded(t, "user")
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "userToken", Value: "user-tok"})
		req.Header.Set("User-Agent", "test-agent")
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "u1", seen.Subject)
		require.Equal(t, "10.0.0.1", v.gotIP)
		require.Equal(t, "test-agent", v.gotUA)
	})

	t.Run("generic cookie is accepted", func(t *testing.T) {
		h, _, _ := newGuarded(t, "user")
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "session", Value: "user-tok"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("bearer header is accepted", func(t *testing.T) {
		h, _, _ := newGuarded(t, "user")
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "bearer user-tok")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("role cookie takes precedence over bearer", func(t *testing.T) {
		h, _, seen := newGuarded(t, "user")
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "userToken", Value: "user-tok"})
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "u1", seen.Subject)
	})

	t.Run("wrong role is 403", func(t *testing.T) {
		h, _, _ := newGuarded(t, "admin")
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer user-tok")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "forbidden", errorCode(t, rec))
	})
}

func TestExtractToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")

	token, source := httpx.ExtractToken(req, httpx.BearerSource())
	require.Empty(t, token)
	require.Empty(t, source)

	req.AddCookie(&http.Cookie{Name: "adminToken", Value: "t"})
	token, source = httpx.ExtractToken(req, httpx.CookieSource("adminToken"), httpx.BearerSource())
	require.Equal(t, "t", token)
	require.Equal(t, "cookie:adminToken", source)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler(), mw("a"), mw("b"), mw("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"a", "b", "c"}, order)
}
