package authsdk_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/finlit/platform/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestSignupRoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/signup/initiate", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req authsdk.SignupInitiateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "Ada", req.FullName)
		require.Equal(t, "ada@example.com", req.Email)

		_ = json.NewEncoder(w).Encode(authsdk.NextStepResponse{NextStep: authsdk.StepEmailOTP})
	}))
	defer srv.Close()

	client := authsdk.NewSDKClient(srv.URL + "/")
	step, err := client.SignupInitiate(context.Background(), "Ada", "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, authsdk.StepEmailOTP, step)
}

func TestSignupStatusEscapesEmail(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "a+b@example.com", r.URL.Query().Get("email"))
		_ = json.NewEncoder(w).Encode(authsdk.NextStepResponse{NextStep: authsdk.StepLogin})
	}))
	defer srv.Close()

	step, err := authsdk.NewSDKClient(srv.URL).SignupStatus(context.Background(), "a+b@example.com")
	require.NoError(t, err)
	require.Equal(t, authsdk.StepLogin, step)
}

func TestErrorParsing(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		write func(w http.ResponseWriter)
		check func(t *testing.T, err error)
	}{
		{
			name:  "otp mismatch",
			write: func(w http.ResponseWriter) { authsdk.ErrOTPMismatch.WriteError(w) },
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, authsdk.ErrOTPMismatch)
				require.NotErrorIs(t, err, authsdk.ErrOTPExpired)
			},
		},
		{
			name:  "invalid step carries next step",
			write: func(w http.ResponseWriter) { authsdk.NewInvalidStepError(authsdk.StepMobilePassword).WriteError(w) },
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, authsdk.ErrInvalidStep)
				var apiErr *authsdk.APIError
				require.True(t, errors.As(err, &apiErr))
				require.Equal(t, http.StatusConflict, apiErr.StatusCode)
				require.Equal(t, authsdk.StepMobilePassword, apiErr.NextStep)
			},
		},
		{
			name:  "cooldown carries retry after",
			write: func(w http.ResponseWriter) { authsdk.NewCooldownError(1500 * time.Millisecond).WriteError(w) },
			check: func(t *testing.T, err error) {
				var apiErr *authsdk.APIError
				require.True(t, errors.As(err, &apiErr))
				require.Equal(t, authsdk.ErrorCodeCooldown, apiErr.Code)
				require.Equal(t, 2, apiErr.RetryAfter)
			},
		},
		{
			name: "non-json body",
			write: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte("upstream down"))
			},
			check: func(t *testing.T, err error) {
				var apiErr *authsdk.APIError
				require.True(t, errors.As(err, &apiErr))
				require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
				require.Equal(t, authsdk.ErrorCodeServerError, apiErr.Code)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tc.write(w)
			}))
			defer srv.Close()

			_, err := authsdk.NewSDKClient(srv.URL).VerifyEmail(context.Background(), "a@x.io", "123456")
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestCookieJarCarriesSession(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/login/verify", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "userToken", Value: "tok", Path: "/", HttpOnly: true})
		_ = json.NewEncoder(w).Encode(authsdk.SessionResponse{Token: "tok", Role: "user"})
	})
	mux.HandleFunc("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("userToken")
		if err != nil || c.Value != "tok" {
			authsdk.ErrInvalidToken.WriteError(w)
			return
		}
		_ = json.NewEncoder(w).Encode(authsdk.Identity{ID: "u1", Email: "a@x.io"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := authsdk.NewSDKClient(srv.URL)
	ctx := context.Background()

	_, err := client.Me(ctx, "")
	require.ErrorIs(t, err, authsdk.ErrInvalidToken)

	sess, err := client.LoginVerify(ctx, "a@x.io", "123456")
	require.NoError(t, err)
	require.Equal(t, "tok", sess.Token)

	me, err := client.Me(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "u1", me.ID)
}

func TestAdminCallsSendBearer(t *testing.T) {
	t.Parallel()

	var gotAuth, gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := authsdk.NewSDKClient(srv.URL).DeleteUser(context.Background(), "admin-tok", "01ABC")
	require.NoError(t, err)
	require.Equal(t, "Bearer admin-tok", gotAuth)
	require.Equal(t, "/v1/admin/users/01ABC", gotPath)
	require.Equal(t, http.MethodDelete, gotMethod)
}
