package http

import (
	"errors"
	"net/http"

	"github.com/finlit/platform/internal/accounts/service"
	"github.com/finlit/platform/pkg/authsdk"
	"github.com/finlit/platform/pkg/httpx"
	"github.com/finlit/platform/pkg/slogx"
)

// writeError maps a service error to its API error body. Unknown errors are
// logged and reported as server_error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		stepErr     *service.StepError
		cooldownErr *service.CooldownError
		validErr    *service.ValidationError
	)

	switch {
	case errors.Is(err, httpx.ErrBadJSON):
		authsdk.ErrInvalidRequest.WriteError(w)
	case errors.As(err, &validErr):
		authsdk.NewValidationError(validErr.Details).WriteError(w)
	case errors.As(err, &stepErr):
		authsdk.NewInvalidStepError(string(stepErr.NextStep)).WriteError(w)
	case errors.As(err, &cooldownErr):
		authsdk.NewCooldownError(cooldownErr.RetryAfter).WriteError(w)
	case errors.Is(err, service.ErrInvalidCredentials):
		authsdk.ErrInvalidCredentials.WriteError(w)
	case errors.Is(err, service.ErrOTPMismatch):
		authsdk.ErrOTPMismatch.WriteError(w)
	case errors.Is(err, service.ErrOTPExpired):
		authsdk.ErrOTPExpired.WriteError(w)
	case errors.Is(err, service.ErrOTPExhausted):
		authsdk.ErrOTPExhausted.WriteError(w)
	case errors.Is(err, service.ErrOTPNotFound):
		authsdk.ErrOTPNotFound.WriteError(w)
	case errors.Is(err, service.ErrForbidden):
		authsdk.ErrForbidden.WriteError(w)
	case errors.Is(err, service.ErrSessionMissing),
		errors.Is(err, service.ErrSessionInvalid),
		errors.Is(err, service.ErrSessionExpired):
		authsdk.ErrInvalidToken.WriteError(w)
	case errors.Is(err, service.ErrDeliveryFailed):
		authsdk.ErrDeliveryFailed.WriteError(w)
	case errors.Is(err, service.ErrNotFound):
		authsdk.ErrNotFound.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}
