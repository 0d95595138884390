package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/finlit/platform/pkg/httpx"
)

// Error codes carried in the "error" field of every error body.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeValidation         = "validation_error"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeOTPMismatch        = "otp_mismatch"
	ErrorCodeOTPExpired         = "otp_expired"
	ErrorCodeOTPExhausted       = "otp_exhausted"
	ErrorCodeOTPNotFound        = "otp_not_found"
	ErrorCodeInvalidStep        = "invalid_step"
	ErrorCodeCooldown           = "cooldown"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeForbidden          = "forbidden"
	ErrorCodeDeliveryFailed     = "delivery_failed"
	ErrorCodeNotFound           = "not_found"
	ErrorCodeRateLimited        = "rate_limit_exceeded"
	ErrorCodeServerError        = "server_error"
)

// APIError is the error body returned by the accounts API. It is used by the
// server to write responses and by SDKClient to report them.
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the machine-readable error code (e.g. "otp_mismatch")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`

	// NextStep is set on invalid_step errors to the step the caller should
	// perform instead.
	NextStep string `json:"nextStep,omitempty"`

	// RetryAfter is set on cooldown errors, in whole seconds.
	RetryAfter int `json:"retryAfter,omitempty"`

	// Details maps field names to validation messages.
	Details map[string]string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.NextStep != "" {
		return fmt.Sprintf("%s: %s (next step %s)", e.Code, e.Description, e.NextStep)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches APIErrors by code, so errors.Is(err, ErrOTPMismatch) holds for
// any otp_mismatch response.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// WriteError writes e as a JSON response. Cooldown errors also set the
// Retry-After header.
func (e *APIError) WriteError(w http.ResponseWriter) {
	if e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(e.RetryAfter))
	}
	httpx.WriteJSON(w, e.StatusCode, e)
}

var (
	// ErrInvalidRequest is returned when the body is not valid JSON of the
	// expected shape.
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request body is malformed",
	}

	// ErrInvalidCredentials is returned for any failed password check,
	// including unknown accounts.
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "invalid credentials",
	}

	ErrOTPMismatch = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeOTPMismatch,
		Description: "the code is incorrect",
	}

	ErrOTPExpired = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeOTPExpired,
		Description: "the code has expired, request a new one",
	}

	ErrOTPExhausted = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeOTPExhausted,
		Description: "too many attempts, request a new code",
	}

	ErrOTPNotFound = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeOTPNotFound,
		Description: "no active code, request a new one",
	}

	// ErrInvalidToken is returned when the session is missing, invalid or
	// expired. The cause is never disclosed.
	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "authentication required",
	}

	ErrForbidden = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeForbidden,
		Description: "insufficient role",
	}

	// ErrDeliveryFailed is returned when a code could not be sent. No code is
	// left pending, so the client may retry immediately.
	ErrDeliveryFailed = &APIError{
		StatusCode:  http.StatusServiceUnavailable,
		Code:        ErrorCodeDeliveryFailed,
		Description: "the code could not be delivered, try again",
	}

	ErrNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeNotFound,
		Description: "not found",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	// Sentinels for matching client-side with errors.Is.
	ErrInvalidStep = &APIError{StatusCode: http.StatusConflict, Code: ErrorCodeInvalidStep}
	ErrCooldown    = &APIError{StatusCode: http.StatusTooManyRequests, Code: ErrorCodeCooldown}
	ErrValidation  = &APIError{StatusCode: http.StatusBadRequest, Code: ErrorCodeValidation}
)

// NewInvalidStepError reports that the submitted step is not the current one.
func NewInvalidStepError(nextStep string) *APIError {
	return &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeInvalidStep,
		Description: "this step is not available",
		NextStep:    nextStep,
	}
}

// NewCooldownError reports that a new code cannot be sent yet.
func NewCooldownError(retryAfter time.Duration) *APIError {
	secs := int((retryAfter + time.Second - 1) / time.Second)
	return &APIError{
		StatusCode:  http.StatusTooManyRequests,
		Code:        ErrorCodeCooldown,
		Description: "please wait before requesting another code",
		RetryAfter:  max(secs, 1),
	}
}

// NewValidationError reports per-field input problems.
func NewValidationError(details map[string]string) *APIError {
	return &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeValidation,
		Description: "the request failed validation",
		Details:     details,
	}
}

// parseErrorResponse turns a non-2xx response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
		apiErr.StatusCode = resp.StatusCode
		if apiErr.RetryAfter == 0 {
			apiErr.RetryAfter, _ = strconv.Atoi(resp.Header.Get("Retry-After"))
		}
		return &apiErr
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
