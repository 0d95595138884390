package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/finlit/platform/internal/accounts/domain"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrOTPNotFound  = errors.New("no active code")
	ErrOTPExpired   = errors.New("code expired")
	ErrOTPExhausted = errors.New("too many attempts")
	ErrOTPMismatch  = errors.New("code does not match")

	ErrInvalidStep = errors.New("step not available")
	ErrCooldown    = errors.New("resend cooldown active")

	ErrSessionMissing = errors.New("session missing")
	ErrSessionInvalid = errors.New("session invalid")
	ErrSessionExpired = errors.New("session expired")
	ErrForbidden      = errors.New("forbidden")

	ErrDeliveryFailed = errors.New("code delivery failed")
	ErrNotFound       = errors.New("not found")
)

// StepError is returned when a submission does not match the identity's
// current step.
type StepError struct {
	NextStep domain.Step
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step not available, next step is %s", e.NextStep)
}

func (e *StepError) Is(target error) bool { return target == ErrInvalidStep }

// CooldownError is returned when a resend is attempted too soon.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("resend available in %s", e.RetryAfter)
}

func (e *CooldownError) Is(target error) bool { return target == ErrCooldown }

// ValidationError maps input field names to the rule they failed.
type ValidationError struct {
	Details map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d field(s)", len(e.Details))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
