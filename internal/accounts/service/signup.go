package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/finlit/platform/internal/accounts/store"
	"github.com/finlit/platform/pkg/cryptox"
	"github.com/finlit/platform/pkg/idx"
	"github.com/finlit/platform/pkg/slogx"
)

// SignupService drives a user through email verification, mobile and
// password, mobile verification and then on to admin approval. The current
// step is always recomputed from the stored identity.
type SignupService struct {
	Store  store.Store
	OTP    *OTPService
	Hasher cryptox.PasswordHasher

	Now func() time.Time
}

func (s *SignupService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Initiate creates a pending user and emails a signup code. For an existing
// identity still on the email step the code is resent; an active cooldown is
// ignored because the earlier code is still valid. Any other identity just
// gets its current step back.
func (s *SignupService) Initiate(ctx context.Context, in SignupInput) (domain.Step, error) {
	in.Email = domain.NormalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validateInput(in); err != nil {
		return "", err
	}

	ident, err := s.Store.Identities().GetByEmail(ctx, in.Email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return s.create(ctx, in)
	case err != nil:
		return "", fmt.Errorf("load identity: %w", err)
	}

	step := domain.NextStep(ident)
	if step != domain.StepEmailOTP {
		return step, nil
	}

	_, err = s.OTP.Resend(ctx, ident, domain.ChannelEmail, domain.PurposeSignup)
	if err != nil && !errors.Is(err, ErrCooldown) {
		return "", err
	}
	return step, nil
}

func (s *SignupService) create(ctx context.Context, in SignupInput) (domain.Step, error) {
	now := s.now()
	ident := domain.Identity{
		ID:             idx.NewAt(now).String(),
		Role:           domain.RoleUser,
		FullName:       in.FullName,
		Email:          in.Email,
		ApprovalStatus: domain.ApprovalPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.Store.Identities().Create(ctx, ident); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost a race with a concurrent signup for the same email.
			return s.Initiate(ctx, in)
		}
		return "", fmt.Errorf("create identity: %w", err)
	}
	slogx.FromContext(ctx).Info("signup started", "identity_id", ident.ID)

	if _, err := s.OTP.Issue(ctx, ident, domain.ChannelEmail, domain.PurposeSignup); err != nil {
		return "", err
	}
	return domain.StepEmailOTP, nil
}

// Advance applies one signup step for the identity with this email.
// Submitting a step that is already done is a no-op that reports the current
// step; submitting one that is not reachable yet fails with a *StepError.
func (s *SignupService) Advance(ctx context.Context, email string, in StepInput) (domain.Identity, domain.Step, error) {
	email = domain.NormalizeEmail(email)
	if err := validateInput(EmailInput{Email: email}); err != nil {
		return domain.Identity{}, "", err
	}
	if err := validateInput(in); err != nil {
		return domain.Identity{}, "", err
	}

	ident, err := s.load(ctx, email)
	if err != nil {
		return domain.Identity{}, "", err
	}

	current := domain.NextStep(ident)
	want := in.Step()
	switch {
	case want.Rank() < current.Rank():
		return ident, current, nil
	case want.Rank() > current.Rank():
		return ident, current, &StepError{NextStep: current}
	}

	l := slogx.FromContext(ctx).With("identity_id", ident.ID, "step", want)
	now := s.now()

	switch in := in.(type) {
	case VerifyEmailInput:
		if err := s.OTP.Verify(ctx, ident.ID, domain.ChannelEmail, domain.PurposeSignup, in.OTP); err != nil {
			return s.settle(ctx, ident, want, err)
		}
		if err := s.Store.Identities().MarkEmailVerified(ctx, ident.ID, now); err != nil {
			return ident, current, fmt.Errorf("mark email verified: %w", err)
		}

	case MobilePasswordInput:
		hash, err := s.Hasher.Hash(in.Password)
		if err != nil {
			return ident, current, fmt.Errorf("hash password: %w", err)
		}
		if err := s.Store.Identities().SetMobileAndPassword(ctx, ident.ID, in.Mobile, hash, now); err != nil {
			return ident, current, fmt.Errorf("set mobile and password: %w", err)
		}
		ident.Mobile = in.Mobile
		if _, err := s.OTP.Issue(ctx, ident, domain.ChannelMobile, domain.PurposeSignup); err != nil {
			return ident, domain.StepVerifyMobileOTP, err
		}

	case VerifyMobileInput:
		if err := s.OTP.Verify(ctx, ident.ID, domain.ChannelMobile, domain.PurposeSignup, in.OTP); err != nil {
			return s.settle(ctx, ident, want, err)
		}
		if err := s.Store.Identities().MarkMobileVerified(ctx, ident.ID, now); err != nil {
			return ident, current, fmt.Errorf("mark mobile verified: %w", err)
		}

	default:
		return ident, current, fmt.Errorf("unsupported step input %T", in)
	}

	ident, err = s.Store.Identities().GetByID(ctx, ident.ID)
	if err != nil {
		return domain.Identity{}, "", fmt.Errorf("reload identity: %w", err)
	}
	next := domain.NextStep(ident)
	l.Info("signup step completed", "next_step", next)
	return ident, next, nil
}

// settle handles a failed code check. A concurrent submission of the same
// step may have consumed the code first; when the reloaded identity is past
// want, the duplicate reports the new step like any repeated step would.
func (s *SignupService) settle(ctx context.Context, ident domain.Identity, want domain.Step, verifyErr error) (domain.Identity, domain.Step, error) {
	current := domain.NextStep(ident)
	if !errors.Is(verifyErr, ErrOTPNotFound) {
		return ident, current, verifyErr
	}

	reloaded, err := s.Store.Identities().GetByID(ctx, ident.ID)
	if err != nil {
		return ident, current, verifyErr
	}
	if next := domain.NextStep(reloaded); next.Rank() > want.Rank() {
		slogx.FromContext(ctx).Debug("duplicate signup step", "identity_id", ident.ID, "step", want, "next_step", next)
		return reloaded, next, nil
	}
	return ident, current, verifyErr
}

// ResendEmailOTP resends the signup email code while that step is current.
func (s *SignupService) ResendEmailOTP(ctx context.Context, email string) error {
	return s.resend(ctx, email, domain.StepEmailOTP, domain.ChannelEmail)
}

// ResendMobileOTP resends the signup SMS code while that step is current.
func (s *SignupService) ResendMobileOTP(ctx context.Context, email string) error {
	return s.resend(ctx, email, domain.StepVerifyMobileOTP, domain.ChannelMobile)
}

func (s *SignupService) resend(ctx context.Context, email string, step domain.Step, ch domain.Channel) error {
	email = domain.NormalizeEmail(email)
	if err := validateInput(EmailInput{Email: email}); err != nil {
		return err
	}

	ident, err := s.load(ctx, email)
	if err != nil {
		return err
	}
	if current := domain.NextStep(ident); current != step {
		return &StepError{NextStep: current}
	}

	_, err = s.OTP.Resend(ctx, ident, ch, domain.PurposeSignup)
	return err
}

// Status reports the current step for email.
func (s *SignupService) Status(ctx context.Context, email string) (domain.Step, error) {
	email = domain.NormalizeEmail(email)
	if err := validateInput(EmailInput{Email: email}); err != nil {
		return "", err
	}

	ident, err := s.load(ctx, email)
	if err != nil {
		return "", err
	}
	return domain.NextStep(ident), nil
}

func (s *SignupService) load(ctx context.Context, email string) (domain.Identity, error) {
	ident, err := s.Store.Identities().GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Identity{}, ErrNotFound
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("load identity: %w", err)
	}
	return ident, nil
}
