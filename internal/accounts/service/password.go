package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/finlit/platform/internal/accounts/store"
	"github.com/finlit/platform/pkg/cryptox"
	"github.com/finlit/platform/pkg/slogx"
)

// PasswordService resets passwords with an emailed code.
type PasswordService struct {
	Store  store.Store
	OTP    *OTPService
	Hasher cryptox.PasswordHasher

	Now func() time.Time
}

func (s *PasswordService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Forgot emails a reset code when the address belongs to an account with a
// password. Only validation errors are returned; the outcome is otherwise
// not disclosed.
func (s *PasswordService) Forgot(ctx context.Context, in EmailInput) error {
	in.Email = domain.NormalizeEmail(in.Email)
	if err := validateInput(in); err != nil {
		return err
	}
	l := slogx.FromContext(ctx)

	ident, err := s.Store.Identities().GetByEmail(ctx, in.Email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			l.Error("password reset lookup failed", "error", err)
		}
		return nil
	}
	if !ident.HasPassword() || !ident.EmailVerified {
		return nil
	}

	if _, err := s.OTP.Resend(ctx, ident, domain.ChannelEmail, domain.PurposePasswordReset); err != nil {
		l.Warn("password reset code not sent", "identity_id", ident.ID, "error", err)
	}
	return nil
}

// Reset checks the reset code and replaces the password hash.
func (s *PasswordService) Reset(ctx context.Context, in PasswordResetInput) error {
	in.Email = domain.NormalizeEmail(in.Email)
	if err := validateInput(in); err != nil {
		return err
	}

	ident, err := s.Store.Identities().GetByEmail(ctx, in.Email)
	if errors.Is(err, store.ErrNotFound) {
		return ErrOTPNotFound
	}
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	if err := s.OTP.Verify(ctx, ident.ID, domain.ChannelEmail, domain.PurposePasswordReset, in.OTP); err != nil {
		return err
	}

	hash, err := s.Hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Store.Identities().UpdatePasswordHash(ctx, ident.ID, hash, s.now()); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	slogx.FromContext(ctx).Info("password reset", "identity_id", ident.ID)
	return nil
}
