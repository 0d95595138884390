package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/finlit/platform/internal/accounts/store"
	"github.com/finlit/platform/pkg/cryptox"
	"github.com/finlit/platform/pkg/slogx"
)

// LoginService runs the password-then-email-code login for users and admins.
type LoginService struct {
	Store    store.Store
	OTP      *OTPService
	Sessions *SessionService
	Hasher   cryptox.PasswordHasher
}

// burnPassword runs a full hash verification that always fails, so unknown
// accounts take as long to reject as wrong passwords.
func (s *LoginService) burnPassword(password string) {
	_ = s.Hasher.Verify(password, cryptox.DummyHash)
}

// checkPassword verifies password for ident. Every failure, including a
// missing identity or one with the wrong role, is ErrInvalidCredentials.
func (s *LoginService) checkPassword(ident domain.Identity, found bool, role domain.Role, password string) error {
	if !found || !ident.HasPassword() {
		s.burnPassword(password)
		return ErrInvalidCredentials
	}
	if err := s.Hasher.Verify(password, ident.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}
	if ident.Role != role {
		return ErrInvalidCredentials
	}
	return nil
}

// InitiateLogin checks a user's password and emails a login code. A correct
// password on an account that cannot log in yet fails with a *StepError.
func (s *LoginService) InitiateLogin(ctx context.Context, in LoginInput) error {
	in.Email = domain.NormalizeEmail(in.Email)
	if err := validateInput(in); err != nil {
		return err
	}
	l := slogx.FromContext(ctx)

	ident, found, err := s.lookup(ctx, in.Email)
	if err != nil {
		return err
	}
	if err := s.checkPassword(ident, found, domain.RoleUser, in.Password); err != nil {
		l.Info("login rejected", "reason", "credentials")
		return err
	}

	if step := domain.NextStep(ident); step != domain.StepLogin {
		l.Info("login rejected", "identity_id", ident.ID, "next_step", step)
		return &StepError{NextStep: step}
	}

	_, err = s.OTP.Issue(ctx, ident, domain.ChannelEmail, domain.PurposeLogin)
	return err
}

// CompleteLogin checks the emailed code and mints a user session.
func (s *LoginService) CompleteLogin(ctx context.Context, in VerifyOTPInput, client domain.ClientInfo) (domain.SessionToken, error) {
	in.Email = domain.NormalizeEmail(in.Email)
	if err := validateInput(in); err != nil {
		return domain.SessionToken{}, err
	}

	ident, found, err := s.lookup(ctx, in.Email)
	if err != nil {
		return domain.SessionToken{}, err
	}
	if !found || ident.Role != domain.RoleUser {
		return domain.SessionToken{}, ErrOTPNotFound
	}
	return s.complete(ctx, ident, in.OTP, client)
}

// AdminLogin checks an admin's password and emails a login code. The
// identifier may be a username or an email address.
func (s *LoginService) AdminLogin(ctx context.Context, in AdminLoginInput) error {
	in.Identifier = strings.TrimSpace(in.Identifier)
	if err := validateInput(in); err != nil {
		return err
	}
	l := slogx.FromContext(ctx)

	ident, found, err := s.lookupAdmin(ctx, in.Identifier)
	if err != nil {
		return err
	}
	if err := s.checkPassword(ident, found, domain.RoleAdmin, in.Password); err != nil {
		l.Info("admin login rejected", "reason", "credentials")
		return err
	}

	if step := domain.NextStep(ident); step != domain.StepLogin {
		l.Info("admin login rejected", "identity_id", ident.ID, "next_step", step)
		return &StepError{NextStep: step}
	}

	_, err = s.OTP.Issue(ctx, ident, domain.ChannelEmail, domain.PurposeLogin)
	return err
}

// AdminVerify checks the emailed code and mints an admin session.
func (s *LoginService) AdminVerify(ctx context.Context, in AdminVerifyInput, client domain.ClientInfo) (domain.SessionToken, error) {
	in.Identifier = strings.TrimSpace(in.Identifier)
	if err := validateInput(in); err != nil {
		return domain.SessionToken{}, err
	}

	ident, found, err := s.lookupAdmin(ctx, in.Identifier)
	if err != nil {
		return domain.SessionToken{}, err
	}
	if !found || ident.Role != domain.RoleAdmin {
		return domain.SessionToken{}, ErrOTPNotFound
	}
	return s.complete(ctx, ident, in.OTP, client)
}

func (s *LoginService) complete(ctx context.Context, ident domain.Identity, code string, client domain.ClientInfo) (domain.SessionToken, error) {
	if err := s.OTP.Verify(ctx, ident.ID, domain.ChannelEmail, domain.PurposeLogin, code); err != nil {
		return domain.SessionToken{}, err
	}

	// Approval may have been revoked since the code was sent.
	current, err := s.Store.Identities().GetByID(ctx, ident.ID)
	if err != nil {
		return domain.SessionToken{}, fmt.Errorf("reload identity: %w", err)
	}
	if step := domain.NextStep(current); step != domain.StepLogin {
		return domain.SessionToken{}, &StepError{NextStep: step}
	}

	return s.Sessions.Mint(ctx, current.ID, current.Role, client)
}

func (s *LoginService) lookup(ctx context.Context, email string) (domain.Identity, bool, error) {
	ident, err := s.Store.Identities().GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Identity{}, false, nil
	}
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("load identity: %w", err)
	}
	return ident, true, nil
}

func (s *LoginService) lookupAdmin(ctx context.Context, identifier string) (domain.Identity, bool, error) {
	if strings.Contains(identifier, "@") {
		return s.lookup(ctx, domain.NormalizeEmail(identifier))
	}

	ident, err := s.Store.Identities().GetByUsername(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Identity{}, false, nil
	}
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("load identity: %w", err)
	}
	return ident, true, nil
}
