package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/finlit/platform/pkg/cryptox"
	"github.com/finlit/platform/pkg/jwtx"
	"github.com/finlit/platform/pkg/slogx"
)

// FingerprintMode decides what happens when a session is presented by a
// client other than the one it was minted for.
type FingerprintMode string

const (
	FingerprintAdvisory FingerprintMode = "advisory" // log and accept
	FingerprintStrict   FingerprintMode = "strict"   // reject
)

var ErrFingerprintMismatch = errors.New("session fingerprint mismatch")

// SessionService mints and verifies stateless session tokens.
type SessionService struct {
	Signer         jwtx.Signer
	Verifier       jwtx.Verifier
	Issuer         string
	TTL            time.Duration
	FingerprintKey []byte
	Fingerprint    FingerprintMode

	Now func() time.Time
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *SessionService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return jwtx.DefaultSessionTTL
}

func (s *SessionService) fingerprint(client domain.ClientInfo) string {
	if client.IP == "" && client.UserAgent == "" {
		return ""
	}
	return cryptox.KeyedDigest(s.FingerprintKey, client.IP, client.UserAgent)
}

// Mint signs a session for subject bound to the client it was requested from.
func (s *SessionService) Mint(ctx context.Context, subject string, role domain.Role, client domain.ClientInfo) (domain.SessionToken, error) {
	claims := jwtx.NewSessionClaims(subject, string(role), s.fingerprint(client), s.Issuer, s.ttl(), s.now())

	token, err := s.Signer.Sign(claims)
	if err != nil {
		return domain.SessionToken{}, fmt.Errorf("sign session: %w", err)
	}

	slogx.FromContext(ctx).Info("session minted", "sub", subject, "role", role, "jti", claims.ID)
	return domain.SessionToken{
		Token:      token,
		Role:       role,
		CookieName: domain.CookieName(role),
		ExpiresAt:  claims.ExpiresAt.Time,
	}, nil
}

// Verify checks token and, when requiredRole is set, its role. Role
// mismatches wrap both ErrForbidden and jwtx.ErrRoleMismatch.
func (s *SessionService) Verify(ctx context.Context, token string, requiredRole domain.Role, client domain.ClientInfo) (jwtx.Claims, error) {
	if token == "" {
		return jwtx.Claims{}, ErrSessionMissing
	}

	claims, err := s.Verifier.Verify(token)
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return jwtx.Claims{}, fmt.Errorf("%w: %w", ErrSessionExpired, err)
	case err != nil:
		return jwtx.Claims{}, fmt.Errorf("%w: %w", ErrSessionInvalid, err)
	}

	if !domain.Role(claims.Role).Valid() {
		return jwtx.Claims{}, fmt.Errorf("%w: unknown role %q", ErrSessionInvalid, claims.Role)
	}
	if err := claims.ValidateRole(string(requiredRole)); err != nil {
		return jwtx.Claims{}, fmt.Errorf("%w: %w", ErrForbidden, err)
	}

	if claims.Fingerprint != "" {
		got := s.fingerprint(client)
		if !cryptox.EqualDigest(claims.Fingerprint, got) {
			if s.Fingerprint == FingerprintStrict {
				return jwtx.Claims{}, fmt.Errorf("%w: %w", ErrSessionInvalid, ErrFingerprintMismatch)
			}
			slogx.FromContext(ctx).Warn("session fingerprint mismatch",
				"sub", claims.Subject,
				"jti", claims.ID,
				"ip", client.IP,
			)
		}
	}

	return claims, nil
}
